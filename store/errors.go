package store

import "errors"

var (
	// ErrNotFound is returned when a key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrTypeMismatch is returned when the stored value does not have the requested type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrEmptyKey is returned when an operation is given an empty key.
	ErrEmptyKey = errors.New("key cannot be empty")

	// ErrPropertyNotFound is returned when an entry has no such metadata property.
	ErrPropertyNotFound = errors.New("property not found")
)
