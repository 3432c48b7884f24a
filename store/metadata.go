package store

import (
	"slices"
	"time"
)

// Metadata describes a store entry.
type Metadata struct {
	// Tags for organization and lookups
	Tags []string `json:"tags"`
	// Properties holds arbitrary typed values such as a status or an order
	Properties map[string]interface{} `json:"properties"`
	// Description is a human-readable description of the entry
	Description string `json:"description"`
	// CreatedAt is set when the metadata is created
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is refreshed every time the entry or its metadata changes
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewMetadata creates empty metadata stamped with the current time.
func NewMetadata() *Metadata {
	now := time.Now()
	return &Metadata{
		Tags:       []string{},
		Properties: make(map[string]interface{}),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AddTag adds a tag if it is not already present.
func (m *Metadata) AddTag(tag string) {
	if m.HasTag(tag) {
		return
	}
	m.Tags = append(m.Tags, tag)
	m.UpdatedAt = time.Now()
}

// RemoveTag removes a tag if present.
func (m *Metadata) RemoveTag(tag string) {
	idx := slices.Index(m.Tags, tag)
	if idx < 0 {
		return
	}
	m.Tags = slices.Delete(m.Tags, idx, idx+1)
	m.UpdatedAt = time.Now()
}

// HasTag checks if the metadata carries a tag.
func (m *Metadata) HasTag(tag string) bool {
	return slices.Contains(m.Tags, tag)
}

// HasAllTags checks if every given tag is present.
func (m *Metadata) HasAllTags(tags []string) bool {
	for _, tag := range tags {
		if !m.HasTag(tag) {
			return false
		}
	}
	return true
}

// HasAnyTag checks if at least one of the given tags is present.
func (m *Metadata) HasAnyTag(tags []string) bool {
	for _, tag := range tags {
		if m.HasTag(tag) {
			return true
		}
	}
	return false
}

// SetProperty sets a property value.
func (m *Metadata) SetProperty(key string, value interface{}) {
	if m.Properties == nil {
		m.Properties = make(map[string]interface{})
	}
	m.Properties[key] = value
	m.UpdatedAt = time.Now()
}

// GetProperty returns a property value and whether it exists.
func (m *Metadata) GetProperty(key string) (interface{}, bool) {
	v, ok := m.Properties[key]
	return v, ok
}

// clone returns a copy that shares no slices or maps with m.
func (m *Metadata) clone() *Metadata {
	if m == nil {
		return nil
	}
	props := make(map[string]interface{}, len(m.Properties))
	for k, v := range m.Properties {
		props[k] = v
	}
	return &Metadata{
		Tags:        slices.Clone(m.Tags),
		Properties:  props,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
