package store

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/sasha-s/go-deadlock"
)

// entry is a stored value with its captured concrete type.
type entry struct {
	typ      reflect.Type
	value    any
	metadata *Metadata
}

// KVStore is a threadsafe, type‑aware in‑memory store.
type KVStore struct {
	mu   deadlock.RWMutex
	data map[string]entry
}

// NewKVStore constructs an empty store.
func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string]entry)}
}

// Put stores any Go value under key, capturing its concrete type.
// Existing metadata for the key is preserved.
func (s *KVStore) Put(key string, value any) error {
	return s.PutWithMetadata(key, value, nil)
}

// PutWithMetadata stores a value with metadata. A nil metadata keeps
// whatever metadata the key already had.
func (s *KVStore) PutWithMetadata(key string, value any, metadata *Metadata) error {
	if key == "" {
		return ErrEmptyKey
	}

	var t reflect.Type
	if value != nil {
		t = reflect.TypeOf(value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta := metadata.clone()
	if existing, ok := s.data[key]; ok && metadata == nil {
		meta = existing.metadata
		if meta != nil {
			meta.UpdatedAt = time.Now()
		}
	}
	s.data[key] = entry{typ: t, value: value, metadata: meta}
	return nil
}

// Get retrieves a value of type T for the given key.
func Get[T any](s *KVStore, key string) (T, error) {
	var zero T
	if key == "" {
		return zero, ErrEmptyKey
	}

	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return zero, ErrNotFound
	}
	if e.value == nil {
		return zero, nil
	}

	want := reflect.TypeOf((*T)(nil)).Elem()

	// Interfaces match anything implementing them, everything else needs the exact type
	if want.Kind() == reflect.Interface {
		if !e.typ.Implements(want) {
			return zero, fmt.Errorf("%w: wanted interface %v, got %v which doesn't implement it",
				ErrTypeMismatch, want, e.typ)
		}
	} else if e.typ != want {
		return zero, fmt.Errorf("%w: wanted %v, got %v", ErrTypeMismatch, want, e.typ)
	}

	result, ok := e.value.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %T cannot be converted to %v", ErrTypeMismatch, e.value, want)
	}
	return result, nil
}

// GetOrDefault retrieves a value of type T, falling back to defaultValue when the key is missing.
func GetOrDefault[T any](s *KVStore, key string, defaultValue T) (T, error) {
	value, err := Get[T](s, key)
	if err == ErrNotFound {
		return defaultValue, nil
	}
	return value, err
}

// Has reports whether the key exists.
func (s *KVStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Value returns the raw stored value.
func (s *KVStore) Value(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	return e.value, ok
}

// Delete removes a key from the store.
func (s *KVStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists {
		return false
	}
	delete(s.data, key)
	return true
}

// ListKeys returns all stored keys, sorted.
func (s *KVStore) ListKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of entries in the store.
func (s *KVStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Snapshot returns a shallow copy of every stored value keyed by name.
func (s *KVStore) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.data))
	for k, e := range s.data {
		out[k] = e.value
	}
	return out
}

// GetMetadata returns a copy of the metadata for a key.
// Keys stored without metadata report empty metadata.
func (s *KVStore) GetMetadata(key string) (*Metadata, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	if e.metadata == nil {
		return NewMetadata(), nil
	}
	return e.metadata.clone(), nil
}

// updateMetadata applies fn to the metadata of key under the write lock,
// creating the metadata when missing.
func (s *KVStore) updateMetadata(key string, fn func(m *Metadata)) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return ErrNotFound
	}
	if e.metadata == nil {
		e.metadata = NewMetadata()
	}
	fn(e.metadata)
	s.data[key] = e
	return nil
}

// AddTag adds a tag to the metadata for a key.
func (s *KVStore) AddTag(key string, tag string) error {
	return s.updateMetadata(key, func(m *Metadata) { m.AddTag(tag) })
}

// RemoveTag removes a tag from the metadata for a key.
func (s *KVStore) RemoveTag(key string, tag string) error {
	return s.updateMetadata(key, func(m *Metadata) { m.RemoveTag(tag) })
}

// HasTag checks if a key's metadata has a specific tag.
func (s *KVStore) HasTag(key string, tag string) (bool, error) {
	meta, err := s.GetMetadata(key)
	if err != nil {
		return false, err
	}
	return meta.HasTag(tag), nil
}

// FindKeysByTag returns all keys that have a specific tag in their metadata, sorted.
func (s *KVStore) FindKeysByTag(tag string) []string {
	return s.findKeys(func(m *Metadata) bool { return m.HasTag(tag) })
}

// SetProperty sets a property in a key's metadata.
func (s *KVStore) SetProperty(key string, propertyKey string, propertyValue interface{}) error {
	return s.updateMetadata(key, func(m *Metadata) { m.SetProperty(propertyKey, propertyValue) })
}

// GetProperty gets a property from a key's metadata.
func (s *KVStore) GetProperty(key string, propertyKey string) (interface{}, error) {
	meta, err := s.GetMetadata(key)
	if err != nil {
		return nil, err
	}

	val, exists := meta.GetProperty(propertyKey)
	if !exists {
		return nil, fmt.Errorf("%w: '%s' on key '%s'", ErrPropertyNotFound, propertyKey, key)
	}
	return val, nil
}

// FindKeysByProperty returns all keys that have a specific property with a specific value, sorted.
func (s *KVStore) FindKeysByProperty(propertyKey string, propertyValue interface{}) []string {
	return s.findKeys(func(m *Metadata) bool {
		val, ok := m.Properties[propertyKey]
		return ok && reflect.DeepEqual(val, propertyValue)
	})
}

func (s *KVStore) findKeys(match func(m *Metadata) bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := []string{}
	for k, e := range s.data {
		if e.metadata != nil && match(e.metadata) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// GetTypeSchema returns a JSON Schema representation of the stored value's type.
func (s *KVStore) GetTypeSchema(key string) (map[string]interface{}, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if e.typ == nil {
		return map[string]interface{}{"type": "null"}, nil
	}
	return TypeToSchema(e.typ), nil
}

// TypeToSchema converts a reflect.Type to a JSON schema map.
// Named structs are expanded in place; every other type is described inline.
func TypeToSchema(t reflect.Type) map[string]interface{} {
	base := t
	if base.Kind() == reflect.Ptr {
		base = base.Elem()
	}

	instance := reflect.New(base).Interface()
	reflector := jsonschema.Reflector{
		ExpandedStruct:            base.Kind() == reflect.Struct && base.Name() != "",
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(instance)

	fallback := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return fallback
	}

	var schemaMap map[string]interface{}
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return fallback
	}

	// Ensure type is set correctly if missing
	if _, exists := schemaMap["type"]; !exists {
		schemaMap["type"] = "object"
	}
	if schemaMap["type"] == "object" {
		if _, exists := schemaMap["properties"]; !exists {
			schemaMap["properties"] = map[string]interface{}{}
		}
	}

	return schemaMap
}
