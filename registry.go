package gowizard

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/sasha-s/go-deadlock"

	"github.com/davidroman0O/gowizard/store"
)

// ValidatorFactory builds a Validator from definition params. data is the
// store holding host form data; factories read from it at check time.
type ValidatorFactory func(params map[string]interface{}, data *store.KVStore) (Validator, error)

var (
	registryMu        deadlock.RWMutex
	validatorRegistry = make(map[string]ValidatorFactory)
)

func init() {
	RegisterValidator("always", newAlwaysValidator)
	RegisterValidator("never", newNeverValidator)
	RegisterValidator("required", newRequiredValidator)
	RegisterValidator("accepted", newAcceptedValidator)
}

// RegisterValidator registers a validator factory with a unique ID.
// This function should be called at application startup for every validator
// a sequence definition may reference.
// It will panic if a validator with the same ID is already registered.
func RegisterValidator(id string, factory ValidatorFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := validatorRegistry[id]; exists {
		panic(fmt.Sprintf("validator with id '%s' is already registered", id))
	}
	validatorRegistry[id] = factory
}

// NewValidatorFromRegistry creates a Validator from the registry using its ID.
// It returns an error wrapping ErrUnknownValidator if the ID is not found.
func NewValidatorFromRegistry(id string, params map[string]interface{}, data *store.KVStore) (Validator, error) {
	registryMu.RLock()
	factory, ok := validatorRegistry[id]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownValidator, id)
	}
	if data == nil {
		data = store.NewKVStore()
	}
	v, err := factory(params, data)
	if err != nil {
		return nil, fmt.Errorf("validator '%s': %w", id, err)
	}
	return v, nil
}

// RegisteredValidators returns the registered validator IDs, sorted.
func RegisteredValidators() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]string, 0, len(validatorRegistry))
	for id := range validatorRegistry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func newAlwaysValidator(map[string]interface{}, *store.KVStore) (Validator, error) {
	return Predicate(func() bool { return true }), nil
}

func newNeverValidator(map[string]interface{}, *store.KVStore) (Validator, error) {
	return Predicate(func() bool { return false }), nil
}

// newRequiredValidator checks that every key in params.keys is present in
// the data store and is not a zero value.
func newRequiredValidator(params map[string]interface{}, data *store.KVStore) (Validator, error) {
	keys, err := stringList(params, "keys")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("params.keys must list at least one key")
	}

	return ValidatorFunc(func(ctx context.Context) (bool, error) {
		for _, key := range keys {
			v, ok := data.Value(key)
			if !ok || v == nil || reflect.ValueOf(v).IsZero() {
				return false, nil
			}
		}
		return true, nil
	}), nil
}

// newAcceptedValidator checks that params.key holds the bool true in the data store.
func newAcceptedValidator(params map[string]interface{}, data *store.KVStore) (Validator, error) {
	key, ok := params["key"].(string)
	if !ok || key == "" {
		return nil, fmt.Errorf("params.key must be a non-empty string")
	}

	return ValidatorFunc(func(ctx context.Context) (bool, error) {
		accepted, err := store.GetOrDefault(data, key, false)
		if err != nil {
			return false, err
		}
		return accepted, nil
	}), nil
}

// stringList reads a list of strings from params, accepting both []string
// and the []interface{} produced by JSON and YAML decoding.
func stringList(params map[string]interface{}, name string) ([]string, error) {
	raw, ok := params[name]
	if !ok {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("params.%s[%d] must be a string, got %T", name, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("params.%s must be a list of strings, got %T", name, raw)
	}
}
