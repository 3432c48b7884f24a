package gowizard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/davidroman0O/gowizard/store"
)

// ValidatorDef is a serializable reference to a registered validator.
type ValidatorDef struct {
	// ID is the identifier the validator factory was registered under.
	ID string `json:"id" yaml:"id" jsonschema:"required"`
	// Params are passed to the factory.
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}

// StepDef is a serializable representation of a Step.
type StepDef struct {
	// ID is the unique identifier for the step.
	ID string `json:"id" yaml:"id" jsonschema:"required,minLength=1"`
	// Label is a short human-readable title.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	// Description provides details about the step.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Optional steps do not block progress when invalid.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
	// Skippable steps can be skipped without validation.
	Skippable bool `json:"skippable,omitempty" yaml:"skippable,omitempty"`
	// Tags for organization and filtering.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	// Validator references a registered validator. Absent means always valid.
	Validator *ValidatorDef `json:"validator,omitempty" yaml:"validator,omitempty"`
}

// SequenceDef is a serializable representation of a wizard: its steps in
// order plus the navigation settings an engine is built with.
type SequenceDef struct {
	// ID names the wizard definition.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
	// Linear defaults to true when omitted.
	Linear *bool `json:"linear,omitempty" yaml:"linear,omitempty"`
	// Strict defaults to true when omitted.
	Strict *bool `json:"strict,omitempty" yaml:"strict,omitempty"`
	// AllowDirectJump defaults to true when omitted.
	AllowDirectJump *bool `json:"allowDirectJump,omitempty" yaml:"allowDirectJump,omitempty"`
	// OptionalSoftFail defaults to false when omitted.
	OptionalSoftFail *bool `json:"optionalSoftFail,omitempty" yaml:"optionalSoftFail,omitempty"`
	// InitialIndex is clamped into range by the engine.
	InitialIndex int `json:"initialIndex,omitempty" yaml:"initialIndex,omitempty" jsonschema:"minimum=0"`
	// Steps contains all the step definitions in order.
	Steps []StepDef `json:"steps" yaml:"steps" jsonschema:"required,minItems=1"`
}

// IDs returns the step ids in order.
func (d SequenceDef) IDs() []string {
	ids := make([]string, len(d.Steps))
	for i, s := range d.Steps {
		ids[i] = s.ID
	}
	return ids
}

// Build creates the sequence described by d, resolving validators from the
// registry against data.
func (d SequenceDef) Build(data *store.KVStore) (*Sequence, error) {
	steps := make([]*Step, 0, len(d.Steps))
	for i, sd := range d.Steps {
		step := NewStep(sd.ID, sd.Label, sd.Description)
		step.Optional = sd.Optional
		step.Skippable = sd.Skippable
		for _, tag := range sd.Tags {
			step.AddTag(tag)
		}

		if sd.Validator != nil {
			v, err := NewValidatorFromRegistry(sd.Validator.ID, sd.Validator.Params, data)
			if err != nil {
				return nil, fmt.Errorf("step '%s' (index %d): %w", sd.ID, i, err)
			}
			step.Validator = v
		}
		steps = append(steps, step)
	}
	return NewSequence(steps...)
}

// Options returns the engine options encoded in d.
func (d SequenceDef) Options() []Option {
	opts := []Option{WithInitialIndex(d.InitialIndex)}
	if d.Linear != nil {
		opts = append(opts, WithLinear(*d.Linear))
	}
	if d.Strict != nil {
		opts = append(opts, WithStrictLinear(*d.Strict))
	}
	if d.AllowDirectJump != nil {
		opts = append(opts, WithAllowDirectJump(*d.AllowDirectJump))
	}
	if d.OptionalSoftFail != nil {
		opts = append(opts, WithOptionalSoftFail(*d.OptionalSoftFail))
	}
	return opts
}

// NewEngineFromDef builds the sequence of def and an engine sharing data as
// its store. Extra options are applied after the ones from def.
func NewEngineFromDef(def SequenceDef, data *store.KVStore, opts ...Option) (*Engine, error) {
	if data == nil {
		data = store.NewKVStore()
	}
	seq, err := def.Build(data)
	if err != nil {
		return nil, err
	}

	all := append([]Option{WithStore(data)}, def.Options()...)
	all = append(all, opts...)
	return New(seq, all...), nil
}

// ParseSequenceDefJSON decodes a definition from JSON. Unknown fields are rejected.
func ParseSequenceDefJSON(data []byte) (SequenceDef, error) {
	var def SequenceDef
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&def); err != nil {
		return SequenceDef{}, fmt.Errorf("decode sequence definition: %w", err)
	}
	return def, nil
}

// ParseSequenceDefYAML decodes a definition from YAML. Unknown fields are rejected.
func ParseSequenceDefYAML(data []byte) (SequenceDef, error) {
	var def SequenceDef
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return SequenceDef{}, fmt.Errorf("decode sequence definition: %w", err)
	}
	return def, nil
}

// LoadSequenceDef reads a definition file. Files ending in .json are decoded
// as JSON, everything else as YAML.
func LoadSequenceDef(path string) (SequenceDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SequenceDef{}, fmt.Errorf("read sequence definition: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseSequenceDefJSON(data)
	}
	return ParseSequenceDefYAML(data)
}

// SequenceDefSchema returns the JSON Schema describing SequenceDef documents.
func SequenceDefSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(&SequenceDef{})
	schema.Title = "gowizard sequence definition"
	return json.MarshalIndent(schema, "", "  ")
}
