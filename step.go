package gowizard

import "slices"

// Step is one stage of a wizard.
// The engine only reads ID, Optional, Skippable and Validator; Label,
// Description and Tags are passed through untouched for the host.
type Step struct {
	// ID is the unique, stable identifier for the step
	ID string
	// Label is a short human-readable title
	Label string
	// Description provides details about the step
	Description string
	// Optional steps are passed over by linear look-backs. When left, they
	// only stop blocking on a false validator with WithOptionalSoftFail.
	Optional bool
	// Skippable steps can be passed with Skip without running their validator
	Skippable bool
	// Validator gates forward progress past the step. nil means always valid.
	Validator Validator
	// Tags for organization and filtering
	Tags []string
}

// NewStep creates a new step with the given properties.
func NewStep(id, label, description string) *Step {
	return &Step{
		ID:          id,
		Label:       label,
		Description: description,
		Tags:        []string{},
	}
}

// WithValidator sets the step validator and returns the step.
func (s *Step) WithValidator(v Validator) *Step {
	s.Validator = v
	return s
}

// AsOptional marks the step optional and returns it.
func (s *Step) AsOptional() *Step {
	s.Optional = true
	return s
}

// AsSkippable marks the step skippable and returns it.
func (s *Step) AsSkippable() *Step {
	s.Skippable = true
	return s
}

// AddTag adds a tag to the step if it doesn't already exist.
func (s *Step) AddTag(tag string) {
	if s.HasTag(tag) {
		return
	}
	s.Tags = append(s.Tags, tag)
}

// HasTag checks if the step has a specific tag.
func (s *Step) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// HasAllTags checks if the step has all the specified tags.
func (s *Step) HasAllTags(tags []string) bool {
	for _, tag := range tags {
		if !s.HasTag(tag) {
			return false
		}
	}
	return true
}

// HasAnyTag checks if the step has any of the specified tags.
func (s *Step) HasAnyTag(tags []string) bool {
	for _, tag := range tags {
		if s.HasTag(tag) {
			return true
		}
	}
	return false
}

// toStepInfo converts a Step to a serializable StepInfo.
func (s *Step) toStepInfo() StepInfo {
	return StepInfo{
		ID:           s.ID,
		Label:        s.Label,
		Description:  s.Description,
		Optional:     s.Optional,
		Skippable:    s.Skippable,
		HasValidator: s.Validator != nil,
		Tags:         slices.Clone(s.Tags),
	}
}

// clone returns a shallow copy whose tag slice is not shared.
func (s *Step) clone() *Step {
	c := *s
	c.Tags = slices.Clone(s.Tags)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return &c
}
