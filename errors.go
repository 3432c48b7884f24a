package gowizard

import (
	"errors"
	"fmt"
)

// Sequence construction errors.
var (
	// ErrEmptySequence is returned when a sequence has no steps.
	ErrEmptySequence = errors.New("sequence has no steps")

	// ErrEmptyStepID is returned when a step has no id.
	ErrEmptyStepID = errors.New("step has empty ID")

	// ErrDuplicateStepID is returned when two steps share an id.
	ErrDuplicateStepID = errors.New("duplicate step ID")

	// ErrUnknownValidator is returned when a definition names an unregistered validator.
	ErrUnknownValidator = errors.New("unknown validator")
)

// Usage errors returned synchronously by navigation commands.
var (
	// ErrStepNotFound is returned when an id does not match any step.
	ErrStepNotFound = errors.New("step not found")

	// ErrOutOfRange is returned when a target index lies outside the sequence.
	ErrOutOfRange = errors.New("step index out of range")

	// ErrBusy is returned when a command arrives while another one is validating.
	ErrBusy = errors.New("navigation already in progress")

	// ErrNotSkippable is returned when Skip is called on a step that cannot be skipped.
	ErrNotSkippable = errors.New("step is not skippable")

	// ErrDirectJumpDisabled is returned when a multi-step jump is requested
	// while direct jumps are turned off.
	ErrDirectJumpDisabled = errors.New("direct jump disabled")

	// ErrStepLocked is returned in non-strict linear mode when a jump would
	// pass over a required step that has not been validated.
	ErrStepLocked = errors.New("step is locked until earlier steps are validated")

	// ErrCompleted is wrapped with ErrOutOfRange when advancing a completed wizard.
	ErrCompleted = errors.New("wizard already completed")

	// ErrDestroyed is returned by commands on a destroyed engine, and by a
	// command whose validation settled after Destroy.
	ErrDestroyed = errors.New("wizard destroyed")

	// ErrAborted is returned by a command whose validation settled after Reset.
	ErrAborted = errors.New("navigation aborted by reset")
)

// Validation errors. A *ValidationError matches exactly one of these with errors.Is.
var (
	// ErrStepValidationFailed matches validators that reported false.
	ErrStepValidationFailed = errors.New("step validation failed")

	// ErrValidationFailure matches validators that returned an error or panicked.
	ErrValidationFailure = errors.New("validator failure")

	// ErrValidatorPanic is the cause recorded when a validator panics.
	ErrValidatorPanic = errors.New("validator panicked")

	// ErrValidatorAbandoned is the cause recorded when an async validator
	// closed its result channel without a result.
	ErrValidatorAbandoned = errors.New("validator abandoned without a result")

	// ErrValidatorTimeout is the cause recorded by TimeLimitMiddleware.
	ErrValidatorTimeout = errors.New("validator timed out")
)

// ValidationKind tells a user-fixable outcome apart from a broken validator.
type ValidationKind int

const (
	// KindInvalid means the validator returned false.
	KindInvalid ValidationKind = iota
	// KindFailure means the validator returned an error or panicked.
	KindFailure
)

func (k ValidationKind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindFailure:
		return "failure"
	default:
		return fmt.Sprintf("ValidationKind(%d)", int(k))
	}
}

// ValidationError reports a step that did not pass validation.
type ValidationError struct {
	Index  int            // position of the step in the sequence
	StepID string         // id of the step
	Kind   ValidationKind // invalid or failure
	Err    error          // underlying cause, set for KindFailure
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Kind == KindFailure {
		return fmt.Sprintf("step '%s' (index %d): validator failed: %v", e.StepID, e.Index, e.Err)
	}
	return fmt.Sprintf("step '%s' (index %d): validation failed", e.StepID, e.Index)
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is matches ErrStepValidationFailed or ErrValidationFailure depending on Kind.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrStepValidationFailed:
		return e.Kind == KindInvalid
	case ErrValidationFailure:
		return e.Kind == KindFailure
	}
	return false
}

// Reason returns a short description suitable for event payloads.
func (e *ValidationError) Reason() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

// newValidationError creates a validation error for the step at index.
func newValidationError(step *Step, index int, kind ValidationKind, err error) *ValidationError {
	return &ValidationError{
		Index:  index,
		StepID: step.ID,
		Kind:   kind,
		Err:    err,
	}
}
