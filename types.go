package gowizard

import (
	"context"
	"time"
)

// Logger provides a simple interface for wizard logging
type Logger interface {
	// Debug logs a message at debug level
	Debug(format string, args ...interface{})

	// Info logs a message at info level
	Info(format string, args ...interface{})

	// Warn logs a message at warning level
	Warn(format string, args ...interface{})

	// Error logs a message at error level
	Error(format string, args ...interface{})
}

// EventType names a navigation event emitted by the engine.
type EventType string

const (
	// EventStepChanged fires after the current index moved.
	EventStepChanged EventType = "step_changed"
	// EventStepValidationFailed fires when a validator reported the step as incomplete.
	EventStepValidationFailed EventType = "step_validation_failed"
	// EventValidationFailure fires when a validator returned an error or panicked.
	EventValidationFailure EventType = "validation_failure"
	// EventCompleted fires once the last step has been validated (or skipped) on Next.
	EventCompleted EventType = "completed"
	// EventBusy fires when a command is rejected because another one is in flight.
	EventBusy EventType = "busy"
)

// Event is the payload delivered to listeners.
//
// From and To are set for StepChanged. Index and StepID identify the step the
// event is about: the failing step for validation events, the final step for
// Completed and the current step for Busy.
type Event struct {
	Type      EventType
	SessionID string
	From      int
	To        int
	Index     int
	StepID    string
	// Skipped is true when the move bypassed the step's validator through Skip
	Skipped bool
	// Err carries the *ValidationError for validation events and ErrBusy for Busy
	Err  error
	Time time.Time
}

// Listener receives engine events. Listeners run synchronously on the
// goroutine that issued the command, after the engine state was updated.
type Listener func(event Event)

// ValidateFunc is the core function type for validating a step.
type ValidateFunc func(ctx context.Context, step *Step, index int) (bool, error)

// ValidatorMiddleware represents a function that wraps validator execution.
// It allows performing operations before and after a step's validator runs,
// with information about the step's position in the sequence.
type ValidatorMiddleware func(next ValidateFunc) ValidateFunc

// Option configures an Engine
type Option func(*Engine)

// StepInfo holds serializable step information for the status board.
type StepInfo struct {
	ID           string   `json:"id"`
	Label        string   `json:"label"`
	Description  string   `json:"description"`
	Optional     bool     `json:"optional"`
	Skippable    bool     `json:"skippable"`
	HasValidator bool     `json:"hasValidator"`
	Tags         []string `json:"tags"`
}

// WizardInfo holds serializable wizard information for the status board.
type WizardInfo struct {
	SessionID string   `json:"sessionId"`
	StepIDs   []string `json:"stepIds"`
	Linear    bool     `json:"linear"`
	CreatedAt string   `json:"createdAt"`
}

// Store key prefixes for organizing entries in the store
const (
	// PrefixWizard is used for wizard metadata
	PrefixWizard = "wizard:"

	// PrefixStep is used for step metadata
	PrefixStep = "step:"
)

// Common tags used on status board entries
const (
	// TagSystem identifies entries managed by the engine
	TagSystem = "system"

	// TagStep identifies step entries
	TagStep = "step"

	// TagOptional identifies optional steps
	TagOptional = "optional"

	// TagSkippable identifies skippable steps
	TagSkippable = "skippable"

	// TagCurrent marks the step the wizard is on. Completed wizards have none.
	TagCurrent = "current"
)

// Common property keys used in metadata
const (
	// PropOrder tracks the step position in the sequence
	PropOrder = "order"

	// PropStatus tracks the current status
	PropStatus = "status"

	// PropCurrent tracks the current step id of a wizard
	PropCurrent = "current"
)

// Status values for steps
const (
	// StatusPending means the step has not been validated, skipped or failed yet
	StatusPending = "pending"

	// StatusCurrent means the step is the one the wizard is on
	StatusCurrent = "current"

	// StatusValidated means the step passed validation at least once
	StatusValidated = "validated"

	// StatusInvalid means the last validation reported the step as incomplete
	StatusInvalid = "invalid"

	// StatusFailed means the last validation errored
	StatusFailed = "failed"

	// StatusSkipped means the step was skipped without validation
	StatusSkipped = "skipped"
)

// Status values for the wizard itself
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusDestroyed = "destroyed"
)
