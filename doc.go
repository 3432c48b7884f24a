// Package gowizard provides a navigation engine for multi-step wizards.
//
// A wizard is an ordered Sequence of Steps. The Engine keeps track of the
// current step and decides whether a requested move is legal: moving back is
// always allowed, while moving forward in linear mode requires the steps
// being left behind to pass their validators. Validators may answer
// synchronously or asynchronously; a validator that returns an error or
// panics is reported as a failure, distinct from one that merely says the
// step is incomplete.
//
// Core components include:
//   - Sequence: the immutable, ordered list of steps with id/index lookups
//   - Engine: the state machine behind GoTo, Next, Previous and Skip
//   - ValidationRunner: runs a step validator through a middleware chain
//     and isolates its failures
//   - Listeners: receive StepChanged, StepValidationFailed,
//     ValidationFailure, Completed and Busy events
//
// Only one command may be validating at a time. Commands issued while a
// validation is pending are rejected with ErrBusy rather than queued.
//
// Wizards can also be declared as data with SequenceDef, whose validators
// are resolved by id from a registry, and the engine mirrors the status of
// every step into a store.KVStore the host can query for progress displays.
package gowizard
