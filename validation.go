package gowizard

import (
	"context"
	"fmt"
)

// Validator gates forward progress past a step.
// Check returns false when the step is incomplete and an error when the
// check itself broke; the two outcomes are reported differently.
type Validator interface {
	Check(ctx context.Context) (bool, error)
}

// ValidatorFunc adapts a context-aware function to Validator.
type ValidatorFunc func(ctx context.Context) (bool, error)

// Check implements Validator.
func (f ValidatorFunc) Check(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Predicate adapts a synchronous boolean function to Validator.
type Predicate func() bool

// Check implements Validator.
func (p Predicate) Check(context.Context) (bool, error) {
	return p(), nil
}

// AsyncResult is the settled value of an asynchronous validator.
type AsyncResult struct {
	Valid bool
	Err   error
}

// AsyncFunc adapts a function returning an awaitable result to Validator.
// Check waits until a result arrives or ctx is done. A nil channel, or one
// closed without a value, is reported as ErrValidatorAbandoned.
type AsyncFunc func(ctx context.Context) <-chan AsyncResult

// Check implements Validator.
func (f AsyncFunc) Check(ctx context.Context) (bool, error) {
	ch := f(ctx)
	if ch == nil {
		return false, ErrValidatorAbandoned
	}
	select {
	case res, ok := <-ch:
		if !ok {
			return false, ErrValidatorAbandoned
		}
		return res.Valid, res.Err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// ValidationRunner executes step validators through a middleware chain and
// turns every outcome into a uniform result. Panics never escape Validate.
type ValidationRunner struct {
	middleware []ValidatorMiddleware
	logger     Logger
}

// NewValidationRunner creates a runner. A nil logger is replaced by the no-op logger.
func NewValidationRunner(logger Logger, middleware ...ValidatorMiddleware) *ValidationRunner {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return &ValidationRunner{
		middleware: append([]ValidatorMiddleware{}, middleware...),
		logger:     logger,
	}
}

// Use adds middleware to the runner's chain.
// Middleware is executed in the order it is added.
func (r *ValidationRunner) Use(middleware ...ValidatorMiddleware) {
	r.middleware = append(r.middleware, middleware...)
}

// Validate runs the validator of step.
// It returns nil when the step is valid, and a *ValidationError of kind
// KindInvalid or KindFailure otherwise. Steps without a validator are
// valid without going through the middleware chain.
func (r *ValidationRunner) Validate(ctx context.Context, step *Step, index int) error {
	if verr := r.validate(ctx, step, index); verr != nil {
		return verr
	}
	return nil
}

func (r *ValidationRunner) validate(ctx context.Context, step *Step, index int) *ValidationError {
	if step.Validator == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var handler ValidateFunc = checkStep
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}

	valid, err := r.guard(ctx, handler, step, index)
	if err != nil {
		r.logger.Warn("Validator of step %s failed: %v", step.ID, err)
		return newValidationError(step, index, KindFailure, err)
	}
	if !valid {
		r.logger.Debug("Step %s is not valid", step.ID)
		return newValidationError(step, index, KindInvalid, nil)
	}
	return nil
}

// guard calls handler and converts a panic into ErrValidatorPanic.
func (r *ValidationRunner) guard(ctx context.Context, handler ValidateFunc, step *Step, index int) (valid bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			valid = false
			err = fmt.Errorf("%w: %v", ErrValidatorPanic, rec)
		}
	}()
	return handler(ctx, step, index)
}

func checkStep(ctx context.Context, step *Step, _ int) (bool, error) {
	return step.Validator.Check(ctx)
}
