package gowizard

import (
	"context"
	"fmt"
	"time"
)

// LoggingMiddleware creates a middleware that logs every validator run
func LoggingMiddleware(logger Logger) ValidatorMiddleware {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return func(next ValidateFunc) ValidateFunc {
		return func(ctx context.Context, step *Step, index int) (bool, error) {
			logger.Debug("Validating step %d: %s", index, step.ID)

			start := time.Now()
			valid, err := next(ctx, step, index)
			duration := time.Since(start).Round(time.Millisecond)

			switch {
			case err != nil:
				logger.Error("Validator of step %s failed after %v: %v", step.ID, duration, err)
			case !valid:
				logger.Info("Step %s reported invalid after %v", step.ID, duration)
			default:
				logger.Debug("Step %s validated in %v", step.ID, duration)
			}
			return valid, err
		}
	}
}

// TimeLimitMiddleware bounds how long a validator may run.
// The engine never imposes a timeout; hosts that want one opt in with this
// middleware. When the limit expires the validator's context is cancelled
// and the run is reported as a failure wrapping ErrValidatorTimeout, even
// if the validator ignores its context.
func TimeLimitMiddleware(limit time.Duration) ValidatorMiddleware {
	return func(next ValidateFunc) ValidateFunc {
		return func(ctx context.Context, step *Step, index int) (bool, error) {
			ctx, cancel := context.WithTimeout(ctx, limit)
			defer cancel()

			done := make(chan AsyncResult, 1)
			go func() {
				defer func() {
					if rec := recover(); rec != nil {
						done <- AsyncResult{Err: fmt.Errorf("%w: %v", ErrValidatorPanic, rec)}
					}
				}()
				valid, err := next(ctx, step, index)
				done <- AsyncResult{Valid: valid, Err: err}
			}()

			select {
			case res := <-done:
				return res.Valid, res.Err
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					return false, fmt.Errorf("%w after %v: %w", ErrValidatorTimeout, limit, ctx.Err())
				}
				return false, ctx.Err()
			}
		}
	}
}
