// Package metrics exposes wizard navigation as Prometheus metrics.
//
// A Collector is fed from two places: its Listener observes engine events
// and its Middleware times every validator run.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/davidroman0O/gowizard"
)

// Direction label values for transitions
const (
	DirectionForward  = "forward"
	DirectionBackward = "backward"
	DirectionSkip     = "skip"
)

// Outcome label values for validation durations
const (
	OutcomeValid   = "valid"
	OutcomeInvalid = "invalid"
	OutcomeFailure = "failure"
)

// Collector holds the wizard metrics.
type Collector struct {
	transitions        *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	busyRejections     prometheus.Counter
	completions        prometheus.Counter
	validationDuration *prometheus.HistogramVec
}

// NewCollector creates the metrics and registers them with reg.
// A nil reg creates unregistered metrics, which is handy in tests.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	factory := promauto.With(reg)
	if namespace == "" {
		namespace = "gowizard"
	}

	return &Collector{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_transitions_total",
			Help:      "Step changes by direction.",
		}, []string{"direction"}),
		validationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Validation events that blocked navigation, by step and kind.",
		}, []string{"step", "kind"}),
		busyRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "busy_rejections_total",
			Help:      "Commands rejected because a validation was in flight.",
		}),
		completions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Wizards that reached the completed state.",
		}),
		validationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time spent in step validators.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"step", "outcome"}),
	}
}

// Listener returns an event listener updating the counters.
func (c *Collector) Listener() gowizard.Listener {
	return func(ev gowizard.Event) {
		switch ev.Type {
		case gowizard.EventStepChanged:
			c.transitions.WithLabelValues(direction(ev)).Inc()
		case gowizard.EventStepValidationFailed:
			c.validationFailures.WithLabelValues(ev.StepID, gowizard.KindInvalid.String()).Inc()
		case gowizard.EventValidationFailure:
			c.validationFailures.WithLabelValues(ev.StepID, gowizard.KindFailure.String()).Inc()
		case gowizard.EventBusy:
			c.busyRejections.Inc()
		case gowizard.EventCompleted:
			c.completions.Inc()
		}
	}
}

// Middleware returns a validator middleware observing run durations.
// A panicking validator is recorded as a failure before the panic goes on.
func (c *Collector) Middleware() gowizard.ValidatorMiddleware {
	return func(next gowizard.ValidateFunc) gowizard.ValidateFunc {
		return func(ctx context.Context, step *gowizard.Step, index int) (valid bool, err error) {
			start := time.Now()
			defer func() {
				rec := recover()

				outcome := OutcomeValid
				switch {
				case rec != nil || err != nil:
					outcome = OutcomeFailure
				case !valid:
					outcome = OutcomeInvalid
				}
				c.validationDuration.WithLabelValues(step.ID, outcome).Observe(time.Since(start).Seconds())

				if rec != nil {
					panic(rec)
				}
			}()
			return next(ctx, step, index)
		}
	}
}

func direction(ev gowizard.Event) string {
	switch {
	case ev.Skipped:
		return DirectionSkip
	case ev.To > ev.From:
		return DirectionForward
	default:
		return DirectionBackward
	}
}
