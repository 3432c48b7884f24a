// Package telemetry connects wizard navigation to OpenTelemetry.
//
// TracingMiddleware wraps every validator run in a span, and MeterListener
// counts engine events with an otel counter. Both fall back to the global
// providers when given nil.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidroman0O/gowizard"
)

const instrumentationName = "github.com/davidroman0O/gowizard/telemetry"

// Attribute keys
const (
	AttrStepID    = attribute.Key("wizard.step.id")
	AttrStepIndex = attribute.Key("wizard.step.index")
	AttrValid     = attribute.Key("wizard.validation.valid")
	AttrEventType = attribute.Key("wizard.event.type")
	AttrSessionID = attribute.Key("wizard.session.id")
)

// SpanName is the name of validator spans.
const SpanName = "gowizard.validate"

// TracingMiddleware creates a validator middleware recording one span per run.
// Errors are recorded on the span and set its status to Error.
func TracingMiddleware(tp trace.TracerProvider) gowizard.ValidatorMiddleware {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(instrumentationName)

	return func(next gowizard.ValidateFunc) gowizard.ValidateFunc {
		return func(ctx context.Context, step *gowizard.Step, index int) (bool, error) {
			ctx, span := tracer.Start(ctx, SpanName, trace.WithAttributes(
				AttrStepID.String(step.ID),
				AttrStepIndex.Int(index),
			))
			defer span.End()

			valid, err := next(ctx, step, index)
			span.SetAttributes(AttrValid.Bool(valid))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return valid, err
		}
	}
}

// MeterListener creates a listener counting events in "gowizard.events",
// labelled by event type and step id.
func MeterListener(mp metric.MeterProvider) (gowizard.Listener, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	counter, err := meter.Int64Counter("gowizard.events",
		metric.WithDescription("Wizard navigation events."),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return func(ev gowizard.Event) {
		counter.Add(context.Background(), 1, metric.WithAttributes(
			AttrEventType.String(string(ev.Type)),
			AttrStepID.String(ev.StepID),
			AttrSessionID.String(ev.SessionID),
		))
	}, nil
}
