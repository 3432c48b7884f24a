package main

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/davidroman0O/gowizard/telemetry"
)

// spanPrinter is a span exporter writing one line per finished validator span.
type spanPrinter struct {
	out io.Writer
}

func newSpanPrinter(out io.Writer) *spanPrinter {
	return &spanPrinter{out: out}
}

// ExportSpans implements sdktrace.SpanExporter.
func (p *spanPrinter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		var stepID string
		var valid bool
		for _, kv := range span.Attributes() {
			switch kv.Key {
			case telemetry.AttrStepID:
				stepID = kv.Value.AsString()
			case telemetry.AttrValid:
				valid = kv.Value.AsBool()
			}
		}

		took := span.EndTime().Sub(span.StartTime())
		line := fmt.Sprintf("%s step=%s valid=%t took=%v", span.Name(), stepID, valid, took)
		if span.Status().Code == codes.Error {
			line += " error=" + span.Status().Description
		}
		if _, err := fmt.Fprintln(p.out, muted(line)); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (p *spanPrinter) Shutdown(context.Context) error { return nil }
