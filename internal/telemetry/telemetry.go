// Package telemetry wraps span creation and structured logging for the
// analysis pipeline, in the spirit of the observability helper used by
// other_examples/a24610f2_oriys-nova__internal-executor-executor.go
// (StartSpan/SetSpanError/SetSpanOK around go.opentelemetry.io/otel).
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles a tracer and a logger so pipeline stages share one
// instrumentation surface without importing otel directly.
type Telemetry struct {
	tracer trace.Tracer
	Logger *slog.Logger
}

// New returns a Telemetry using the global otel TracerProvider (a no-op
// provider unless the host process configured one) under the given
// instrumentation name, and logger for structured output.
func New(instrumentationName string, logger *slog.Logger) *Telemetry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Telemetry{
		tracer: otel.Tracer(instrumentationName),
		Logger: logger,
	}
}

// StartSpan starts a span named name with the given attributes,
// returning the derived context and the span.
func StartSpan(ctx context.Context, t *Telemetry, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetSpanError records err on span and marks its status as an error.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks span's status as successfully completed.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// SpanID returns the hex span ID of the span carried by ctx, or "" if
// ctx carries no recording span.
func SpanID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.SpanID().String()
}
