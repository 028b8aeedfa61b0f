// Package telemetry provides the OpenTelemetry tracing and metrics used by
// the runtime, and a logger that carries the active trace context.
//
// Tracing and metrics go through the global OTel providers unless a
// provider is passed explicitly. Tests should use [NewMetrics] with their own
// [metric.MeterProvider] and an in-memory span recorder.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for rgraph spans.
const tracerName = "github.com/roach88/rgraph"

// Tracer returns the rgraph tracer from the global TracerProvider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named name. The caller must call span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Logger returns the default logger enriched with trace_id and span_id from
// the span context in ctx.
func Logger(ctx context.Context) *slog.Logger {
	return LoggerFrom(ctx, slog.Default())
}

// LoggerFrom is Logger with an explicit base logger.
func LoggerFrom(ctx context.Context, base *slog.Logger) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return base.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return base
}
