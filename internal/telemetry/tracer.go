// Package telemetry wraps the OpenTelemetry tracer the storage adapter
// uses to emit spans around put/get/list/delete, following the
// session-scoped span pattern in AltairaLabs's
// runtime/telemetry/listener.go: a named tracer obtained once and
// reused, spans started with explicit attributes and closed via
// defer.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rcliao/checkpoint-splitter/internal/adapter"

// Tracer returns the package tracer registered under the global OTel
// TracerProvider. Callers that don't configure a provider get the
// no-op default, so tracing is always safe to call unconditionally.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartOperation starts a span for one of the adapter's public
// operations (put, get, list, deleteThread), tagged with the
// thread it operates against.
func StartOperation(ctx context.Context, op, threadID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, op, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(
		attribute.String("threadId", threadID),
	))
}

// RecordSplitOutcome annotates span with the write path's outcome.
func RecordSplitOutcome(span trace.Span, wasSplit bool, partCount int) {
	span.SetAttributes(
		attribute.Bool("wasSplit", wasSplit),
		attribute.Int("partCount", partCount),
	)
}

// RecordReassemblyOutcome annotates span with the read path's outcome.
func RecordReassemblyOutcome(span trace.Span, partsReassembled, totalExpectedParts int) {
	span.SetAttributes(
		attribute.Int("partsReassembled", partsReassembled),
		attribute.Int("totalExpectedParts", totalExpectedParts),
	)
}

// RecordError marks span as failed with err, the convention OTel's own
// examples use for surfacing handled errors without panicking.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
