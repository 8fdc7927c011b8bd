package emit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating an OpenTelemetry span per
// event, grounded on the teacher's graph/emit/otel.go. Each span is
// immediately started and ended (events are instants, not durations we
// can bracket from this layer), carrying run/node/iteration as
// attributes and setting an error status when event.Error is non-empty.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter returns an OTelEmitter using tracer, typically obtained
// via otel.Tracer("workflow-core").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit implements Emitter.
func (o *OTelEmitter) Emit(ctx context.Context, event Event) {
	_, span := o.tracer.Start(ctx, string(event.Kind))
	defer span.End()

	span.SetAttributes(
		attribute.String("run_id", event.RunID),
		attribute.String("node_name", event.NodeName),
		attribute.Int("iteration", event.Iteration),
		attribute.String("status", event.Status),
	)
	if event.DurationMS > 0 {
		span.SetAttributes(attribute.Int64("duration_ms", event.DurationMS))
	}
	if event.Error != "" {
		span.SetStatus(codes.Error, event.Error)
	}
}

// Flush has nothing to do: spans are ended synchronously in Emit. Export
// batching, if any, is the configured TracerProvider's concern.
func (o *OTelEmitter) Flush(context.Context) error { return nil }
