package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by turning each GraphEvent into an
// OpenTelemetry span, recorded as a point in time rather than a duration
// (except NodeEnd/ParallelEnd, whose recorded Duration is attached as an
// attribute since the span itself is still instantaneous).
//
// Usage:
//
//	tracer := otel.Tracer("stepgraph")
//	emitter := emit.NewOTelEmitter[MyState](tracer)
type OTelEmitter[S any] struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter using tracer.
func NewOTelEmitter[S any](tracer trace.Tracer) *OTelEmitter[S] {
	return &OTelEmitter[S]{tracer: tracer}
}

func (o *OTelEmitter[S]) Emit(event GraphEvent[S]) {
	ctx := context.Background()
	_, span := o.tracer.Start(ctx, event.Kind.String())
	defer span.End()
	o.annotate(span, event)
}

func (o *OTelEmitter[S]) EmitBatch(_ context.Context, events []GraphEvent[S]) error {
	for _, event := range events {
		_, span := o.tracer.Start(context.Background(), event.Kind.String())
		o.annotate(span, event)
		span.End()
	}
	return nil
}

func (o *OTelEmitter[S]) Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter[S]) annotate(span trace.Span, event GraphEvent[S]) {
	attrs := []attribute.KeyValue{
		attribute.String("stepgraph.run_id", event.RunID),
	}
	if event.Node != "" {
		attrs = append(attrs, attribute.String("stepgraph.node", event.Node))
	}
	if event.From != "" {
		attrs = append(attrs, attribute.String("stepgraph.edge.from", event.From))
		attrs = append(attrs, attribute.StringSlice("stepgraph.edge.to", event.To))
		attrs = append(attrs, attribute.String("stepgraph.edge.type", event.EdgeType))
	}
	if event.Duration > 0 {
		attrs = append(attrs, attribute.Int64("stepgraph.duration_ms", event.Duration.Milliseconds()))
	}
	if len(event.Nodes) > 0 {
		attrs = append(attrs, attribute.StringSlice("stepgraph.parallel_nodes", event.Nodes))
	}
	if event.EvaluationResult != "" {
		attrs = append(attrs, attribute.String("stepgraph.edge.result", event.EvaluationResult))
	}
	span.SetAttributes(attrs...)

	if event.Err != nil {
		span.SetStatus(codes.Error, event.Err.Error())
		span.RecordError(fmt.Errorf("%w", event.Err))
	}
}
