// Package emit provides the structured event taxonomy, callback registry,
// and pluggable observability backends for graph execution.
package emit

import "context"

// Emitter receives and processes GraphEvents from workflow execution.
//
// Emitters enable pluggable observability backends:
// - Logging: stdout, files.
// - Distributed tracing: OpenTelemetry.
// - In-memory capture: tests, dashboards.
//
// Implementations should be non-blocking and thread-safe; Emit may be
// called concurrently from a parallel step's branches.
type Emitter[S any] interface {
	// Emit sends a single event to the configured backend. Must not panic;
	// internal errors should be logged, not surfaced to the caller.
	Emit(event GraphEvent[S])

	// EmitBatch sends multiple events in one operation, preserving order,
	// for backends that benefit from batching.
	EmitBatch(ctx context.Context, events []GraphEvent[S]) error

	// Flush blocks until all buffered events are sent or ctx is done.
	// Safe to call multiple times.
	Flush(ctx context.Context) error
}
