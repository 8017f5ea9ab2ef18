package emit

import "context"

// NullEmitter implements Emitter by discarding all events. Useful for
// production deployments that rely on Callback registrations instead, or
// for tests that don't care about observability output.
type NullEmitter[S any] struct{}

// NewNullEmitter creates a NullEmitter.
func NewNullEmitter[S any]() *NullEmitter[S] {
	return &NullEmitter[S]{}
}

func (n *NullEmitter[S]) Emit(GraphEvent[S]) {}

func (n *NullEmitter[S]) EmitBatch(context.Context, []GraphEvent[S]) error { return nil }

func (n *NullEmitter[S]) Flush(context.Context) error { return nil }
