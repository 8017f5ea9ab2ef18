package graph

import (
	"context"

	"github.com/google/uuid"

	"github.com/fenwick-run/stepgraph/graph/emit"
)

// Stream runs the graph to completion exactly like Invoke, but pushes
// emit.StreamEvents to the returned channel as execution progresses
// instead of (or alongside) returning a single ExecutionResult. The
// channel is closed once the run finishes, interrupts, or errors; callers
// that need the final error should also register an OnEvent callback or
// call Invoke directly. modes controls which StreamEvent kinds are sent:
// Values (full state after each step), Updates (the full post-step state,
// sent after each step that dispatched a StateChanged event), Events
// (node start/end), and Custom (EmitCustom blobs emitted during the step).
// Per step the order is fixed: NodeStart, then any Custom blobs the step
// emitted, then Values, then Updates, then NodeEnd.
func (e *Engine[S]) Stream(ctx context.Context, initial S, modes []emit.StreamMode) <-chan emit.StreamEvent[S] {
	capacity := e.graph.settings.StreamChannelCapacity
	if capacity <= 0 {
		capacity = 64
	}
	out := make(chan emit.StreamEvent[S], capacity)

	var customCh chan any
	if emit.HasMode(modes, emit.Custom) {
		customCh = make(chan any, capacity)
		ctx = withCustomWriter(ctx, customCh)
	}

	// drainCustom forwards whatever's currently buffered without blocking
	// on a fresh EmitCustom call. It's only ever invoked from the same
	// goroutine that runs the graph, after the step that produced the
	// blobs has already returned, so there's nothing left to race with.
	drainCustom := func() {
		if customCh == nil {
			return
		}
		for {
			select {
			case blob := <-customCh:
				out <- emit.StreamEvent[S]{Kind: emit.StreamCustomBlob, Custom: blob}
			default:
				return
			}
		}
	}

	// pendingUpdate holds a StateChanged event from earlier in the current
	// step until the matching NodeEnd/ParallelEnd arrives, so Updates can
	// be emitted after Values instead of the moment the diff is computed.
	var pendingUpdate *emit.GraphEvent[S]

	flushStep := func(node string, hasState bool, state S) {
		drainCustom()
		if hasState && emit.HasMode(modes, emit.Values) {
			out <- emit.StreamEvent[S]{Kind: emit.StreamValues, Node: node, State: state}
		}
		if pendingUpdate != nil && emit.HasMode(modes, emit.Updates) {
			out <- emit.StreamEvent[S]{Kind: emit.StreamUpdates, Node: pendingUpdate.Node, State: state}
		}
		pendingUpdate = nil
		if emit.HasMode(modes, emit.Events) {
			out <- emit.StreamEvent[S]{Kind: emit.StreamNodeEnd, Node: node}
		}
	}

	handle := e.registry.Register(func(ev emit.GraphEvent[S]) {
		switch ev.Kind {
		case emit.NodeStart:
			if emit.HasMode(modes, emit.Events) {
				out <- emit.StreamEvent[S]{Kind: emit.StreamNodeStart, Node: ev.Node}
			}
		case emit.NodeEnd:
			flushStep(ev.Node, ev.HasState, ev.State)
		case emit.ParallelEnd:
			node := ""
			if len(ev.Nodes) > 0 {
				node = ev.Nodes[len(ev.Nodes)-1]
			}
			flushStep(node, ev.HasState, ev.State)
		case emit.StateChanged:
			stashed := ev
			pendingUpdate = &stashed
		}
	})

	go func() {
		_, _ = e.runFrom(ctx, uuid.NewString(), initial, e.graph.entryPoint, nil)

		drainCustom()

		e.registry.Deregister(handle)
		close(out)
	}()

	return out
}
