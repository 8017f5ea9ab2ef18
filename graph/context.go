package graph

import "context"

type contextKey int

const (
	customWriterKey contextKey = iota
	runIDKey
	stepIDKey
)

// customWriter is the task-local channel a streaming-capable node writes
// blobs to via EmitCustom. Stream installs it into the run's ctx when the
// Custom mode is active, and the engine hides it from every node not marked
// Streaming; it is never stored anywhere global (§9 "Per-call ambient
// context").
type customWriter struct {
	ch chan any
}

func withCustomWriter(ctx context.Context, ch chan any) context.Context {
	return context.WithValue(ctx, customWriterKey, &customWriter{ch: ch})
}

// EmitCustom sends blob to the Custom stream for the node currently
// executing under ctx. It is a no-op if the node was not marked Streaming,
// or if Stream() was not called with the Custom mode active — in both
// cases no writer was installed and the call silently drops the blob,
// matching a side channel nodes can call unconditionally without checking
// whether anyone's listening.
func EmitCustom(ctx context.Context, blob any) {
	w, ok := ctx.Value(customWriterKey).(*customWriter)
	if !ok || w == nil || w.ch == nil {
		return
	}
	select {
	case w.ch <- blob:
	default:
		// Channel full: drop rather than block the node on a slow consumer.
	}
}

func withRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

func runIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}
