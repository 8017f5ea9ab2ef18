package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter implements Emitter by writing structured log output to a
// writer, in either a human-readable text mode or a JSONL mode.
//
// Example text output:
//
//	[node_start] runID=run-001 node=nodeA
//
// Example JSON output:
//
//	{"kind":"node_start","runID":"run-001","node":"nodeA"}
type LogEmitter[S any] struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter writing to writer (os.Stdout if nil)
// in text mode, or JSONL mode when jsonMode is true.
func NewLogEmitter[S any](writer io.Writer, jsonMode bool) *LogEmitter[S] {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter[S]{writer: writer, jsonMode: jsonMode}
}

// Emit writes a single event in the configured mode.
func (l *LogEmitter[S]) Emit(event GraphEvent[S]) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter[S]) emitJSON(event GraphEvent[S]) {
	record := struct {
		Kind  string `json:"kind"`
		RunID string `json:"runID"`
		Node  string `json:"node,omitempty"`
		From  string `json:"from,omitempty"`
		To    []string `json:"to,omitempty"`
		Error string `json:"error,omitempty"`
	}{
		Kind:  event.Kind.String(),
		RunID: event.RunID,
		Node:  event.Node,
		From:  event.From,
		To:    event.To,
	}
	if event.Err != nil {
		record.Error = event.Err.Error()
	}
	data, err := json.Marshal(record)
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter[S]) emitText(event GraphEvent[S]) {
	_, _ = fmt.Fprintf(l.writer, "[%s] runID=%s", event.Kind, event.RunID)
	if event.Node != "" {
		_, _ = fmt.Fprintf(l.writer, " node=%s", event.Node)
	}
	if event.From != "" {
		_, _ = fmt.Fprintf(l.writer, " from=%s to=%v", event.From, event.To)
	}
	if event.Err != nil {
		_, _ = fmt.Fprintf(l.writer, " error=%v", event.Err)
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

// EmitBatch writes each event in order by calling Emit once per event.
func (l *LogEmitter[S]) EmitBatch(_ context.Context, events []GraphEvent[S]) error {
	for _, event := range events {
		l.Emit(event)
	}
	return nil
}

// Flush is a no-op: LogEmitter writes synchronously with no internal
// buffering of its own.
func (l *LogEmitter[S]) Flush(_ context.Context) error {
	return nil
}
