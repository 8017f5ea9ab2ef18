package graph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fenwick-run/stepgraph/graph/emit"
)

// TraceStep records one node's execution within a trace.
type TraceStep struct {
	Node       string    `json:"node"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Duration   string    `json:"duration"`
	Error      string    `json:"error,omitempty"`
}

// TraceEdgeCrossing records one edge traversal within a trace.
type TraceEdgeCrossing struct {
	From      string    `json:"from"`
	To        []string  `json:"to"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Trace is the opaque, append-only record of a single Invoke/Stream/Resume
// call: the nodes it ran, in order, with their timings, and the edges it
// crossed between them. Engines with Settings.TraceBaseDir set write one
// Trace per run to <TraceBaseDir>/<RunID>.json.
type Trace struct {
	RunID      string              `json:"runID"`
	EntryPoint string              `json:"entryPoint"`
	NodeCount  int                 `json:"nodeCount"`
	StartedAt  time.Time           `json:"startedAt"`
	FinishedAt time.Time           `json:"finishedAt"`
	Steps      []TraceStep         `json:"steps"`
	Edges      []TraceEdgeCrossing `json:"edges"`

	pending map[string]time.Time
}

func newTrace(runID, entryPoint string, manifest Manifest) *Trace {
	return &Trace{
		RunID:      runID,
		EntryPoint: entryPoint,
		NodeCount:  len(manifest.Nodes),
		StartedAt:  time.Now(),
		pending:    make(map[string]time.Time),
	}
}

// record folds one dispatched event into the trace. Only event kinds that
// carry timing or routing information produce a Step or Edge entry.
func (t *Trace) record(ev emit.GraphEvent[any]) {
	switch ev.Kind {
	case emit.NodeStart:
		t.pending[ev.Node] = ev.Timestamp
	case emit.NodeEnd:
		t.closeStep(ev.Node, ev.Timestamp, nil)
	case emit.NodeError:
		t.closeStep(ev.Node, ev.Timestamp, ev.Err)
	case emit.EdgeTraversal, emit.EdgeEvaluated:
		t.Edges = append(t.Edges, TraceEdgeCrossing{From: ev.From, To: ev.To, Type: ev.EdgeType, Timestamp: ev.Timestamp})
	}
}

func (t *Trace) closeStep(node string, finishedAt time.Time, err error) {
	startedAt, ok := t.pending[node]
	if !ok {
		startedAt = finishedAt
	}
	delete(t.pending, node)
	step := TraceStep{Node: node, StartedAt: startedAt, FinishedAt: finishedAt, Duration: finishedAt.Sub(startedAt).String()}
	if err != nil {
		step.Error = err.Error()
	}
	t.Steps = append(t.Steps, step)
}

// WriteFile serializes the trace as JSON to <baseDir>/<RunID>.json,
// creating baseDir if it does not exist.
func (t *Trace) WriteFile(baseDir string) error {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(baseDir, t.RunID+".json"), data, 0o644)
}

// attachTrace registers a temporary listener that folds dispatched events
// into a new Trace for runID, returning a finish function that stops the
// listener, stamps FinishedAt, and writes the trace file on a background
// goroutine. finish is a no-op if TraceBaseDir is unset.
func (e *Engine[S]) attachTrace(runID, entryPoint string, manifest Manifest) func() {
	if e.graph.settings.TraceBaseDir == "" {
		return func() {}
	}
	trace := newTrace(runID, entryPoint, manifest)
	handle := e.registry.Register(func(ev emit.GraphEvent[S]) {
		if ev.RunID != runID {
			return
		}
		trace.record(toAnyEvent(ev))
	})
	baseDir := e.graph.settings.TraceBaseDir
	return func() {
		e.registry.Deregister(handle)
		trace.FinishedAt = time.Now()
		go func() {
			_ = trace.WriteFile(baseDir)
		}()
	}
}

func toAnyEvent[S any](ev emit.GraphEvent[S]) emit.GraphEvent[any] {
	return emit.GraphEvent[any]{
		Kind:             ev.Kind,
		Timestamp:        ev.Timestamp,
		RunID:            ev.RunID,
		Node:             ev.Node,
		From:             ev.From,
		To:               ev.To,
		Nodes:            ev.Nodes,
		Err:              ev.Err,
		EdgeType:         ev.EdgeType,
		EvaluationResult: ev.EvaluationResult,
		FieldsAdded:      ev.FieldsAdded,
		FieldsRemoved:    ev.FieldsRemoved,
		FieldsModified:   ev.FieldsModified,
		ExecutionPath:    ev.ExecutionPath,
	}
}
