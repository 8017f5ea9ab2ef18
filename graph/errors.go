// Package graph provides the core graph execution engine for stepgraph.
package graph

import "errors"

// EngineError is a structured error carrying a stable, machine-matchable
// Code alongside a human-readable Message. Node and node ID are filled in
// where the failure can be attributed to a specific node.
type EngineError struct {
	Message string
	Code    string
	NodeID  string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Sentinel errors for the categories in the failure semantics table (§4.4.6).
// Callers match with errors.Is; engine-internal code wraps these with
// *EngineError via %w when node/graph context is available.
var (
	// ErrNodeNotFound indicates an edge referenced a node name absent from
	// the compiled graph's node map.
	ErrNodeNotFound = errors.New("edge target not found in node map")

	// ErrInvalidEdge indicates a conditional classifier returned a tag with
	// no entry in that edge's route table.
	ErrInvalidEdge = errors.New("conditional edge tag has no matching route")

	// ErrRecursionLimit indicates the step counter exceeded the configured
	// recursion limit without reaching a terminal edge.
	ErrRecursionLimit = errors.New("recursion limit exceeded")

	// ErrStateSizeExceeded indicates a node's output state serialized larger
	// than the configured maximum.
	ErrStateSizeExceeded = errors.New("state size exceeds configured maximum")

	// ErrGraphTimeout indicates the graph-level wall clock budget elapsed
	// before the invocation completed.
	ErrGraphTimeout = errors.New("graph execution exceeded wall clock budget")

	// ErrNodeTimeout indicates a single node exceeded its timeout on final
	// retry exhaustion.
	ErrNodeTimeout = errors.New("node execution timed out")

	// ErrParallelExecutionFailed indicates a parallel fan-out produced no
	// successful branch results.
	ErrParallelExecutionFailed = errors.New("parallel step produced no successful branch results")

	// ErrInterruptWithoutCheckpointer indicates interrupt_before/after was
	// configured for some node but no checkpointer was supplied at compile
	// or invoke time.
	ErrInterruptWithoutCheckpointer = errors.New("interrupt configured without a checkpointer")

	// ErrInterruptWithoutThreadID indicates interrupt_before/after was
	// configured but no thread id was supplied.
	ErrInterruptWithoutThreadID = errors.New("interrupt configured without a thread id")

	// ErrNoCheckpointToResume indicates Resume() was called for a thread
	// with no saved checkpoint.
	ErrNoCheckpointToResume = errors.New("no checkpoint to resume for thread")

	// ErrUnmergeableState indicates Compile() was called on a graph with
	// parallel edges whose state type does not implement Merger.
	ErrUnmergeableState = errors.New("graph has parallel edges but state is not mergeable")

	// ErrEmptyParallelBranchSet indicates a parallel edge was declared with
	// zero targets.
	ErrEmptyParallelBranchSet = errors.New("parallel edge has no target nodes")

	// ErrMissingEntryPoint indicates compile() was called without a start
	// node configured, or the configured start node is absent.
	ErrMissingEntryPoint = errors.New("entry point not set or not present in node map")

	// ErrConflictingEdges indicates that more than one edge was declared from
	// the same source node: two simple edges, two conditional edges, a simple
	// and a conditional edge, or a parallel edge alongside either kind.
	ErrConflictingEdges = errors.New("conflicting edges declared from the same source node")

	// ErrInvalidRetryPolicy indicates a RetryPolicy failed validation.
	ErrInvalidRetryPolicy = errors.New("invalid retry policy configuration")
)
