package graph

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/fenwick-run/stepgraph/graph/emit"
)

// Engine drives execution of a CompiledGraph: stepping node to node along
// resolved edges, fanning out and merging parallel branches, honoring
// interrupts and retry policy, and emitting GraphEvents to every
// registered callback and Emitter.
type Engine[S any] struct {
	graph *CompiledGraph[S]

	registry *emit.Registry[S]

	mu       sync.Mutex
	emitters []emit.Emitter[S]

	sem *semaphore.Weighted
}

func newEngine[S any](g *CompiledGraph[S]) *Engine[S] {
	e := &Engine[S]{
		graph:    g,
		registry: emit.NewRegistry[S](),
	}
	if g.settings.MaxParallelTasks > 0 {
		e.sem = semaphore.NewWeighted(int64(g.settings.MaxParallelTasks))
	}
	return e
}

// OnEvent registers cb to receive every GraphEvent for every run this
// Engine executes. The returned handle can be passed to OffEvent.
func (e *Engine[S]) OnEvent(cb emit.Callback[S]) int {
	return e.registry.Register(cb)
}

// OffEvent deregisters a callback previously returned by OnEvent. Safe to
// call from within a callback itself.
func (e *Engine[S]) OffEvent(handle int) {
	e.registry.Deregister(handle)
}

// AddEmitter attaches em to receive every GraphEvent in addition to
// registered callbacks.
func (e *Engine[S]) AddEmitter(em emit.Emitter[S]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitters = append(e.emitters, em)
}

func (e *Engine[S]) dispatch(ev emit.GraphEvent[S]) {
	e.registry.Dispatch(ev)
	e.mu.Lock()
	emitters := make([]emit.Emitter[S], len(e.emitters))
	copy(emitters, e.emitters)
	e.mu.Unlock()
	for _, em := range emitters {
		em.Emit(ev)
	}
}

// hasEventConsumers reports whether anything is listening for GraphEvents
// right now. The engine uses this to skip diffState entirely on the hot
// path when there's nobody around to read the result.
func (e *Engine[S]) hasEventConsumers() bool {
	if e.registry.Len() > 0 {
		return true
	}
	e.mu.Lock()
	n := len(e.emitters)
	e.mu.Unlock()
	return n > 0
}

// ExecutionResult is returned by Invoke and Resume (§6).
type ExecutionResult[S any] struct {
	FinalState    S
	NodesExecuted []string
	InterruptedAt *string
	NextNodes     []string
}

func seededRand(runID string) *rand.Rand {
	h := sha256.New()
	h.Write([]byte(runID))
	sum := h.Sum(nil)
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	return rand.New(rand.NewSource(seed)) // #nosec G404 -- retry jitter, not a security boundary
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// Invoke runs the graph to completion or to its first interrupt point,
// starting a fresh thread-less run unless Settings.ThreadID is configured
// (in which case a checkpoint chain accumulates under that id).
func (e *Engine[S]) Invoke(ctx context.Context, initial S) (ExecutionResult[S], error) {
	runID := uuid.NewString()
	return e.runFrom(ctx, runID, initial, e.graph.entryPoint, nil)
}

// Resume continues a previously interrupted run from the latest checkpoint
// on Settings.ThreadID. Returns ErrNoCheckpointToResume if none exists.
func (e *Engine[S]) Resume(ctx context.Context) (ExecutionResult[S], error) {
	if e.graph.settings.Checkpointer == nil {
		return ExecutionResult[S]{}, ErrInterruptWithoutCheckpointer
	}
	if e.graph.settings.ThreadID == "" {
		return ExecutionResult[S]{}, ErrInterruptWithoutThreadID
	}
	cp, err := e.graph.settings.Checkpointer.GetLatest(ctx, e.graph.settings.ThreadID)
	if err != nil {
		return ExecutionResult[S]{}, fmt.Errorf("%w: %w", ErrNoCheckpointToResume, err)
	}
	return e.runFrom(ctx, uuid.NewString(), cp.State, cp.Node, &cp.Node)
}

// GetCurrentState returns the state from the latest checkpoint on
// Settings.ThreadID.
func (e *Engine[S]) GetCurrentState(ctx context.Context) (S, error) {
	var zero S
	if e.graph.settings.Checkpointer == nil || e.graph.settings.ThreadID == "" {
		return zero, ErrInterruptWithoutCheckpointer
	}
	cp, err := e.graph.settings.Checkpointer.GetLatest(ctx, e.graph.settings.ThreadID)
	if err != nil {
		return zero, err
	}
	return cp.State, nil
}

// UpdateState rewrites the latest checkpoint's state via fn, appending a
// new checkpoint to the chain. Used to inject human input during an
// interrupt before Resume is called.
func (e *Engine[S]) UpdateState(ctx context.Context, fn func(S) S) error {
	if e.graph.settings.Checkpointer == nil || e.graph.settings.ThreadID == "" {
		return ErrInterruptWithoutCheckpointer
	}
	threadID := e.graph.settings.ThreadID
	cp, err := e.graph.settings.Checkpointer.GetLatest(ctx, threadID)
	if err != nil {
		return err
	}
	cp.State = fn(cp.State)
	cp.PreviousID = cp.ID
	cp.ID = newCheckpointID()
	cp.Timestamp = time.Now()
	return e.graph.settings.Checkpointer.Save(ctx, cp)
}

func (e *Engine[S]) saveCheckpoint(ctx context.Context, runID, threadID, node string, state S, previous string) error {
	if e.graph.settings.Checkpointer == nil {
		return nil
	}
	return e.graph.settings.Checkpointer.Save(ctx, Checkpoint[S]{
		ID:         newCheckpointID(),
		PreviousID: previous,
		ThreadID:   threadID,
		Node:       node,
		State:      state,
		Timestamp:  time.Now(),
	})
}

// runFrom is the driver loop shared by Invoke and Resume: step node to
// node along resolved edges, honoring interrupts, retries, recursion
// limit, and graph timeout.
func (e *Engine[S]) runFrom(ctx context.Context, runID string, state S, startNode string, resumeSkip *string) (ExecutionResult[S], error) {
	if e.graph.settings.GraphTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.graph.settings.GraphTimeout)
		defer cancel()
	}
	ctx = withRunID(ctx, runID)
	rng := seededRand(runID)

	manifest := e.graph.Manifest()
	e.dispatch(emit.GraphEvent[S]{Kind: emit.GraphStart, Timestamp: time.Now(), RunID: runID, Manifest: manifest})

	finishTrace := e.attachTrace(runID, startNode, manifest)
	defer finishTrace()

	executed := make([]string, 0, 8)
	current := startNode
	steps := 0
	threadID := e.graph.settings.ThreadID
	lastCheckpointID := ""
	if threadID != "" && e.graph.settings.Checkpointer != nil {
		if head, err := e.graph.settings.Checkpointer.GetLatest(ctx, threadID); err == nil {
			lastCheckpointID = head.ID
		}
	}
	isResumeNode := resumeSkip != nil

	for current != endSentinel {
		select {
		case <-ctx.Done():
			return ExecutionResult[S]{FinalState: state, NodesExecuted: executed}, ctx.Err()
		default:
		}

		steps++
		if steps > e.graph.settings.RecursionLimit {
			return ExecutionResult[S]{FinalState: state, NodesExecuted: executed}, ErrRecursionLimit
		}

		reg, ok := e.graph.nodes[current]
		if !ok {
			return ExecutionResult[S]{FinalState: state, NodesExecuted: executed}, fmt.Errorf("%w: %q", ErrNodeNotFound, current)
		}

		skipInterruptBefore := isResumeNode && resumeSkip != nil && *resumeSkip == current
		if containsStr(e.graph.settings.InterruptBefore, current) && !skipInterruptBefore {
			if err := e.saveCheckpoint(ctx, runID, threadID, current, state, lastCheckpointID); err != nil {
				return ExecutionResult[S]{FinalState: state, NodesExecuted: executed}, err
			}
			node := current
			return ExecutionResult[S]{FinalState: state, NodesExecuted: executed, InterruptedAt: &node, NextNodes: []string{node}}, nil
		}
		isResumeNode = false

		e.dispatch(emit.GraphEvent[S]{Kind: emit.NodeStart, Timestamp: time.Now(), RunID: runID, Node: current, NodeConfig: reg.config.Metadata})

		newState, err := e.runSingle(ctx, runID, reg, current, state, rng)
		if err != nil {
			e.dispatch(emit.GraphEvent[S]{Kind: emit.NodeError, Timestamp: time.Now(), RunID: runID, Node: current, Err: err})
			return ExecutionResult[S]{FinalState: state, NodesExecuted: executed}, err
		}

		if !reg.config.ReadOnly && e.hasEventConsumers() {
			if diff, ok := diffState(state, newState); ok {
				e.dispatch(emit.GraphEvent[S]{
					Kind: emit.StateChanged, Timestamp: time.Now(), RunID: runID, Node: current,
					FieldsAdded: diff.Added, FieldsRemoved: diff.Removed, FieldsModified: diff.Modified,
				})
			}
		}

		if e.graph.settings.MaxStateSize > 0 {
			if sz, err := stateSize(newState); err == nil && sz > e.graph.settings.MaxStateSize {
				return ExecutionResult[S]{FinalState: state, NodesExecuted: executed}, ErrStateSizeExceeded
			}
		}

		state = newState
		executed = append(executed, current)

		e.dispatch(emit.GraphEvent[S]{Kind: emit.NodeEnd, Timestamp: time.Now(), RunID: runID, Node: current, NodeConfig: reg.config.Metadata, HasState: true, State: state})

		// checkpointNode is the node whose outgoing edge decides where the
		// run goes next. It's current itself, unless current fans out to a
		// parallel edge, in which case routing happens from the last
		// branch's own edge once the merge has landed in state.
		checkpointNode := current

		if pe, ok := e.graph.parallelEdges[current]; ok {
			e.dispatch(emit.GraphEvent[S]{Kind: emit.ParallelStart, Timestamp: time.Now(), RunID: runID, From: current, Nodes: pe.targets})

			merged, err := e.runParallel(ctx, runID, pe.targets, state, rng)
			if err != nil {
				e.dispatch(emit.GraphEvent[S]{Kind: emit.NodeError, Timestamp: time.Now(), RunID: runID, Node: current, Err: err})
				return ExecutionResult[S]{FinalState: state, NodesExecuted: executed}, err
			}

			checkpointNode = pe.targets[len(pe.targets)-1]

			if e.hasEventConsumers() {
				if diff, ok := diffState(state, merged); ok {
					e.dispatch(emit.GraphEvent[S]{
						Kind: emit.StateChanged, Timestamp: time.Now(), RunID: runID, Node: checkpointNode,
						FieldsAdded: diff.Added, FieldsRemoved: diff.Removed, FieldsModified: diff.Modified,
					})
				}
			}

			if e.graph.settings.MaxStateSize > 0 {
				if sz, err := stateSize(merged); err == nil && sz > e.graph.settings.MaxStateSize {
					return ExecutionResult[S]{FinalState: merged, NodesExecuted: executed}, ErrStateSizeExceeded
				}
			}

			state = merged
			executed = append(executed, pe.targets...)

			e.dispatch(emit.GraphEvent[S]{Kind: emit.ParallelEnd, Timestamp: time.Now(), RunID: runID, From: current, Nodes: pe.targets, HasState: true, State: state})
		}

		if threadID != "" && e.graph.settings.Checkpointer != nil {
			cpID := newCheckpointID()
			if err := e.graph.settings.Checkpointer.Save(ctx, Checkpoint[S]{
				ID: cpID, PreviousID: lastCheckpointID, ThreadID: threadID, Node: checkpointNode, State: state, Timestamp: time.Now(),
			}); err != nil {
				return ExecutionResult[S]{FinalState: state, NodesExecuted: executed}, err
			}
			lastCheckpointID = cpID
		}

		// Route from checkpointNode: current itself for an ordinary step,
		// or the last parallel branch once its own edge has somewhere to
		// send the merged state (e.g. split -> [a, b], b -> join).
		next, err := e.resolveNext(runID, checkpointNode, state)
		if err != nil {
			return ExecutionResult[S]{FinalState: state, NodesExecuted: executed}, err
		}

		if containsStr(e.graph.settings.InterruptAfter, current) {
			// Record the resume point (the node after current, not current
			// itself) so Resume() picks up execution there instead of
			// re-running the node that just triggered the interrupt.
			if err := e.saveCheckpoint(ctx, runID, threadID, next, state, lastCheckpointID); err != nil {
				return ExecutionResult[S]{FinalState: state, NodesExecuted: executed}, err
			}
			return ExecutionResult[S]{FinalState: state, NodesExecuted: executed, InterruptedAt: stringPtr(current), NextNodes: []string{next}}, nil
		}

		current = next
	}

	e.dispatch(emit.GraphEvent[S]{Kind: emit.GraphEnd, Timestamp: time.Now(), RunID: runID, ExecutionPath: executed})
	return ExecutionResult[S]{FinalState: state, NodesExecuted: executed}, nil
}

func stringPtr(s string) *string { return &s }

// resolveNext resolves the simple/conditional route onward from from, which
// is either the just-executed node or, after a parallel fan-out and merge,
// the last branch target (its own edge decides where the merged state goes
// next).
func (e *Engine[S]) resolveNext(runID, from string, state S) (string, error) {
	route, err := resolveEdges(e.graph, from, state)
	if err != nil {
		return "", err
	}
	if route.Type == EdgeConditional {
		alternatives := make([]emit.EdgeAlternative, 0, len(route.Alternatives))
		for _, alt := range route.Alternatives {
			alternatives = append(alternatives, emit.EdgeAlternative{To: alt.To, Reason: alt.Reason, WasEvaluated: alt.WasEvaluated})
		}
		e.dispatch(emit.GraphEvent[S]{
			Kind: emit.EdgeEvaluated, Timestamp: time.Now(), RunID: runID, From: from, To: []string{route.To},
			EdgeType: route.Type.String(), EvaluationResult: route.EvaluationResult, Alternatives: alternatives,
		})
	} else {
		e.dispatch(emit.GraphEvent[S]{Kind: emit.EdgeTraversal, Timestamp: time.Now(), RunID: runID, From: from, To: []string{route.To}, EdgeType: route.Type.String()})
	}
	return route.To, nil
}

// runSingle executes one node, applying its effective timeout and retry
// policy. Only a timeout error triggers a retry; any other node error is
// returned immediately (§4.4.2).
func (e *Engine[S]) runSingle(ctx context.Context, runID string, reg registeredNode[S], nodeID string, state S, rng *rand.Rand) (S, error) {
	timeout := effectiveTimeout(reg.config.Policy, e.graph.settings.NodeTimeout)
	policy := effectiveRetryPolicy(reg.config.Policy, e.graph.settings.RetryPolicy)
	if !reg.config.Streaming {
		// Only nodes marked Streaming see the Custom writer.
		ctx = context.WithValue(ctx, customWriterKey, (*customWriter)(nil))
	}

	attempt := 0
	for {
		result, err := executeNodeWithTimeout(ctx, reg.node, nodeID, state, timeout)
		if err == nil {
			return result, nil
		}
		if policy == nil || attempt >= policy.MaxRetries || !errIsNodeTimeout(err) {
			return result, err
		}
		if e.graph.settings.MetricsEnabled && e.graph.settings.Metrics != nil {
			e.graph.settings.Metrics.IncrementRetries(runID, nodeID, "timeout")
		}
		delay := policy.computeDelay(attempt, rng)
		attempt++
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func errIsNodeTimeout(err error) bool {
	ee, ok := err.(*EngineError)
	return ok && ee.Code == "NODE_TIMEOUT"
}

// runParallel fans out to targets concurrently (bounded by
// Settings.MaxParallelTasks, or delegated to a DistributedScheduler), then
// folds their resulting states left-to-right in declaration order. The
// caller resolves the next node from the last target's own edge once the
// merge completes; runParallel itself only produces the merged state.
func (e *Engine[S]) runParallel(ctx context.Context, runID string, targets []string, state S, _ *rand.Rand) (S, error) {
	nodeMap := make(map[string]Node[S], len(targets))
	for _, t := range targets {
		reg, ok := e.graph.nodes[t]
		if !ok {
			return state, fmt.Errorf("%w: %q", ErrNodeNotFound, t)
		}
		nodeMap[t] = reg.node
	}

	if e.graph.settings.DistributedScheduler != nil {
		results, err := e.graph.settings.DistributedScheduler.ExecuteParallel(ctx, targets, state, nodeMap)
		if err != nil {
			return state, fmt.Errorf("%w: %w", ErrParallelExecutionFailed, err)
		}
		return e.mergeResults(state, results)
	}

	results := make([]S, len(targets))
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func(i int, nodeID string) {
			defer wg.Done()
			if e.sem != nil {
				if err := e.sem.Acquire(ctx, 1); err != nil {
					errs[i] = err
					return
				}
				defer e.sem.Release(1)
			}
			branchState, cloneErr := cloneState(state)
			if cloneErr != nil {
				errs[i] = cloneErr
				return
			}
			reg := e.graph.nodes[nodeID]
			branchRng := seededRand(runID + "/" + nodeID)
			out, err := e.runSingle(ctx, runID, reg, nodeID, branchState, branchRng)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = out
		}(i, t)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return state, err
		}
	}

	return e.mergeResults(state, results)
}

func (e *Engine[S]) mergeResults(base S, results []S) (S, error) {
	if !isMergeable[S]() && e.graph.mergeFn == nil {
		return base, ErrUnmergeableState
	}
	return mergeBranches(base, results, e.graph.mergeFn), nil
}
