package graph

import (
	"fmt"
	"time"
)

// Builder collects nodes, edges, entry point, and compile-time settings for
// a workflow graph, in any order, then produces an immutable CompiledGraph
// (§4.2). A Builder is not safe for concurrent use; build the graph on one
// goroutine before invoking it from many.
type Builder[S any] struct {
	nodes            map[string]registeredNode[S]
	nodeOrder        []string
	simpleEdges      map[string]simpleEdge
	parallelEdges    map[string]parallelEdge
	conditionalEdges map[string]conditionalEdge[S]
	entryPoint       string
	settings         Settings[S]
	err              error
}

// NewBuilder creates an empty Builder with the spec's default settings
// (§3 invariants: graph timeout 1h, node timeout 5m, recursion limit 25).
func NewBuilder[S any]() *Builder[S] {
	return &Builder[S]{
		nodes:            make(map[string]registeredNode[S]),
		simpleEdges:      make(map[string]simpleEdge),
		parallelEdges:    make(map[string]parallelEdge),
		conditionalEdges: make(map[string]conditionalEdge[S]),
		settings:         DefaultSettings[S](),
	}
}

// AddNode registers node under id, applying any NodeOptions.
func (b *Builder[S]) AddNode(id string, node Node[S], opts ...NodeOption) *Builder[S] {
	if _, exists := b.nodes[id]; exists {
		b.setErr(fmt.Errorf("node %q already registered", id))
		return b
	}
	var cfg NodeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	b.nodes[id] = registeredNode[S]{id: id, node: node, config: cfg}
	b.nodeOrder = append(b.nodeOrder, id)
	return b
}

// AddSimpleEdge adds an unconditional from->to jump. At most one simple
// edge may originate from a given source, and it may not coexist with a
// conditional edge from the same source (§3 invariants).
func (b *Builder[S]) AddSimpleEdge(from, to string) *Builder[S] {
	if _, exists := b.simpleEdges[from]; exists {
		b.setErr(fmt.Errorf("%w: duplicate simple edge from %q", ErrConflictingEdges, from))
		return b
	}
	b.simpleEdges[from] = simpleEdge{from: from, to: to}
	return b
}

// AddParallelEdges fans out from a single source to every target
// concurrently. targets must be non-empty (§3 invariants).
func (b *Builder[S]) AddParallelEdges(from string, targets []string) *Builder[S] {
	if len(targets) == 0 {
		b.setErr(fmt.Errorf("%w: from %q", ErrEmptyParallelBranchSet, from))
		return b
	}
	b.parallelEdges[from] = parallelEdge{from: from, targets: targets}
	return b
}

// AddConditionalEdges routes from a single source through classifier and a
// tag->target table. At most one conditional edge may originate from a
// given source, and a node with a conditional edge has no simple edge from
// it (§3 invariants).
func (b *Builder[S]) AddConditionalEdges(from string, classifier Classifier[S], routes map[string]string) *Builder[S] {
	if _, exists := b.conditionalEdges[from]; exists {
		b.setErr(fmt.Errorf("%w: duplicate conditional edge from %q", ErrConflictingEdges, from))
		return b
	}
	b.conditionalEdges[from] = conditionalEdge[S]{from: from, classifier: classifier, routes: routes}
	return b
}

// SetEntryPoint names the node execution starts at.
func (b *Builder[S]) SetEntryPoint(id string) *Builder[S] {
	b.entryPoint = id
	return b
}

func (b *Builder[S]) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Builder setters, one per §6 "Setters" entry.

func (b *Builder[S]) GraphTimeout(d time.Duration) *Builder[S] {
	b.settings.GraphTimeout = d
	return b
}

func (b *Builder[S]) NodeTimeout(d time.Duration) *Builder[S] {
	b.settings.NodeTimeout = d
	return b
}

func (b *Builder[S]) RetryPolicy(policy RetryPolicy) *Builder[S] {
	b.settings.RetryPolicy = &policy
	return b
}

func (b *Builder[S]) MaxStateSize(bytes int) *Builder[S] {
	b.settings.MaxStateSize = bytes
	return b
}

func (b *Builder[S]) RecursionLimit(n int) *Builder[S] {
	b.settings.RecursionLimit = n
	return b
}

func (b *Builder[S]) MaxParallelTasks(n int) *Builder[S] {
	b.settings.MaxParallelTasks = n
	return b
}

func (b *Builder[S]) StreamChannelCapacity(n int) *Builder[S] {
	b.settings.StreamChannelCapacity = n
	return b
}

func (b *Builder[S]) WithCheckpointer(cp Checkpointer[S]) *Builder[S] {
	b.settings.Checkpointer = cp
	return b
}

func (b *Builder[S]) ThreadID(id string) *Builder[S] {
	b.settings.ThreadID = id
	return b
}

func (b *Builder[S]) InterruptBefore(ids ...string) *Builder[S] {
	b.settings.InterruptBefore = append(b.settings.InterruptBefore, ids...)
	return b
}

func (b *Builder[S]) InterruptAfter(ids ...string) *Builder[S] {
	b.settings.InterruptAfter = append(b.settings.InterruptAfter, ids...)
	return b
}

func (b *Builder[S]) MetricsEnabled(metrics *PrometheusMetrics) *Builder[S] {
	b.settings.MetricsEnabled = true
	b.settings.Metrics = metrics
	return b
}

func (b *Builder[S]) TraceBaseDir(dir string) *Builder[S] {
	b.settings.TraceBaseDir = dir
	return b
}

func (b *Builder[S]) WithDistributedScheduler(s DistributedScheduler[S]) *Builder[S] {
	b.settings.DistributedScheduler = s
	return b
}

// Compile validates topology and settings and returns an immutable
// CompiledGraph. It rejects graphs with parallel edges when S does not
// implement Merger (§4.2); use CompileWithMerge for state types that merge
// via an external function instead.
func (b *Builder[S]) Compile() (*CompiledGraph[S], error) {
	if len(b.parallelEdges) > 0 && !isMergeable[S]() {
		return nil, ErrUnmergeableState
	}
	return b.compile(nil)
}

// CompileWithMerge is Compile for state types that don't implement Merger
// natively; mergeFn folds branch outputs left-to-right in declaration order
// (§4.4.3) instead.
func (b *Builder[S]) CompileWithMerge(mergeFn MergeFunc[S]) (*CompiledGraph[S], error) {
	return b.compile(mergeFn)
}

func (b *Builder[S]) compile(mergeFn MergeFunc[S]) (*CompiledGraph[S], error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.entryPoint == "" {
		return nil, ErrMissingEntryPoint
	}
	if _, ok := b.nodes[b.entryPoint]; !ok {
		return nil, ErrMissingEntryPoint
	}
	if err := b.settings.Validate(); err != nil {
		return nil, err
	}

	allTargets := func(id string) error {
		if id == endSentinel {
			return nil
		}
		if _, ok := b.nodes[id]; !ok {
			return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
		}
		return nil
	}
	for from, e := range b.simpleEdges {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: source %q", ErrNodeNotFound, from)
		}
		if _, hasCond := b.conditionalEdges[from]; hasCond {
			return nil, fmt.Errorf("%w: %q has both a simple and conditional edge", ErrConflictingEdges, from)
		}
		if err := allTargets(e.to); err != nil {
			return nil, err
		}
	}
	for from, e := range b.parallelEdges {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: source %q", ErrNodeNotFound, from)
		}
		if _, hasSimple := b.simpleEdges[from]; hasSimple {
			return nil, fmt.Errorf("%w: %q has both a parallel and simple edge", ErrConflictingEdges, from)
		}
		if _, hasCond := b.conditionalEdges[from]; hasCond {
			return nil, fmt.Errorf("%w: %q has both a parallel and conditional edge", ErrConflictingEdges, from)
		}
		for _, to := range e.targets {
			if err := allTargets(to); err != nil {
				return nil, err
			}
		}
	}
	for from, e := range b.conditionalEdges {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: source %q", ErrNodeNotFound, from)
		}
		for _, to := range e.routes {
			if err := allTargets(to); err != nil {
				return nil, err
			}
		}
	}

	return &CompiledGraph[S]{
		nodes:            b.nodes,
		nodeOrder:        b.nodeOrder,
		simpleEdges:      b.simpleEdges,
		parallelEdges:    b.parallelEdges,
		conditionalEdges: b.conditionalEdges,
		entryPoint:       b.entryPoint,
		settings:         b.settings,
		mergeFn:          mergeFn,
	}, nil
}
