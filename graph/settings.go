package graph

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
)

// DistributedScheduler replaces in-process goroutine spawn for parallel
// fan-out when configured (§6). Implementations must honor the same
// per-node timeout contract as in-process execution.
type DistributedScheduler[S any] interface {
	ExecuteParallel(ctx context.Context, nodes []string, state S, nodeMap map[string]Node[S]) ([]S, error)
}

// Settings holds a Compiled Graph's per-graph configuration (§3). Validated
// by Validate() before Builder.Compile accepts it.
type Settings[S any] struct {
	// GraphTimeout bounds the whole invocation. Default 1 hour.
	GraphTimeout time.Duration `validate:"gt=0"`

	// NodeTimeout bounds a single node absent a NodePolicy override.
	// Default 5 minutes.
	NodeTimeout time.Duration `validate:"gt=0"`

	// RecursionLimit caps the step counter. Default 25.
	RecursionLimit int `validate:"gt=0"`

	// RetryPolicy applies to every node absent a NodePolicy override. Nil
	// disables retries graph-wide by default.
	RetryPolicy *RetryPolicy

	// MaxStateSize caps a node's serialized output, in bytes. Zero disables
	// the cap.
	MaxStateSize int `validate:"gte=0"`

	// MaxParallelTasks bounds concurrency within a single parallel step.
	// Zero means unbounded.
	MaxParallelTasks int `validate:"gte=0"`

	// StreamChannelCapacity sizes the bounded MPSC channel backing the
	// Custom stream mode. Default 64.
	StreamChannelCapacity int `validate:"gt=0"`

	// Checkpointer is required when any InterruptBefore/InterruptAfter
	// entry is set.
	Checkpointer Checkpointer[S]

	// ThreadID identifies the checkpoint chain this graph's invocations
	// append to. Required alongside Checkpointer when interrupts are set.
	ThreadID string

	// InterruptBefore/InterruptAfter name nodes at which invoke/resume
	// pause and return control to the caller.
	InterruptBefore []string
	InterruptAfter  []string

	// MetricsEnabled turns on Prometheus recording through Metrics. State
	// size is computed only when MaxStateSize is set, not by this flag.
	MetricsEnabled bool
	Metrics        *PrometheusMetrics

	// TraceBaseDir, if non-empty, enables per-invocation trace artifacts
	// written under this directory.
	TraceBaseDir string

	// DistributedScheduler, if set, replaces in-process goroutine spawn for
	// parallel fan-out.
	DistributedScheduler DistributedScheduler[S]
}

// DefaultSettings returns the spec's documented defaults (§3 invariants).
func DefaultSettings[S any]() Settings[S] {
	return Settings[S]{
		GraphTimeout:          time.Hour,
		NodeTimeout:           5 * time.Minute,
		RecursionLimit:        25,
		StreamChannelCapacity: 64,
	}
}

var settingsValidator = validator.New()

// Validate checks Settings against its struct tags and the interrupt/
// checkpointer/thread-id invariant from §3.
func (s Settings[S]) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		return &EngineError{Message: err.Error(), Code: "INVALID_SETTINGS", Cause: err}
	}
	if len(s.InterruptBefore) > 0 || len(s.InterruptAfter) > 0 {
		if s.Checkpointer == nil {
			return ErrInterruptWithoutCheckpointer
		}
		if s.ThreadID == "" {
			return ErrInterruptWithoutThreadID
		}
	}
	return nil
}

// Manifest is a static description of a compiled graph for external
// introspection, surfaced on GraphStart events and renderable as YAML.
type Manifest struct {
	Nodes            []string             `yaml:"nodes"`
	SimpleEdges      map[string]string    `yaml:"simple_edges,omitempty"`
	ParallelEdges    map[string][]string  `yaml:"parallel_edges,omitempty"`
	ConditionalEdges map[string][]string  `yaml:"conditional_edges,omitempty"`
	EntryPoint       string               `yaml:"entry_point"`
	Settings         ManifestSettings     `yaml:"settings"`
}

// ManifestSettings is the YAML-safe projection of Settings (collaborator
// handles like Checkpointer/DistributedScheduler can't serialize).
type ManifestSettings struct {
	GraphTimeout          string   `yaml:"graph_timeout"`
	NodeTimeout           string   `yaml:"node_timeout"`
	RecursionLimit        int      `yaml:"recursion_limit"`
	MaxStateSize          int      `yaml:"max_state_size,omitempty"`
	MaxParallelTasks      int      `yaml:"max_parallel_tasks,omitempty"`
	StreamChannelCapacity int      `yaml:"stream_channel_capacity"`
	InterruptBefore       []string `yaml:"interrupt_before,omitempty"`
	InterruptAfter        []string `yaml:"interrupt_after,omitempty"`
	MetricsEnabled        bool     `yaml:"metrics_enabled"`
}
