package graph

import "context"

// Node is a named asynchronous step that consumes and produces state.
//
// Type parameter S is the state type shared across the workflow.
type Node[S any] interface {
	// Run executes the node's logic against state and returns either the
	// updated state or an error. The context carries the node's timeout and
	// is cancelled if the graph-level wall clock budget elapses.
	Run(ctx context.Context, state S) (S, error)
}

// NodeFunc adapts a plain function to the Node interface.
//
//	increment := graph.NodeFunc[Counter](func(ctx context.Context, s Counter) (Counter, error) {
//	    s.Value++
//	    return s, nil
//	})
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Run implements Node for NodeFunc.
func (f NodeFunc[S]) Run(ctx context.Context, state S) (S, error) {
	return f(ctx, state)
}

// NodeConfig carries per-node annotations and execution policy, set via
// Builder.AddNode's options.
type NodeConfig struct {
	// ReadOnly tells the engine it may skip diff computation after this
	// node runs, since the node is known not to mutate state meaningfully.
	ReadOnly bool

	// Streaming tells the engine to install a per-call custom side channel
	// for this node's duration, so it can call EmitCustom.
	Streaming bool

	// Policy overrides the compiled graph's default timeout and retry
	// policy for this node specifically.
	Policy NodePolicy

	// Metadata is an opaque, per-node config bag surfaced on NodeStart and
	// NodeEnd events for external introspection.
	Metadata map[string]any
}

// NodeOption configures a NodeConfig when registering a node with Builder.AddNode.
type NodeOption func(*NodeConfig)

// ReadOnly marks a node as not mutating state in a way worth diffing.
func ReadOnly() NodeOption {
	return func(c *NodeConfig) { c.ReadOnly = true }
}

// Streaming marks a node as emitting Custom stream events via EmitCustom.
func Streaming() NodeOption {
	return func(c *NodeConfig) { c.Streaming = true }
}

// WithNodePolicy overrides the node's timeout and retry policy.
func WithNodePolicy(policy NodePolicy) NodeOption {
	return func(c *NodeConfig) { c.Policy = policy }
}

// WithNodeMetadata attaches opaque metadata surfaced on node events.
func WithNodeMetadata(meta map[string]any) NodeOption {
	return func(c *NodeConfig) { c.Metadata = meta }
}

// registeredNode pairs a Node with its resolved NodeConfig.
type registeredNode[S any] struct {
	id     string
	node   Node[S]
	config NodeConfig
}
