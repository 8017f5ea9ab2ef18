// Package checkpointer provides concrete graph.Checkpointer backends: an
// in-process map for tests and small deployments, and SQLite/MySQL/
// PostgreSQL/Redis implementations for durable, multi-process thread
// persistence.
package checkpointer

import "errors"

// ErrNotFound indicates a thread has no checkpoints.
var ErrNotFound = errors.New("checkpointer: thread has no checkpoints")
