package graph

import (
	"time"

	"github.com/google/uuid"
)

// Checkpoint is a durable snapshot of execution state at a node boundary,
// owned by an external Checkpointer. Checkpoints for a given thread form a
// singly-linked list via PreviousID, so a backend can walk a thread's full
// history even though the engine itself only ever asks for the latest one.
type Checkpoint[S any] struct {
	// ID is an opaque, backend-agnostic identifier for this checkpoint.
	ID string `json:"id"`

	// PreviousID links to the prior checkpoint in this thread's chain, or
	// the empty string for the first checkpoint of a thread.
	PreviousID string `json:"previous_id,omitempty"`

	// ThreadID identifies the checkpointing lineage this snapshot belongs
	// to; it is the external identity the checkpointer keys chains by.
	ThreadID string `json:"thread_id"`

	// Node is the node last executed (after a parallel step, the last branch
	// in declaration order), or the node about to execute when this
	// checkpoint was force-saved for an interrupt-before or interrupt-after.
	Node string `json:"node"`

	// State is the state at this boundary.
	State S `json:"state"`

	// Timestamp is monotonic within a thread's chain.
	Timestamp time.Time `json:"timestamp"`
}

// newCheckpointID generates an opaque checkpoint identifier.
func newCheckpointID() string {
	return uuid.NewString()
}
