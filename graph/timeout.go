package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// executeNodeWithTimeout runs node.Run under the timeout effectiveTimeout
// computed, returning ErrNodeTimeout (wrapped with the node id) if the
// deadline is exceeded before the node returns. A zero timeout runs the
// node with ctx unmodified.
func executeNodeWithTimeout[S any](ctx context.Context, node Node[S], nodeID string, state S, timeout time.Duration) (S, error) {
	if timeout <= 0 {
		return node.Run(ctx, state)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := node.Run(timeoutCtx, state)
	if err != nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return result, &EngineError{
			Message: fmt.Sprintf("node %s exceeded timeout of %v", nodeID, timeout),
			Code:    "NODE_TIMEOUT",
			NodeID:  nodeID,
			Cause:   ErrNodeTimeout,
		}
	}
	return result, err
}
