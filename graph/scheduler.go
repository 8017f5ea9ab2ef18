package graph

import (
	"crypto/sha256"
	"encoding/binary"
)

// ComputeOrderKey derives a deterministic uint64 correlation key for a
// branch spawned from parentNodeID at edgeIndex. The engine does not call
// it; events and traces carry no order key.
func ComputeOrderKey(parentNodeID string, edgeIndex int) uint64 {
	return computeOrderKey(parentNodeID, edgeIndex)
}

func computeOrderKey(parentNodeID string, edgeIndex int) uint64 {
	h := sha256.New()
	h.Write([]byte(parentNodeID))
	edgeBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(edgeBytes, uint32(edgeIndex))
	h.Write(edgeBytes)
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}
