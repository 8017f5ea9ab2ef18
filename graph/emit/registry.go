package emit

import "sync"

// Registry holds a set of Callbacks and fans out each GraphEvent to all of
// them synchronously. Registration and deregistration are safe to call
// while an invocation is in flight (§6): Dispatch snapshots the callback
// slice under the lock before invoking, so registering mid-dispatch never
// races a concurrent range.
type Registry[S any] struct {
	mu        sync.RWMutex
	callbacks map[int]Callback[S]
	nextID    int
}

// NewRegistry creates an empty callback registry.
func NewRegistry[S any]() *Registry[S] {
	return &Registry[S]{callbacks: make(map[int]Callback[S])}
}

// Register adds cb and returns a handle Deregister can use to remove it.
func (r *Registry[S]) Register(cb Callback[S]) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.callbacks[id] = cb
	return id
}

// Deregister removes the callback associated with handle, if present.
func (r *Registry[S]) Deregister(handle int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.callbacks, handle)
}

// Len reports how many callbacks are currently registered. The engine uses
// this to skip cloning state for observers when nothing is registered
// (§9 "Event fan-out").
func (r *Registry[S]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}

// Dispatch invokes every registered callback with event, in registration
// order is not guaranteed (map iteration), but all callbacks see every
// event for a given invocation in the same relative order they were
// produced.
func (r *Registry[S]) Dispatch(event GraphEvent[S]) {
	r.mu.RLock()
	snapshot := make([]Callback[S], 0, len(r.callbacks))
	for _, cb := range r.callbacks {
		snapshot = append(snapshot, cb)
	}
	r.mu.RUnlock()

	for _, cb := range snapshot {
		cb(event)
	}
}
