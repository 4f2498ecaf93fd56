package infrastructure

import (
	"context"
	"sync"
)

// MemoryRegistry is an in-process domain.SessionRegistry
type MemoryRegistry struct {
	mu     sync.Mutex
	active map[string]string
}

// NewMemoryRegistry creates an empty registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{active: make(map[string]string)}
}

// Acquire registers sessionID for requesterID unless another session holds it
func (r *MemoryRegistry) Acquire(_ context.Context, requesterID, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[requesterID]; exists {
		return false, nil
	}
	r.active[requesterID] = sessionID
	return true, nil
}

// Refresh reports whether sessionID still holds the requester's registration
func (r *MemoryRegistry) Refresh(_ context.Context, requesterID, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[requesterID] == sessionID, nil
}

// Release removes the registration when it still belongs to sessionID
func (r *MemoryRegistry) Release(_ context.Context, requesterID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active[requesterID] == sessionID {
		delete(r.active, requesterID)
	}
	return nil
}
