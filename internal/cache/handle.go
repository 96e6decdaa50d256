package cache

import "sync"

// Handle wraps a Store so administrative reconfiguration can replace the
// backing instance wholesale. Readers keep whichever instance they grabbed
// via Current; in-flight reads against a replaced store complete against it.
type Handle[V any] struct {
	mu    sync.RWMutex
	store *Store[V]
}

// NewHandle wraps store.
func NewHandle[V any](store *Store[V]) *Handle[V] {
	return &Handle[V]{store: store}
}

// Current returns the active store.
func (h *Handle[V]) Current() *Store[V] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.store
}

// Swap replaces the active store.
func (h *Handle[V]) Swap(store *Store[V]) {
	h.mu.Lock()
	h.store = store
	h.mu.Unlock()
}
