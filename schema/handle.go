package schema

import "sync/atomic"

// Handle holds the application's current registry snapshot. Rebuilding
// constructs a complete new Registry and swaps it in atomically, so
// concurrent readers observe either the old or the new snapshot but never
// a partially built one.
type Handle struct {
	current atomic.Pointer[Registry]
}

// NewHandle creates a handle holding the given registry
func NewHandle(r *Registry) *Handle {
	h := &Handle{}
	h.current.Store(r)
	return h
}

// Get returns the current registry snapshot, or nil before the first Set
func (h *Handle) Get() *Registry {
	return h.current.Load()
}

// Set atomically replaces the current snapshot
func (h *Handle) Set(r *Registry) {
	h.current.Store(r)
}

// Rebuild constructs a registry from cfg and swaps it in on success. On
// failure the previous snapshot is left unchanged.
func (h *Handle) Rebuild(cfg Config) (*Registry, error) {
	r, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	h.current.Store(r)
	return r, nil
}
