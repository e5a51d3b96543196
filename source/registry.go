package source

import (
	"fmt"
	"sync"

	"github.com/poiesic/predindex/core"
)

// Registry holds one adapter per source.
type Registry struct {
	mu       sync.RWMutex
	adapters map[core.Source]Adapter
}

// NewRegistry returns a registry holding adapters. A later adapter for the
// same source replaces an earlier one.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[core.Source]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for a.Source().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Source()] = a
}

// Get returns the adapter for source.
func (r *Registry) Get(source core.Source) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, source)
	}
	return a, nil
}

// Sources returns the registered sources in canonical order.
func (r *Registry) Sources() []core.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Source
	for _, s := range core.KnownSources {
		if _, ok := r.adapters[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
