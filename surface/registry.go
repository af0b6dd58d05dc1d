// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"fmt"
	"sort"
	"sync"
)

// Provider creates surfaces of one kind.
type Provider interface {
	// Name returns the provider's registry name.
	Name() string

	// Create builds a new surface. Each call returns a distinct
	// surface, even for a previously seen Options.ID.
	Create(opts Options) (Surface, error)
}

// registration pairs a provider with its selection metadata.
type registration struct {
	provider  Provider
	priority  int
	available func() bool
}

// Registry tracks surface providers and the surfaces acquired through
// them. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*registration

	// live maps surface ID to its origin, so Reclaim can rebuild a
	// replacement with the same identity.
	live map[string]*origin
}

type origin struct {
	providerName string
	opts         Options
	surface      Surface
}

// NewRegistry creates an empty surface registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*registration),
		live:      make(map[string]*origin),
	}
}

// Register adds a provider. Higher priority providers are preferred by
// Acquire when no provider name is given. available may be nil,
// meaning always available. Registering the same name again replaces
// the previous entry.
func (r *Registry) Register(p Provider, priority int, available func() bool) {
	if p == nil {
		return
	}
	if available == nil {
		available = func() bool { return true }
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = &registration{
		provider:  p,
		priority:  priority,
		available: available,
	}
}

// Unregister removes a provider by name. Live surfaces created by it
// are unaffected, but they can no longer be reclaimed.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
}

// Names returns the registered provider names sorted by priority,
// highest first.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi := r.providers[names[i]].priority
		pj := r.providers[names[j]].priority
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	return names
}

// Acquire creates a surface. If providerName is empty, the available
// provider with the highest priority is used. The surface is tracked
// until Forget or Release via ReclaimID.
func (r *Registry) Acquire(providerName string, opts Options) (Surface, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("surface: acquire: empty surface id")
	}
	reg, err := r.pick(providerName)
	if err != nil {
		return nil, err
	}

	s, err := reg.provider.Create(opts)
	if err != nil {
		return nil, fmt.Errorf("surface: acquire %q: %w", opts.ID, err)
	}

	r.mu.Lock()
	if prev, ok := r.live[opts.ID]; ok && prev.surface != nil {
		// An older surface under the same ID is superseded.
		prev.surface.Invalidate()
	}
	r.live[opts.ID] = &origin{providerName: reg.provider.Name(), opts: opts, surface: s}
	r.mu.Unlock()
	return s, nil
}

// Reclaim invalidates a live surface and builds a fresh replacement
// with the same identity and options from the same provider. The old
// surface is released.
func (r *Registry) Reclaim(id string) (Surface, error) {
	r.mu.Lock()
	org, ok := r.live[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrUnknownSurface
	}

	if org.surface != nil {
		org.surface.Invalidate()
		org.surface.Release()
	}

	r.mu.RLock()
	reg, regOK := r.providers[org.providerName]
	r.mu.RUnlock()
	if !regOK {
		return nil, &ProviderNotFoundError{Name: org.providerName}
	}

	s, err := reg.provider.Create(org.opts)
	if err != nil {
		return nil, fmt.Errorf("surface: reclaim %q: %w", id, err)
	}

	r.mu.Lock()
	r.live[id] = &origin{providerName: org.providerName, opts: org.opts, surface: s}
	r.mu.Unlock()
	return s, nil
}

// Forget drops tracking for a surface ID without touching the surface
// itself. Call it after the owner has released the surface.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, id)
}

// Lookup returns the live surface for an ID, if any.
func (r *Registry) Lookup(id string) (Surface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	org, ok := r.live[id]
	if !ok || org.surface == nil {
		return nil, false
	}
	return org.surface, true
}

func (r *Registry) pick(providerName string) (*registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if providerName != "" {
		reg, ok := r.providers[providerName]
		if !ok {
			return nil, &ProviderNotFoundError{Name: providerName}
		}
		if !reg.available() {
			return nil, &ProviderUnavailableError{Name: providerName}
		}
		return reg, nil
	}

	var best *registration
	for _, reg := range r.providers {
		if !reg.available() {
			continue
		}
		if best == nil || reg.priority > best.priority {
			best = reg
		}
	}
	if best == nil {
		return nil, ErrNoProviderAvailable
	}
	return best, nil
}

// defaultRegistry is the process-wide registry that built-in providers
// attach to.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide surface registry.
func DefaultRegistry() *Registry { return defaultRegistry }
