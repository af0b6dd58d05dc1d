// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package pool bounds the number of live rendering contexts. Browsers
// and drivers cap concurrent GPU contexts well below what a busy page
// wants, so the pool admits at most Max renderers and evicts the
// oldest acquisition (strict FIFO, regardless of use) to make room.
//
// Acquire is two-phase: the returned Slot occupies pool capacity
// immediately while the renderer is constructed in the background;
// Ready closes when construction settles either way. On eviction and
// release the pool force-reclaims the slot's surface through the
// surface registry, so no stale native context survives an
// acquire/release cycle even when a renderer's own teardown is
// unreliable.
package pool

import (
	"fmt"
	"sync"

	lattice "github.com/gogpu/lattice"
	"github.com/gogpu/lattice/surface"
)

// DefaultMax is the pool bound when Config.Max is zero.
const DefaultMax = 5

// Renderer is the pooled resource. Anything that can take parameters
// and draw a frame fits; render.Bridge satisfies it through
// render.PooledBridge.
type Renderer interface {
	// Active reports whether the renderer can accept work.
	Active() bool

	// Dispose releases the renderer's resources.
	Dispose()

	// SetParam stages one named parameter for the next frame.
	SetParam(name string, value lattice.Value)

	// SetParams stages a parameter set, merged over what is staged.
	SetParams(p *lattice.Params)

	// Render draws one frame with the staged parameters.
	Render() error
}

// Factory constructs the renderer for a surface. It runs on a
// background goroutine and may block on GPU negotiation. cfg carries
// the initial parameter set and may be nil.
type Factory func(surfaceID string, cfg *lattice.Params) (Renderer, error)

// Config configures a Pool.
type Config struct {
	// Max bounds live plus pending slots. 0 means DefaultMax.
	Max int

	// Surfaces is the registry used to force-reclaim surfaces on
	// eviction and release. Nil means the process-wide default.
	Surfaces *surface.Registry
}

// Slot is one pool entry. It exists from the moment Acquire admits the
// key, before the renderer finishes construction.
type Slot struct {
	id        string
	surfaceID string
	ready     chan struct{}

	mu       sync.Mutex
	renderer Renderer
	err      error
	canceled bool
}

// ID returns the slot's pool key.
func (s *Slot) ID() string { return s.id }

// SurfaceID returns the surface the slot renders to.
func (s *Slot) SurfaceID() string { return s.surfaceID }

// Ready returns a channel closed when construction has settled. After
// it closes, either Renderer or Err is set.
func (s *Slot) Ready() <-chan struct{} { return s.ready }

// Renderer returns the constructed renderer, or nil before Ready
// closes or after a failed or evicted construction.
func (s *Slot) Renderer() Renderer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderer
}

// Err returns the construction error, if any.
func (s *Slot) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stats is a snapshot of pool counters.
type Stats struct {
	// Active counts slots currently occupying capacity, settled or
	// pending.
	Active int

	// Created counts successful constructions.
	Created uint64

	// Evictions counts slots forced out to make room.
	Evictions uint64

	// Failed counts constructions that returned an error or produced
	// an inactive renderer.
	Failed uint64
}

// Pool admits at most Max renderers, evicting in strict acquisition
// order. Safe for concurrent use.
type Pool struct {
	mu       sync.Mutex
	max      int
	factory  Factory
	surfaces *surface.Registry

	// order is the FIFO eviction queue of admitted keys.
	order []string
	slots map[string]*Slot

	created   uint64
	evictions uint64
	failed    uint64
}

// New creates a pool over factory.
func New(factory Factory, cfg Config) *Pool {
	max := cfg.Max
	if max <= 0 {
		max = DefaultMax
	}
	surfaces := cfg.Surfaces
	if surfaces == nil {
		surfaces = surface.DefaultRegistry()
	}
	return &Pool{
		max:      max,
		factory:  factory,
		surfaces: surfaces,
		slots:    make(map[string]*Slot),
	}
}

// Acquire admits key and starts constructing its renderer on
// surfaceID with cfg as the initial parameter set. Acquiring a key
// that is already admitted returns the existing slot unchanged and
// does not refresh its eviction position or reset its surface. When
// the pool is full, the oldest admissions are evicted until there is
// room. The slot stays registered only if construction succeeds and
// the renderer reports itself active.
func (p *Pool) Acquire(key, surfaceID string, cfg *lattice.Params) *Slot {
	p.mu.Lock()
	if s, ok := p.slots[key]; ok {
		p.mu.Unlock()
		return s
	}

	var evicted []*Slot
	for len(p.slots) >= p.max && len(p.order) > 0 {
		oldest := p.order[0]
		p.order = p.order[1:]
		if s, ok := p.slots[oldest]; ok {
			delete(p.slots, oldest)
			p.evictions++
			evicted = append(evicted, s)
		}
	}

	s := &Slot{id: key, surfaceID: surfaceID, ready: make(chan struct{})}
	p.slots[key] = s
	p.order = append(p.order, key)
	p.mu.Unlock()

	for _, old := range evicted {
		lattice.Logger().Info("pool evicted oldest context", "evicted", old.id, "for", key)
		p.retire(old)
	}

	go p.construct(s, cfg)
	return s
}

func (p *Pool) construct(s *Slot, cfg *lattice.Params) {
	// Shake off any stale context left on the surface by a previous
	// occupant before handing it to the factory.
	p.reclaimSurface(s.surfaceID)

	r, err := p.safeFactory(s.surfaceID, cfg)
	if err == nil && r != nil && !r.Active() {
		disposeQuietly(r)
		r = nil
		err = fmt.Errorf("pool: %q came up inactive on %q", s.id, s.surfaceID)
	}

	s.mu.Lock()
	canceled := s.canceled
	if err != nil {
		s.err = err
	} else if canceled {
		// Evicted or released while constructing: the fresh renderer
		// has no slot to live in.
		s.err = fmt.Errorf("pool: %q evicted during construction", s.id)
	} else {
		s.renderer = r
	}
	s.mu.Unlock()

	p.mu.Lock()
	if err != nil {
		p.failed++
		if !canceled {
			// Failed slots stop occupying capacity.
			delete(p.slots, s.id)
			p.dropFromOrder(s.id)
		}
	} else {
		p.created++
	}
	p.mu.Unlock()

	if err == nil && canceled && r != nil {
		disposeQuietly(r)
		p.reclaimSurface(s.surfaceID)
	}
	if err != nil {
		lattice.Logger().Warn("pool construction failed", "key", s.id, "error", err)
	}
	close(s.ready)
}

func (p *Pool) safeFactory(surfaceID string, cfg *lattice.Params) (r Renderer, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("pool: factory panic for %q: %v", surfaceID, rec)
		}
	}()
	return p.factory(surfaceID, cfg)
}

// Release removes key from the pool, disposes its renderer, and
// force-reclaims its surface. A renderer still under construction is
// disposed as soon as it settles. Releasing an unknown key is a no-op.
func (p *Pool) Release(key string) bool {
	p.mu.Lock()
	s, ok := p.slots[key]
	if !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.slots, key)
	p.dropFromOrder(key)
	p.mu.Unlock()

	p.retire(s)
	return true
}

// ReleaseAll empties the pool.
func (p *Pool) ReleaseAll() {
	p.mu.Lock()
	slots := make([]*Slot, 0, len(p.slots))
	for _, s := range p.slots {
		slots = append(slots, s)
	}
	p.slots = make(map[string]*Slot)
	p.order = nil
	p.mu.Unlock()

	for _, s := range slots {
		p.retire(s)
	}
}

// retire cancels a slot removed from the maps, disposes its renderer
// if construction already settled, and force-reclaims its surface. A
// still-pending construction cleans up after itself instead.
func (p *Pool) retire(s *Slot) {
	s.mu.Lock()
	s.canceled = true
	r := s.renderer
	s.renderer = nil
	s.mu.Unlock()
	if r != nil {
		disposeQuietly(r)
		p.reclaimSurface(s.surfaceID)
	}
}

// reclaimSurface invalidates any lingering native context on the
// surface and replaces it with a fresh one under the same identity. A
// surface the registry no longer tracks has nothing to reclaim.
func (p *Pool) reclaimSurface(id string) {
	if _, ok := p.surfaces.Lookup(id); !ok {
		return
	}
	if _, err := p.surfaces.Reclaim(id); err != nil {
		lattice.Logger().Debug("surface reclaim skipped", "surface", id, "error", err)
	}
}

// disposeQuietly shields the pool from renderer teardown panics.
func disposeQuietly(r Renderer) {
	defer func() {
		if rec := recover(); rec != nil {
			lattice.Logger().Warn("renderer dispose panicked", "panic", rec)
		}
	}()
	r.Dispose()
}

// dropFromOrder removes key from the eviction queue. Caller holds p.mu.
func (p *Pool) dropFromOrder(key string) {
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// Len returns the number of admitted slots.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

// Keys returns the admitted keys in eviction order, oldest first.
func (p *Pool) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Get returns the slot for key, if admitted.
func (p *Pool) Get(key string) (*Slot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.slots[key]
	return s, ok
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Active:    len(p.slots),
		Created:   p.created,
		Evictions: p.evictions,
		Failed:    p.failed,
	}
}
