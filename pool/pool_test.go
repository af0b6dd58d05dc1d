// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	lattice "github.com/gogpu/lattice"
	"github.com/gogpu/lattice/surface"
)

type fakeRenderer struct {
	surfaceID   string
	disposed    atomic.Bool
	inactive    bool
	panicOnDrop bool

	mu     sync.Mutex
	params *lattice.Params
	frames int
}

func (r *fakeRenderer) Active() bool { return !r.inactive && !r.disposed.Load() }

func (r *fakeRenderer) Dispose() {
	r.disposed.Store(true)
	if r.panicOnDrop {
		panic("teardown panic")
	}
}

func (r *fakeRenderer) SetParam(name string, v lattice.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.params == nil {
		r.params = lattice.NewParams()
	}
	r.params.Set(name, v)
}

func (r *fakeRenderer) SetParams(p *lattice.Params) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.params == nil {
		r.params = lattice.NewParams()
	}
	r.params.Merge(p)
}

func (r *fakeRenderer) Render() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	return nil
}

// trackingFactory records every renderer it creates, keyed by surface.
type trackingFactory struct {
	mu      sync.Mutex
	made    map[string]*fakeRenderer
	failIDs map[string]bool
	block   chan struct{} // when non-nil, construction waits on it
}

func newTrackingFactory() *trackingFactory {
	return &trackingFactory{made: make(map[string]*fakeRenderer), failIDs: make(map[string]bool)}
}

func (f *trackingFactory) factory(surfaceID string, cfg *lattice.Params) (Renderer, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[surfaceID] {
		return nil, fmt.Errorf("no context for %s", surfaceID)
	}
	r := &fakeRenderer{surfaceID: surfaceID}
	if cfg != nil {
		r.params = cfg.Clone()
	}
	f.made[surfaceID] = r
	return r, nil
}

func (f *trackingFactory) get(surfaceID string) *fakeRenderer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.made[surfaceID]
}

// memProvider backs force-reclaim tests with real offscreen surfaces.
type memProvider struct{}

func (memProvider) Name() string { return "mem" }

func (memProvider) Create(opts surface.Options) (surface.Surface, error) {
	return surface.NewOffscreen(opts), nil
}

func newSurfaceRegistry() *surface.Registry {
	r := surface.NewRegistry()
	r.Register(memProvider{}, 10, nil)
	return r
}

func waitReady(t *testing.T, s *Slot) {
	t.Helper()
	select {
	case <-s.Ready():
	case <-time.After(5 * time.Second):
		t.Fatalf("slot %q never settled", s.ID())
	}
}

func TestAcquireConstructsRenderer(t *testing.T) {
	f := newTrackingFactory()
	p := New(f.factory, Config{Max: 3, Surfaces: newSurfaceRegistry()})

	cfg := lattice.NewParams().SetFloat(lattice.ParamHue, 120)
	s := p.Acquire("a", "surf-a", cfg)
	waitReady(t, s)
	if s.Err() != nil {
		t.Fatalf("Err = %v", s.Err())
	}
	if s.Renderer() == nil || !s.Renderer().Active() {
		t.Fatal("renderer missing or inactive")
	}
	if s.SurfaceID() != "surf-a" {
		t.Errorf("SurfaceID = %q", s.SurfaceID())
	}
	if got := f.get("surf-a").params.Float(lattice.ParamHue); got != 120 {
		t.Errorf("initial config not applied, hue = %v", got)
	}
	if got := p.Stats(); got.Active != 1 || got.Created != 1 {
		t.Errorf("stats = %+v", got)
	}
}

func TestAcquireIdempotent(t *testing.T) {
	f := newTrackingFactory()
	p := New(f.factory, Config{Max: 3, Surfaces: newSurfaceRegistry()})

	s1 := p.Acquire("a", "surf-a", nil)
	s2 := p.Acquire("a", "surf-a", nil)
	if s1 != s2 {
		t.Error("double acquire returned distinct slots")
	}
	waitReady(t, s1)
	if p.Len() != 1 {
		t.Errorf("Len = %d, want 1", p.Len())
	}
	// Re-acquiring does not refresh eviction order.
	p.Acquire("b", "surf-b", nil)
	p.Acquire("a", "surf-a", nil)
	keys := p.Keys()
	if keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys = %v, want [a b]", keys)
	}
}

func TestStrictFIFOEviction(t *testing.T) {
	f := newTrackingFactory()
	p := New(f.factory, Config{Max: 2, Surfaces: newSurfaceRegistry()})

	sa := p.Acquire("a", "surf-a", nil)
	waitReady(t, sa)
	sb := p.Acquire("b", "surf-b", nil)
	waitReady(t, sb)

	// "a" is oldest; acquiring "c" must evict it even though it was
	// just used.
	sc := p.Acquire("c", "surf-c", nil)
	waitReady(t, sc)

	if p.Len() != 2 {
		t.Errorf("Len = %d, want 2", p.Len())
	}
	if _, ok := p.Get("a"); ok {
		t.Error("oldest key still admitted")
	}
	if ra := f.get("surf-a"); ra == nil || ra.Active() {
		t.Error("evicted renderer not disposed")
	}
	keys := p.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "c" {
		t.Errorf("Keys = %v, want [b c]", keys)
	}
	if got := p.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestPoolNeverExceedsMax(t *testing.T) {
	f := newTrackingFactory()
	p := New(f.factory, Config{Max: 3, Surfaces: newSurfaceRegistry()})

	var slots []*Slot
	for i := 0; i < 20; i++ {
		s := p.Acquire(fmt.Sprintf("ctx-%d", i), fmt.Sprintf("surf-%d", i), nil)
		if got := p.Len(); got > 3 {
			t.Fatalf("Len = %d exceeds max after acquire %d", got, i)
		}
		slots = append(slots, s)
	}
	for _, s := range slots {
		waitReady(t, s)
	}
	if got := p.Len(); got != 3 {
		t.Errorf("final Len = %d, want 3", got)
	}
}

func TestFailedConstructionFreesCapacity(t *testing.T) {
	f := newTrackingFactory()
	f.failIDs["surf-bad"] = true
	p := New(f.factory, Config{Max: 1, Surfaces: newSurfaceRegistry()})

	s := p.Acquire("bad", "surf-bad", nil)
	waitReady(t, s)
	if s.Err() == nil {
		t.Fatal("expected construction error")
	}
	if s.Renderer() != nil {
		t.Error("failed slot has a renderer")
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0 after failure", p.Len())
	}
	if got := p.Stats().Failed; got != 1 {
		t.Errorf("Failed = %d, want 1", got)
	}

	// Capacity is free for the next key.
	s2 := p.Acquire("good", "surf-good", nil)
	waitReady(t, s2)
	if s2.Err() != nil {
		t.Fatalf("good acquire failed: %v", s2.Err())
	}
}

func TestInactiveRendererRejected(t *testing.T) {
	var made *fakeRenderer
	p := New(func(surfaceID string, _ *lattice.Params) (Renderer, error) {
		made = &fakeRenderer{surfaceID: surfaceID, inactive: true}
		return made, nil
	}, Config{Max: 1, Surfaces: newSurfaceRegistry()})

	s := p.Acquire("a", "surf-a", nil)
	waitReady(t, s)
	if s.Err() == nil {
		t.Fatal("inactive renderer registered without error")
	}
	if s.Renderer() != nil {
		t.Error("inactive renderer exposed on slot")
	}
	if !made.disposed.Load() {
		t.Error("inactive renderer not disposed")
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0", p.Len())
	}
}

func TestFactoryPanicIsFailure(t *testing.T) {
	p := New(func(string, *lattice.Params) (Renderer, error) { panic("boom") },
		Config{Max: 1, Surfaces: newSurfaceRegistry()})
	s := p.Acquire("a", "surf-a", nil)
	waitReady(t, s)
	if s.Err() == nil {
		t.Fatal("panic did not surface as error")
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0", p.Len())
	}
}

func TestReleaseForceReclaimsSurface(t *testing.T) {
	surfaces := newSurfaceRegistry()
	f := newTrackingFactory()
	p := New(f.factory, Config{Max: 2, Surfaces: surfaces})

	// Simulate a factory that left its surface live in the registry.
	old, err := surfaces.Acquire("mem", surface.Options{ID: "surf-a", Width: 8, Height: 8})
	if err != nil {
		t.Fatal(err)
	}

	s := p.Acquire("a", "surf-a", nil)
	waitReady(t, s)
	if !p.Release("a") {
		t.Fatal("Release returned false")
	}

	if old.Valid() {
		t.Error("released surface still valid, no force-reclaim happened")
	}
	fresh, ok := surfaces.Lookup("surf-a")
	if !ok {
		t.Fatal("no replacement surface after reclaim")
	}
	if fresh == old || !fresh.Valid() {
		t.Error("reclaim did not produce a fresh valid surface")
	}
	if fresh.ID() != "surf-a" {
		t.Errorf("replacement ID = %q, want surf-a", fresh.ID())
	}
}

func TestReleaseWhilePending(t *testing.T) {
	f := newTrackingFactory()
	f.block = make(chan struct{})
	p := New(f.factory, Config{Max: 2, Surfaces: newSurfaceRegistry()})

	s := p.Acquire("a", "surf-a", nil)
	if !p.Release("a") {
		t.Fatal("Release of pending slot returned false")
	}
	close(f.block)
	waitReady(t, s)

	// The late renderer must have been disposed, not leaked.
	if r := f.get("surf-a"); r != nil && r.Active() {
		t.Error("renderer constructed after release left active")
	}
	if s.Renderer() != nil {
		t.Error("released slot exposes a renderer")
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0", p.Len())
	}
}

func TestReleaseUnknownNoop(t *testing.T) {
	p := New(newTrackingFactory().factory, Config{Surfaces: newSurfaceRegistry()})
	if p.Release("ghost") {
		t.Error("Release of unknown key returned true")
	}
}

func TestDisposePanicSwallowed(t *testing.T) {
	var made *fakeRenderer
	p := New(func(surfaceID string, _ *lattice.Params) (Renderer, error) {
		made = &fakeRenderer{surfaceID: surfaceID, panicOnDrop: true}
		return made, nil
	}, Config{Max: 1, Surfaces: newSurfaceRegistry()})

	s := p.Acquire("a", "surf-a", nil)
	waitReady(t, s)
	p.Release("a") // must not panic
	if !made.disposed.Load() {
		t.Error("renderer not disposed")
	}
}

func TestReleaseAll(t *testing.T) {
	f := newTrackingFactory()
	p := New(f.factory, Config{Max: 4, Surfaces: newSurfaceRegistry()})
	for _, id := range []string{"a", "b", "c"} {
		waitReady(t, p.Acquire(id, "surf-"+id, nil))
	}
	p.ReleaseAll()
	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0", p.Len())
	}
	for _, id := range []string{"a", "b", "c"} {
		if r := f.get("surf-" + id); r == nil || r.Active() {
			t.Errorf("renderer for %s not disposed", id)
		}
	}
}

func TestEvictedDuringConstruction(t *testing.T) {
	f := newTrackingFactory()
	f.block = make(chan struct{})
	p := New(f.factory, Config{Max: 1, Surfaces: newSurfaceRegistry()})

	sa := p.Acquire("a", "surf-a", nil) // pending, occupies the only seat
	sb := p.Acquire("b", "surf-b", nil) // evicts pending "a"
	close(f.block)
	waitReady(t, sa)
	waitReady(t, sb)

	if sa.Renderer() != nil {
		t.Error("evicted pending slot exposes a renderer")
	}
	if sa.Err() == nil {
		t.Error("evicted pending slot has no error")
	}
	if errors.Is(sb.Err(), sa.Err()) && sb.Err() != nil {
		t.Error("winner slot inherited loser's error")
	}
	if sb.Renderer() == nil {
		t.Error("winner slot has no renderer")
	}
	if r := f.get("surf-a"); r != nil && r.Active() {
		t.Error("loser renderer leaked")
	}
}

func TestDefaultMax(t *testing.T) {
	p := New(newTrackingFactory().factory, Config{Surfaces: newSurfaceRegistry()})
	var slots []*Slot
	for i := 0; i < DefaultMax+3; i++ {
		slots = append(slots, p.Acquire(fmt.Sprintf("d-%d", i), fmt.Sprintf("sd-%d", i), nil))
	}
	for _, s := range slots {
		waitReady(t, s)
	}
	if p.Len() != DefaultMax {
		t.Errorf("Len = %d, want %d", p.Len(), DefaultMax)
	}
}
