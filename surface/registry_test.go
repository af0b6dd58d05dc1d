// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"errors"
	"testing"
)

type fakeProvider struct {
	name    string
	created int
	fail    bool
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Create(opts Options) (Surface, error) {
	if p.fail {
		return nil, errors.New("boom")
	}
	p.created++
	return NewOffscreen(opts), nil
}

func TestRegistryPriorityOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "low"}, 1, nil)
	r.Register(&fakeProvider{name: "high"}, 50, nil)
	r.Register(&fakeProvider{name: "mid"}, 10, nil)

	names := r.Names()
	want := []string{"high", "mid", "low"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestRegistryAcquirePrefersAvailable(t *testing.T) {
	r := NewRegistry()
	high := &fakeProvider{name: "high"}
	low := &fakeProvider{name: "low"}
	r.Register(high, 50, func() bool { return false })
	r.Register(low, 1, nil)

	s, err := r.Acquire("", Options{ID: "a", Width: 8, Height: 8})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if low.created != 1 || high.created != 0 {
		t.Errorf("created low=%d high=%d, want low=1 high=0", low.created, high.created)
	}
	if s.ID() != "a" {
		t.Errorf("ID = %q, want %q", s.ID(), "a")
	}
}

func TestRegistryAcquireErrors(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Acquire("", Options{ID: "a"}); !errors.Is(err, ErrNoProviderAvailable) {
		t.Errorf("empty registry err = %v, want ErrNoProviderAvailable", err)
	}

	var nf *ProviderNotFoundError
	if _, err := r.Acquire("nope", Options{ID: "a"}); !errors.As(err, &nf) {
		t.Errorf("unknown provider err = %v, want ProviderNotFoundError", err)
	}

	r.Register(&fakeProvider{name: "off"}, 1, func() bool { return false })
	var na *ProviderUnavailableError
	if _, err := r.Acquire("off", Options{ID: "a"}); !errors.As(err, &na) {
		t.Errorf("unavailable provider err = %v, want ProviderUnavailableError", err)
	}

	r.Register(&fakeProvider{name: "on"}, 1, nil)
	if _, err := r.Acquire("on", Options{}); err == nil {
		t.Error("Acquire with empty ID succeeded")
	}
}

func TestRegistryReclaimReplacesSurface(t *testing.T) {
	r := NewRegistry()
	p := &fakeProvider{name: "fake"}
	r.Register(p, 1, nil)

	s1, err := r.Acquire("fake", Options{ID: "canvas", Width: 32, Height: 16})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	s2, err := r.Reclaim("canvas")
	if err != nil {
		t.Fatalf("Reclaim failed: %v", err)
	}
	if s1.Valid() {
		t.Error("old surface still valid after reclaim")
	}
	if !s2.Valid() {
		t.Error("replacement surface invalid")
	}
	if s2.ID() != "canvas" {
		t.Errorf("replacement ID = %q, want %q", s2.ID(), "canvas")
	}
	w, h := s2.Size()
	if w != 32 || h != 16 {
		t.Errorf("replacement size = %dx%d, want 32x16", w, h)
	}
	g1 := s1.(*Offscreen).Generation()
	g2 := s2.(*Offscreen).Generation()
	if g2 <= g1 {
		t.Errorf("replacement generation %d not newer than %d", g2, g1)
	}

	got, ok := r.Lookup("canvas")
	if !ok || got != s2 {
		t.Error("Lookup does not return the replacement")
	}
}

func TestRegistryReclaimUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Reclaim("ghost"); !errors.Is(err, ErrUnknownSurface) {
		t.Errorf("err = %v, want ErrUnknownSurface", err)
	}
}

func TestRegistryForget(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeProvider{name: "fake"}, 1, nil)
	if _, err := r.Acquire("fake", Options{ID: "x"}); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	r.Forget("x")
	if _, ok := r.Lookup("x"); ok {
		t.Error("Lookup succeeded after Forget")
	}
	if _, err := r.Reclaim("x"); !errors.Is(err, ErrUnknownSurface) {
		t.Errorf("Reclaim after Forget err = %v, want ErrUnknownSurface", err)
	}
}

func TestOffscreenDefaults(t *testing.T) {
	s := NewOffscreen(Options{ID: "d"})
	w, h := s.Size()
	if w != 1 || h != 1 {
		t.Errorf("default size = %dx%d, want 1x1", w, h)
	}
	if s.Scale() != 1 {
		t.Errorf("default scale = %v, want 1", s.Scale())
	}
	s.Resize(0, 0, 0) // no-op values
	w, h = s.Size()
	if w != 1 || h != 1 {
		t.Errorf("size after zero resize = %dx%d, want 1x1", w, h)
	}
	s.Resize(640, 480, 2)
	w, h = s.Size()
	if w != 640 || h != 480 || s.Scale() != 2 {
		t.Errorf("resize mismatch: %dx%d scale %v", w, h, s.Scale())
	}
	s.Invalidate()
	if s.Valid() {
		t.Error("surface valid after Invalidate")
	}
}

func TestDefaultRegistryHasOffscreen(t *testing.T) {
	s, err := DefaultRegistry().Acquire("offscreen", Options{ID: "t-default", Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("Acquire offscreen failed: %v", err)
	}
	defer DefaultRegistry().Forget("t-default")
	if _, ok := s.(*Offscreen); !ok {
		t.Errorf("surface type = %T, want *Offscreen", s)
	}
}
