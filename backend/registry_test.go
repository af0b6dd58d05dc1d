// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"errors"
	"testing"

	lattice "github.com/gogpu/lattice"
	"github.com/gogpu/lattice/alloc"
	"github.com/gogpu/lattice/shader"
	"github.com/gogpu/lattice/surface"
)

// stubBackend satisfies Backend with no behavior.
type stubBackend struct {
	kind Kind
}

func (b *stubBackend) Kind() Kind                                   { return b.kind }
func (b *stubBackend) Init(surface.Surface, *alloc.Registry) error  { return nil }
func (b *stubBackend) Compile(shader.Sources) error                 { return nil }
func (b *stubBackend) SetUniforms(*lattice.Params)                  {}
func (b *stubBackend) Draw(string, DrawOptions) error               { return nil }
func (b *stubBackend) Resize(int, int)                              {}
func (b *stubBackend) Lost() bool                                   { return false }
func (b *stubBackend) SetLostCallback(func())                       {}
func (b *stubBackend) Restore(surface.Surface) error                { return nil }
func (b *stubBackend) Close()                                       {}

func stubFactory(kind Kind) Factory {
	return func() Backend { return &stubBackend{kind: kind} }
}

func TestRegisterAndGet(t *testing.T) {
	Register("t-stub", KindWGPU, 5, stubFactory(KindWGPU), nil)
	defer Unregister("t-stub")

	if !IsRegistered("t-stub") {
		t.Fatal("t-stub not registered")
	}
	b := Get("t-stub")
	if b == nil {
		t.Fatal("Get returned nil")
	}
	if b.Kind() != KindWGPU {
		t.Errorf("Kind = %v, want %v", b.Kind(), KindWGPU)
	}
	if Get("t-missing") != nil {
		t.Error("Get of unknown name returned non-nil")
	}
}

func TestAvailableSortedByPriority(t *testing.T) {
	Register("t-a", KindGL, 1, stubFactory(KindGL), nil)
	Register("t-b", KindWGPU, 100, stubFactory(KindWGPU), nil)
	Register("t-c", KindGL, 10, stubFactory(KindGL), nil)
	defer Unregister("t-a")
	defer Unregister("t-b")
	defer Unregister("t-c")

	names := Available()
	pos := map[string]int{}
	for i, n := range names {
		pos[n] = i
	}
	if !(pos["t-b"] < pos["t-c"] && pos["t-c"] < pos["t-a"]) {
		t.Errorf("Available() = %v, want t-b before t-c before t-a", names)
	}
}

func TestSelectPreferred(t *testing.T) {
	Register("t-pref", KindGL, 1, stubFactory(KindGL), nil)
	Register("t-other", KindWGPU, 100, stubFactory(KindWGPU), nil)
	defer Unregister("t-pref")
	defer Unregister("t-other")

	b, err := Select("t-pref", false)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if b.Kind() != KindGL {
		t.Errorf("preferred ignored: got kind %v", b.Kind())
	}
}

func TestSelectFallback(t *testing.T) {
	Register("t-down", KindWGPU, 100, stubFactory(KindWGPU), func() bool { return false })
	Register("t-up", KindGL, 1, stubFactory(KindGL), nil)
	defer Unregister("t-down")
	defer Unregister("t-up")

	// Preferred backend is unavailable; fallback picks t-up.
	b, err := Select("t-down", true)
	if err != nil {
		t.Fatalf("Select with fallback failed: %v", err)
	}
	if b.Kind() != KindGL {
		t.Errorf("fallback kind = %v, want %v", b.Kind(), KindGL)
	}

	// Without fallback the unavailable preferred backend is an error.
	if _, err := Select("t-down", false); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("err = %v, want ErrBackendNotAvailable", err)
	}

	var nf *BackendNotFoundError
	if _, err := Select("t-ghost", false); !errors.As(err, &nf) {
		t.Errorf("err = %v, want BackendNotFoundError", err)
	}
}

func TestSelectNoneAvailable(t *testing.T) {
	Register("t-off", KindGL, 1, stubFactory(KindGL), func() bool { return false })
	defer Unregister("t-off")

	if _, err := Select("", true); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("err = %v, want ErrBackendNotAvailable", err)
	}
}

func TestCandidatesOrder(t *testing.T) {
	Register("t-modern", KindWGPU, 100, stubFactory(KindWGPU), nil)
	Register("t-legacy", KindGL, 10, stubFactory(KindGL), nil)
	Register("t-dead", KindGL, 200, stubFactory(KindGL), func() bool { return false })
	defer Unregister("t-modern")
	defer Unregister("t-legacy")
	defer Unregister("t-dead")

	// Preferred leads; the rest follow by priority; unavailable
	// backends never appear.
	names, err := Candidates("t-legacy", true)
	if err != nil {
		t.Fatalf("Candidates failed: %v", err)
	}
	if len(names) != 2 || names[0] != "t-legacy" || names[1] != "t-modern" {
		t.Errorf("Candidates = %v, want [t-legacy t-modern]", names)
	}

	// Without fallback the list is the preferred backend alone.
	names, err = Candidates("t-modern", false)
	if err != nil {
		t.Fatalf("Candidates without fallback failed: %v", err)
	}
	if len(names) != 1 || names[0] != "t-modern" {
		t.Errorf("Candidates = %v, want [t-modern]", names)
	}

	// An unavailable preferred backend drops out of the list but the
	// fallbacks remain.
	names, err = Candidates("t-dead", true)
	if err != nil {
		t.Fatalf("Candidates with dead preferred failed: %v", err)
	}
	if len(names) != 2 || names[0] != "t-modern" || names[1] != "t-legacy" {
		t.Errorf("Candidates = %v, want [t-modern t-legacy]", names)
	}
}

func TestCandidatesErrors(t *testing.T) {
	Register("t-off", KindGL, 1, stubFactory(KindGL), func() bool { return false })
	defer Unregister("t-off")

	if _, err := Candidates("t-off", false); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("err = %v, want ErrBackendNotAvailable", err)
	}
	var nf *BackendNotFoundError
	if _, err := Candidates("t-ghost", false); !errors.As(err, &nf) {
		t.Errorf("err = %v, want BackendNotFoundError", err)
	}
	if _, err := Candidates("t-off", true); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("err = %v, want ErrBackendNotAvailable when nothing is available", err)
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		k    Kind
		want string
	}{
		{KindUnknown, "unknown"},
		{KindWGPU, "wgpu"},
		{KindGL, "gl"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}
