// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"sync"
	"sync/atomic"
)

// offscreenGeneration distinguishes successive surfaces created for
// the same ID.
var offscreenGeneration atomic.Uint64

// Offscreen is a headless render target. It has no native window; its
// handle is the surface itself, which backends treat as a request for
// an internal texture target.
type Offscreen struct {
	mu         sync.Mutex
	id         string
	width      int
	height     int
	scale      float64
	generation uint64
	invalid    bool
}

// NewOffscreen creates a headless surface from opts. Zero sizes
// default to 1x1 and a zero scale to 1.
func NewOffscreen(opts Options) *Offscreen {
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	return &Offscreen{
		id:         opts.ID,
		width:      w,
		height:     h,
		scale:      scale,
		generation: offscreenGeneration.Add(1),
	}
}

func (s *Offscreen) ID() string { return s.id }

func (s *Offscreen) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *Offscreen) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

func (s *Offscreen) Resize(width, height int, scale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width > 0 {
		s.width = width
	}
	if height > 0 {
		s.height = height
	}
	if scale > 0 {
		s.scale = scale
	}
}

func (s *Offscreen) NativeHandle() any { return s }

// Generation returns the creation sequence number. A reclaimed
// replacement has a higher generation than the surface it replaced.
func (s *Offscreen) Generation() uint64 { return s.generation }

func (s *Offscreen) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.invalid
}

func (s *Offscreen) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalid = true
}

func (s *Offscreen) Release() {
	s.Invalidate()
}

// offscreenProvider serves NewOffscreen through the registry.
type offscreenProvider struct{}

func (offscreenProvider) Name() string { return "offscreen" }

func (offscreenProvider) Create(opts Options) (Surface, error) {
	return NewOffscreen(opts), nil
}

func init() {
	// Headless targets work everywhere; real window-system providers
	// register above this priority.
	DefaultRegistry().Register(offscreenProvider{}, 10, nil)
}
