// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package noop provides a backend that accepts every operation without
// touching any GPU. It keeps the full resource bookkeeping of a real
// backend, which makes it the fallback for headless environments and
// the workhorse for tests.
package noop

import (
	"fmt"

	lattice "github.com/gogpu/lattice"
	"github.com/gogpu/lattice/alloc"
	"github.com/gogpu/lattice/backend"
	"github.com/gogpu/lattice/shader"
	"github.com/gogpu/lattice/surface"
)

const kindProgram = "noop-program"

// Backend satisfies backend.Backend with no rendering.
type Backend struct {
	surf surface.Surface
	reg  *alloc.Registry

	width  int
	height int

	programs map[string]shader.Sources
	staged   *lattice.Params

	frames      uint64
	initialized bool
	lost        bool
	lostFn      func()
}

var _ backend.Backend = (*Backend)(nil)

// New returns an unbound noop backend.
func New() *Backend {
	return &Backend{programs: make(map[string]shader.Sources)}
}

// Kind reports the noop backend as part of the modern family so mixed
// orchestration treats it like a wgpu peer.
func (b *Backend) Kind() backend.Kind { return backend.KindWGPU }

func (b *Backend) Init(s surface.Surface, reg *alloc.Registry) error {
	if b.initialized {
		return nil
	}
	if s == nil {
		return fmt.Errorf("noop: init: nil surface")
	}
	b.surf = s
	b.reg = reg
	b.width, b.height = s.Size()
	b.initialized = true
	return nil
}

func (b *Backend) Compile(src shader.Sources) error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if b.lost {
		return backend.ErrContextLost
	}
	if src.Empty() {
		return fmt.Errorf("noop: compile %q: %w", src.Name, backend.ErrDialectMissing)
	}
	if _, ok := b.programs[src.Name]; ok && b.reg != nil {
		b.reg.Dispose(kindProgram, src.Name)
	}
	b.programs[src.Name] = src
	if b.reg != nil {
		b.reg.Register(kindProgram, src.Name, nil, uint64(len(src.WGSL)+len(src.FragmentGLSL)), src.Name)
	}
	return nil
}

func (b *Backend) SetUniforms(p *lattice.Params) {
	b.staged = p.Clone()
}

func (b *Backend) Draw(name string, _ backend.DrawOptions) error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if b.lost {
		return backend.ErrContextLost
	}
	if _, ok := b.programs[name]; !ok {
		return fmt.Errorf("noop: draw %q: %w", name, backend.ErrShaderNotCompiled)
	}
	b.frames++
	return nil
}

func (b *Backend) Resize(width, height int) {
	if width > 0 && height > 0 {
		b.width, b.height = width, height
	}
}

func (b *Backend) Lost() bool { return b.lost }

func (b *Backend) SetLostCallback(fn func()) { b.lostFn = fn }

// ForceLoss simulates a context loss, for tests and drills.
func (b *Backend) ForceLoss() {
	if !b.lost {
		b.lost = true
		if b.lostFn != nil {
			fn := b.lostFn
			b.lostFn = nil
			fn()
		}
	}
}

func (b *Backend) Restore(s surface.Surface) error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if s != nil {
		b.surf = s
	}
	b.lost = false
	return nil
}

func (b *Backend) Close() {
	if !b.initialized {
		return
	}
	if b.reg != nil {
		for name := range b.programs {
			b.reg.Dispose(kindProgram, name)
		}
	}
	b.programs = make(map[string]shader.Sources)
	b.staged = nil
	b.frames = 0
	b.initialized = false
	b.lost = false
	b.lostFn = nil
}

// Frames returns the number of draws accepted since Init.
func (b *Backend) Frames() uint64 { return b.frames }

// Staged returns the last staged parameters.
func (b *Backend) Staged() *lattice.Params { return b.staged }

func init() {
	backend.Register("noop", backend.KindWGPU, 1, func() backend.Backend { return New() }, nil)
}
