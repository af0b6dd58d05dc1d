// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package gl implements the legacy immediate rendering backend on
// OpenGL 3.3 core. Shaders are GLSL 330 pairs; parameter values are
// uploaded as individual uniforms on every draw, dispatched by the
// arity discovered through program introspection.
//
// The backend assumes the caller holds a current GL context on the
// calling goroutine for Init and for every draw.
package gl

import (
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"

	lattice "github.com/gogpu/lattice"
	"github.com/gogpu/lattice/alloc"
	"github.com/gogpu/lattice/backend"
	"github.com/gogpu/lattice/shader"
	"github.com/gogpu/lattice/surface"
)

// glContextLost mirrors GL_CONTEXT_LOST from KHR_robustness, which the
// v3.3-core binding does not export.
const glContextLost = 0x0507

// Allocation kinds recorded in the registry.
const (
	kindProgram = "gl-program"
	kindVAO     = "gl-vao"
)

// program is one linked GLSL pair with its uniform table.
type program struct {
	vertex   string
	fragment string
	handle   uint32
	uniforms map[string]uniformInfo
}

// Backend renders through OpenGL 3.3 core.
type Backend struct {
	surf surface.Surface
	reg  *alloc.Registry

	width  int32
	height int32

	vao      uint32
	programs map[string]*program
	staged   *lattice.Params

	initialized bool
	lost        bool
	lostFn      func()
}

var _ backend.Backend = (*Backend)(nil)

// New returns an unbound GL backend.
func New() *Backend {
	return &Backend{programs: make(map[string]*program)}
}

func (b *Backend) Kind() backend.Kind { return backend.KindGL }

// Init loads GL function pointers against the current context and
// prepares the shared vertex array. Whether a usable context exists
// cannot be probed beforehand, so availability is decided here.
func (b *Backend) Init(s surface.Surface, reg *alloc.Registry) error {
	if b.initialized {
		return nil
	}
	if s == nil {
		return fmt.Errorf("gl: init: nil surface")
	}
	if err := gl.Init(); err != nil {
		return fmt.Errorf("gl: load function pointers: %w", err)
	}
	b.surf = s
	b.reg = reg

	w, h := s.Size()
	b.width, b.height = int32(w), int32(h)

	// The fullscreen triangle is generated from gl_VertexID; core
	// profile still requires a bound VAO for any draw.
	gl.GenVertexArrays(1, &b.vao)
	vao := b.vao
	b.record(kindVAO, vao, 0, "vao:"+s.ID(), func() error {
		gl.DeleteVertexArrays(1, &vao)
		return nil
	})

	gl.Disable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.ONE, gl.ONE_MINUS_SRC_ALPHA)

	b.initialized = true
	lattice.Logger().Debug("gl backend initialized", "surface", s.ID(), "width", w, "height", h)
	return nil
}

// Compile links src's GLSL pair and retains it under src.Name. The
// active uniforms of the linked program are introspected once so draws
// can dispatch by arity without string lookups against the driver.
func (b *Backend) Compile(src shader.Sources) error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if b.lost {
		return backend.ErrContextLost
	}
	if !src.HasLegacy() {
		return fmt.Errorf("gl: compile %q: %w", src.Name, backend.ErrDialectMissing)
	}

	handle, err := linkProgram(src.VertexGLSL, src.FragmentGLSL)
	if err != nil {
		return fmt.Errorf("gl: compile %q: %w", src.Name, err)
	}

	p := &program{
		vertex:   src.VertexGLSL,
		fragment: src.FragmentGLSL,
		handle:   handle,
		uniforms: introspectUniforms(handle),
	}
	b.record(kindProgram, handle, 0, src.Name, func() error {
		gl.DeleteProgram(handle)
		return nil
	})

	if old, ok := b.programs[src.Name]; ok {
		b.dispose(kindProgram, old.handle)
	}
	b.programs[src.Name] = p
	lattice.Logger().Debug("gl shader compiled", "shader", src.Name, "uniforms", len(p.uniforms))
	return nil
}

// SetUniforms stages p for subsequent draws.
func (b *Backend) SetUniforms(p *lattice.Params) {
	b.staged = p.Clone()
}

// Draw renders the named program as a fullscreen triangle, uploading
// every staged parameter that matches an active uniform.
func (b *Backend) Draw(name string, opts backend.DrawOptions) error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if b.lost {
		return backend.ErrContextLost
	}
	p, ok := b.programs[name]
	if !ok {
		return fmt.Errorf("gl: draw %q: %w", name, backend.ErrShaderNotCompiled)
	}

	gl.Viewport(0, 0, b.width, b.height)
	if opts.Clear {
		c := opts.ClearColor
		gl.ClearColor(c[0], c[1], c[2], c[3])
		gl.Clear(gl.COLOR_BUFFER_BIT)
	}

	gl.UseProgram(p.handle)
	b.uploadUniforms(p)

	gl.BindVertexArray(b.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)

	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		err := fmt.Errorf("gl: draw %q: error 0x%04x", name, glErr)
		if glErr == glContextLost {
			return b.markLost(err)
		}
		return err
	}
	return nil
}

func (b *Backend) uploadUniforms(p *program) {
	if info, ok := p.uniforms[lattice.ParamResolution]; ok && info.arity == 2 {
		gl.Uniform2f(info.location, float32(b.width), float32(b.height))
	}
	if b.staged == nil {
		return
	}
	b.staged.Each(func(name string, v lattice.Value) {
		if name == lattice.ParamResolution {
			return // surface size wins
		}
		info, ok := p.uniforms[name]
		if !ok {
			return
		}
		c := v.Components()
		if int(info.arity) > len(c) {
			return
		}
		switch info.arity {
		case 1:
			gl.Uniform1f(info.location, c[0])
		case 2:
			gl.Uniform2f(info.location, c[0], c[1])
		case 3:
			gl.Uniform3f(info.location, c[0], c[1], c[2])
		case 4:
			gl.Uniform4f(info.location, c[0], c[1], c[2], c[3])
		}
	})
}

// Resize updates the viewport dimensions used by subsequent draws.
func (b *Backend) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	b.width, b.height = int32(width), int32(height)
}

func (b *Backend) Lost() bool { return b.lost }

func (b *Backend) SetLostCallback(fn func()) { b.lostFn = fn }

func (b *Backend) markLost(err error) error {
	if !b.lost {
		b.lost = true
		lattice.Logger().Warn("gl context lost", "error", err)
		if b.lostFn != nil {
			fn := b.lostFn
			b.lostFn = nil
			fn()
		}
	}
	return err
}

// Restore relinks every retained program against the fresh context of
// s, the reclaimed replacement surface. The caller makes the fresh
// context current before calling.
func (b *Backend) Restore(s surface.Surface) error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if s != nil {
		b.surf = s
	}
	if err := gl.Init(); err != nil {
		return fmt.Errorf("gl: restore: %w", err)
	}

	retained := b.programs
	b.programs = make(map[string]*program, len(retained))
	// Handles from the dead context are unusable; drop the records
	// without running GL deletes against them.
	for _, old := range retained {
		b.release(kindProgram, old.handle)
	}
	b.release(kindVAO, b.vao)

	gl.GenVertexArrays(1, &b.vao)
	vao := b.vao
	b.record(kindVAO, vao, 0, "vao:"+b.surf.ID(), func() error {
		gl.DeleteVertexArrays(1, &vao)
		return nil
	})
	gl.Disable(gl.DEPTH_TEST)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.ONE, gl.ONE_MINUS_SRC_ALPHA)

	b.lost = false
	for name, old := range retained {
		err := b.Compile(shader.Sources{Name: name, VertexGLSL: old.vertex, FragmentGLSL: old.fragment})
		if err != nil {
			return fmt.Errorf("gl: restore shader %q: %w", name, err)
		}
	}
	lattice.Logger().Info("gl context restored", "shaders", len(retained))
	return nil
}

// Close deletes every program and the vertex array. Idempotent.
func (b *Backend) Close() {
	if !b.initialized {
		return
	}
	if !b.lost {
		for _, p := range b.programs {
			b.dispose(kindProgram, p.handle)
		}
		b.dispose(kindVAO, b.vao)
	} else {
		for _, p := range b.programs {
			b.release(kindProgram, p.handle)
		}
		b.release(kindVAO, b.vao)
	}
	b.programs = make(map[string]*program)
	b.staged = nil
	b.vao = 0
	b.initialized = false
	b.lost = false
	b.lostFn = nil
}

func (b *Backend) record(kind string, handle uint32, bytes uint64, label string, disposer func() error) {
	if b.reg == nil {
		return
	}
	b.reg.Register(kind, handle, disposer, bytes, label)
}

func (b *Backend) dispose(kind string, handle uint32) {
	if b.reg != nil {
		if b.reg.Dispose(kind, handle) {
			return
		}
	}
	switch kind {
	case kindProgram:
		gl.DeleteProgram(handle)
	case kindVAO:
		h := handle
		gl.DeleteVertexArrays(1, &h)
	}
}

// release drops registry records without running disposers, for
// handles orphaned by a dead context.
func (b *Backend) release(kind string, handle uint32) {
	if b.reg != nil {
		b.reg.Release(kind, handle)
	}
}

func init() {
	// A current GL context cannot be detected without attempting to
	// load function pointers, which is only safe inside Init. Register
	// as always available and let Init fail gracefully.
	backend.Register("gl", backend.KindGL, 50, func() backend.Backend { return New() }, nil)
}
