// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package backend defines the rendering backend contract and the
// factory registry backends register into.
//
// Two families of backends exist: the modern explicit path (WGSL
// pipelines over the wgpu HAL) and the legacy immediate path (GLSL
// programs over OpenGL 3.3). Both satisfy the same Backend interface;
// callers never branch on the family outside of shader dialect
// selection.
package backend

import (
	"errors"

	lattice "github.com/gogpu/lattice"
	"github.com/gogpu/lattice/alloc"
	"github.com/gogpu/lattice/shader"
	"github.com/gogpu/lattice/surface"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when no registered backend can
	// run on the current system.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before
	// Init succeeds.
	ErrNotInitialized = errors.New("backend: not initialized")

	// ErrContextLost is returned by operations attempted while the
	// backend's native context is lost.
	ErrContextLost = errors.New("backend: context lost")

	// ErrShaderNotCompiled is returned by Draw for a shader name that
	// was never compiled on this backend.
	ErrShaderNotCompiled = errors.New("backend: shader not compiled")

	// ErrDialectMissing is returned by Compile when the sources lack
	// the dialect this backend consumes.
	ErrDialectMissing = errors.New("backend: required shader dialect missing")
)

// BackendNotFoundError indicates a named backend is not registered.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return "backend: not found: " + e.Name
}

// Kind identifies the rendering family a backend belongs to.
type Kind uint8

const (
	// KindUnknown is the zero value; no backend reports it.
	KindUnknown Kind = iota

	// KindWGPU is the modern explicit path: WGSL shaders, bind groups,
	// fire-and-forget command submission.
	KindWGPU

	// KindGL is the legacy immediate path: GLSL 330 programs with
	// per-draw uniform upload.
	KindGL
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindWGPU:
		return "wgpu"
	case KindGL:
		return "gl"
	default:
		return "unknown"
	}
}

// DrawOptions configures a single Draw call.
type DrawOptions struct {
	// Clear requests clearing the target before the draw.
	Clear bool

	// ClearColor is the premultiplied RGBA clear color used when Clear
	// is set.
	ClearColor [4]float32
}

// Backend is one rendering implementation bound to one surface.
//
// A backend is created unbound via its factory, then bound with Init.
// All methods except Init and Close assume Init succeeded. Backends
// are not safe for concurrent use; the rendering bridge serializes
// access.
type Backend interface {
	// Kind returns the backend's rendering family.
	Kind() Kind

	// Init binds the backend to a surface and starts tracking its GPU
	// resources in reg. reg may be nil, in which case tracking is
	// skipped.
	Init(s surface.Surface, reg *alloc.Registry) error

	// Compile builds the backend's dialect of src and retains it under
	// src.Name, replacing any previous program of that name. The
	// replaced program's resources are released.
	Compile(src shader.Sources) error

	// SetUniforms stages parameter values for subsequent draws. Unknown
	// parameter names are ignored.
	SetUniforms(p *lattice.Params)

	// Draw renders the named shader over the full surface.
	Draw(name string, opts DrawOptions) error

	// Resize adjusts backend targets to the surface's current size.
	Resize(width, height int)

	// Lost reports whether the native context has been lost.
	Lost() bool

	// SetLostCallback installs fn to run once when loss is first
	// detected. A nil fn clears it.
	SetLostCallback(fn func())

	// Restore rebinds the backend to s — the reclaimed replacement of
	// the surface it was initialized with — rebuilding the native
	// context and recompiling retained shaders after a loss.
	Restore(s surface.Surface) error

	// Close releases all backend resources. Idempotent.
	Close()
}

// Factory creates a new, unbound backend instance.
type Factory func() Backend
