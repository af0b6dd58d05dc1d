// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package surface abstracts the render targets that backends draw
// into. A Surface wraps one native drawing surface (an offscreen
// target, a window-system surface, a canvas) and carries the identity
// and sizing a rendering bridge needs.
//
// Providers register themselves with the registry; the pool uses the
// registry's Reclaim to guarantee no stale native context survives a
// surface across acquire/release cycles.
package surface

import "errors"

// Options configures surface acquisition.
type Options struct {
	// ID is the stable external identity of the surface (e.g. a canvas
	// element id). Reclaimed replacements keep the same ID.
	ID string

	// Width and Height are the surface size in physical pixels.
	Width, Height int

	// Scale is the device pixel ratio. 0 means 1.
	Scale float64
}

// Surface is one native render target.
//
// Implementations are owned by exactly one rendering bridge at a time;
// the pool enforces that no two slots share a surface.
type Surface interface {
	// ID returns the surface's stable identity.
	ID() string

	// Size returns the current size in physical pixels.
	Size() (width, height int)

	// Scale returns the device pixel ratio.
	Scale() float64

	// Resize updates the surface size.
	Resize(width, height int, scale float64)

	// NativeHandle exposes the provider-specific native object, or nil
	// for surfaces with no native representation.
	NativeHandle() any

	// Valid reports whether the native context behind the surface is
	// still usable. Invalidation is sticky: once false, only a
	// replacement surface (from Registry.Reclaim) is valid again.
	Valid() bool

	// Invalidate forces the loss of any native context bound to the
	// surface. Safe to call repeatedly.
	Invalidate()

	// Release frees the surface's native resources. The surface is
	// invalid afterwards.
	Release()
}

// Common surface errors.
var (
	// ErrNoProviderAvailable is returned when no surface providers are
	// registered or available on the current system.
	ErrNoProviderAvailable = errors.New("surface: no provider available")

	// ErrUnknownSurface is returned by Reclaim for an ID that was never
	// acquired through the registry.
	ErrUnknownSurface = errors.New("surface: unknown surface id")
)

// ProviderNotFoundError indicates a named provider is not registered.
type ProviderNotFoundError struct {
	Name string
}

func (e *ProviderNotFoundError) Error() string {
	return "surface: provider not found: " + e.Name
}

// ProviderUnavailableError indicates a provider exists but is not
// available on this system.
type ProviderUnavailableError struct {
	Name string
}

func (e *ProviderUnavailableError) Error() string {
	return "surface: provider unavailable: " + e.Name
}
