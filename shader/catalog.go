// Package shader provides named shader source sets for the rendering
// backends. A named shader carries up to three sources: a WGSL module
// for the explicit backend and a GLSL vertex/fragment pair for the
// legacy backend. Any subset may be absent, in which case that backend
// path is skipped for the name.
package shader

import (
	_ "embed"
	"errors"
	"sort"
	"sync"
)

// Embedded default shader sources.
// These are compiled at build time using go:embed directives.

//go:embed shaders/fullscreen.vert
var fullscreenVertSource string

//go:embed shaders/lattice.wgsl
var latticeWGSLSource string

//go:embed shaders/lattice.frag
var latticeFragSource string

//go:embed shaders/hypercube.wgsl
var hypercubeWGSLSource string

//go:embed shaders/hypercube.frag
var hypercubeFragSource string

//go:embed shaders/wave.wgsl
var waveWGSLSource string

//go:embed shaders/wave.frag
var waveFragSource string

// ErrEmptyName is returned when registering sources without a name.
var ErrEmptyName = errors.New("shader: empty name")

// Sources is one named shader in up to two dialects.
type Sources struct {
	// Name keys the compiled pipeline on every backend.
	Name string

	// WGSL is the unified module for the explicit backend
	// (entry points vs_main / fs_main).
	WGSL string

	// VertexGLSL and FragmentGLSL are the pair for the legacy backend.
	VertexGLSL   string
	FragmentGLSL string
}

// HasModern reports whether the explicit backend can compile this.
func (s Sources) HasModern() bool { return s.WGSL != "" }

// HasLegacy reports whether the legacy backend can compile this.
func (s Sources) HasLegacy() bool { return s.VertexGLSL != "" && s.FragmentGLSL != "" }

// Empty reports whether no backend has a usable source.
func (s Sources) Empty() bool { return !s.HasModern() && !s.HasLegacy() }

// Catalog is a named registry of shader sources.
// Catalog is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]Sources
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]Sources)}
}

// Register adds or replaces a named shader.
func (c *Catalog) Register(s Sources) error {
	if s.Name == "" {
		return ErrEmptyName
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]Sources)
	}
	c.entries[s.Name] = s
	return nil
}

// Lookup returns the sources registered under name.
func (c *Catalog) Lookup(name string) (Sources, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[name]
	return s, ok
}

// Names returns all registered names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for n := range c.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// defaultCatalog holds the built-in 4D kernels.
var defaultCatalog = func() *Catalog {
	c := NewCatalog()
	builtins := []Sources{
		{
			Name:         "lattice",
			WGSL:         latticeWGSLSource,
			VertexGLSL:   fullscreenVertSource,
			FragmentGLSL: latticeFragSource,
		},
		{
			Name:         "hypercube",
			WGSL:         hypercubeWGSLSource,
			VertexGLSL:   fullscreenVertSource,
			FragmentGLSL: hypercubeFragSource,
		},
		{
			Name:         "wave",
			WGSL:         waveWGSLSource,
			VertexGLSL:   fullscreenVertSource,
			FragmentGLSL: waveFragSource,
		},
	}
	for _, s := range builtins {
		_ = c.Register(s)
	}
	return c
}()

// Default returns the catalog of built-in shaders (lattice, hypercube,
// wave), each available in both dialects.
func Default() *Catalog { return defaultCatalog }
