// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"fmt"
	"sync"

	lattice "github.com/gogpu/lattice"
	"github.com/gogpu/lattice/backend"
	"github.com/gogpu/lattice/graph"
	"github.com/gogpu/lattice/shader"
)

// DefaultShader is the shader assigned to layers at construction.
const DefaultShader = "lattice"

// MultiCanvasConfig configures a layered canvas set.
type MultiCanvasConfig struct {
	// Surfaces maps each layer to its surface ID. Layers absent from
	// the map are not rendered.
	Surfaces map[lattice.Layer]string

	// Profile names the relationship profile to load. Empty keeps the
	// default graph (content keystone, pass-through layers).
	Profile string

	// Shader names the initial catalog shader per layer. Empty means
	// DefaultShader.
	Shader string

	// Catalog supplies shader sources. Nil means the built-in catalog.
	Catalog *shader.Catalog

	// Bridge configures every per-layer bridge.
	Bridge BridgeConfig
}

// MultiCanvas drives one bridge per layer with parameters derived from
// a keystone layer through a relationship graph. All methods are safe
// for concurrent use.
type MultiCanvas struct {
	mu sync.Mutex

	bridges map[lattice.Layer]*Bridge
	shaders map[lattice.Layer]string

	catalog *shader.Catalog
	graph   *graph.Graph

	// shared is the keystone parameter set; overrides are merged on
	// top of each layer's resolved params.
	shared    *lattice.Params
	overrides map[lattice.Layer]*lattice.Params

	kind   backend.Kind
	closed bool
}

// NewMultiCanvas builds one bridge per configured layer. Bridges are
// constructed concurrently; layers whose bridge fails are dropped with
// a warning, and layers whose backend family disagrees with the first
// successful one are closed and dropped, so a canvas set never mixes
// modern and legacy rendering. At least one layer must survive.
func NewMultiCanvas(cfg MultiCanvasConfig) (*MultiCanvas, error) {
	if len(cfg.Surfaces) == 0 {
		return nil, fmt.Errorf("render: multicanvas: no surfaces configured")
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = shader.Default()
	}
	shaderName := cfg.Shader
	if shaderName == "" {
		shaderName = DefaultShader
	}
	src, ok := catalog.Lookup(shaderName)
	if !ok {
		return nil, fmt.Errorf("render: multicanvas: shader %q not in catalog", shaderName)
	}

	type result struct {
		layer  lattice.Layer
		bridge *Bridge
		err    error
	}
	results := make([]result, 0, len(cfg.Surfaces))

	var wg sync.WaitGroup
	var resMu sync.Mutex
	for layer, surfaceID := range cfg.Surfaces {
		wg.Add(1)
		go func(layer lattice.Layer, surfaceID string) {
			defer wg.Done()
			br, err := NewBridge(surfaceID, cfg.Bridge)
			resMu.Lock()
			results = append(results, result{layer: layer, bridge: br, err: err})
			resMu.Unlock()
		}(layer, surfaceID)
	}
	wg.Wait()

	mc := &MultiCanvas{
		bridges:   make(map[lattice.Layer]*Bridge),
		shaders:   make(map[lattice.Layer]string),
		catalog:   catalog,
		graph:     graph.New(),
		shared:    lattice.NewParams(),
		overrides: make(map[lattice.Layer]*lattice.Params),
	}

	// First successful bridge fixes the backend family; stragglers of
	// another family are closed rather than mixed.
	for _, r := range results {
		if r.err != nil {
			lattice.Logger().Warn("layer dropped: bridge failed",
				"layer", r.layer.String(), "error", r.err)
			continue
		}
		if mc.kind == backend.KindUnknown {
			mc.kind = r.bridge.Kind()
		}
		if r.bridge.Kind() != mc.kind {
			lattice.Logger().Warn("layer dropped: backend family mismatch",
				"layer", r.layer.String(), "got", r.bridge.Kind().String(), "want", mc.kind.String())
			r.bridge.Close()
			continue
		}
		mc.bridges[r.layer] = r.bridge
		mc.shaders[r.layer] = shaderName
	}
	if len(mc.bridges) == 0 {
		return nil, fmt.Errorf("render: multicanvas: no layer could be initialized")
	}

	for layer, br := range mc.bridges {
		if !br.CompileShader(src) {
			lattice.Logger().Warn("initial shader failed on layer",
				"layer", layer.String(), "shader", shaderName)
		}
	}

	if cfg.Profile != "" {
		if err := mc.graph.LoadProfile(cfg.Profile); err != nil {
			mc.Close()
			return nil, fmt.Errorf("render: multicanvas: %w", err)
		}
	}

	lattice.Logger().Info("multicanvas initialized",
		"layers", len(mc.bridges), "backend", mc.kind.String(), "shader", shaderName)
	return mc, nil
}

// Graph exposes the relationship graph for keystone and preset
// management.
func (mc *MultiCanvas) Graph() *graph.Graph { return mc.graph }

// BackendKind returns the backend family shared by every layer.
func (mc *MultiCanvas) BackendKind() backend.Kind {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.kind
}

// Layers returns the live layers in back-to-front order.
func (mc *MultiCanvas) Layers() []lattice.Layer {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	out := make([]lattice.Layer, 0, len(mc.bridges))
	for _, l := range lattice.Layers() {
		if _, ok := mc.bridges[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Bridge returns the bridge for a layer, if that layer is live.
func (mc *MultiCanvas) Bridge(l lattice.Layer) (*Bridge, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	br, ok := mc.bridges[l]
	return br, ok
}

// SetSharedParams replaces the keystone parameter set.
func (mc *MultiCanvas) SetSharedParams(p *lattice.Params) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.shared = p.Clone()
}

// SetSharedParam updates one keystone parameter.
func (mc *MultiCanvas) SetSharedParam(name string, v lattice.Value) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.shared.Set(name, v)
}

// SetLayerParams installs per-layer overrides merged on top of the
// layer's resolved parameters. Nil clears the override.
func (mc *MultiCanvas) SetLayerParams(l lattice.Layer, p *lattice.Params) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if p == nil {
		delete(mc.overrides, l)
		return
	}
	mc.overrides[l] = p.Clone()
}

// SetShader switches one layer to a named catalog shader.
func (mc *MultiCanvas) SetShader(l lattice.Layer, name string) error {
	mc.mu.Lock()
	br, live := mc.bridges[l]
	mc.mu.Unlock()
	if !live {
		return fmt.Errorf("render: multicanvas: layer %s not live", l)
	}
	src, ok := mc.catalog.Lookup(name)
	if !ok {
		return fmt.Errorf("render: multicanvas: shader %q not in catalog", name)
	}
	if !br.CompileShader(src) {
		return fmt.Errorf("render: multicanvas: shader %q rejected on layer %s", name, l)
	}
	mc.mu.Lock()
	mc.shaders[l] = name
	mc.mu.Unlock()
	return nil
}

// SetShaderAll switches every live layer to a named catalog shader.
// Layers that reject the shader keep their previous one.
func (mc *MultiCanvas) SetShaderAll(name string) error {
	var firstErr error
	for _, l := range mc.Layers() {
		if err := mc.SetShader(l, name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RenderAll resolves each live layer's parameters through the graph,
// merges overrides, and draws back-to-front. A layer whose draw fails
// is logged and skipped; one bad layer never blanks the frame for the
// others.
func (mc *MultiCanvas) RenderAll(opts backend.DrawOptions) error {
	mc.mu.Lock()
	if mc.closed {
		mc.mu.Unlock()
		return fmt.Errorf("render: multicanvas closed")
	}
	shared := mc.shared
	type job struct {
		layer  lattice.Layer
		bridge *Bridge
		name   string
		over   *lattice.Params
	}
	jobs := make([]job, 0, len(mc.bridges))
	for _, l := range lattice.Layers() {
		br, ok := mc.bridges[l]
		if !ok {
			continue
		}
		jobs = append(jobs, job{layer: l, bridge: br, name: mc.shaders[l], over: mc.overrides[l]})
	}
	mc.mu.Unlock()

	for _, j := range jobs {
		params := mc.graph.Resolve(j.layer, shared)
		if j.over != nil {
			params.Merge(j.over)
		}
		j.bridge.SetUniforms(params)
		if err := j.bridge.Render(j.name, opts); err != nil {
			lattice.Logger().Warn("layer draw failed",
				"layer", j.layer.String(), "shader", j.name, "error", err)
		}
	}
	return nil
}

// Tick advances the shared clock to ts (milliseconds) and renders all
// layers with a clear.
func (mc *MultiCanvas) Tick(ts float64) error {
	mc.SetSharedParam(lattice.ParamTime, lattice.Float(float32(ts)))
	return mc.RenderAll(backend.DrawOptions{Clear: true})
}

// ResizeAll propagates a new size and scale factor to every live
// layer. A scale of 0 keeps each surface's current scale.
func (mc *MultiCanvas) ResizeAll(width, height int, scale float64) {
	for _, l := range mc.Layers() {
		if br, ok := mc.Bridge(l); ok {
			br.Resize(width, height, scale)
		}
	}
}

// Reinitialize recovers every lost layer. Layers that fail recovery
// stay lost; the first error is returned.
func (mc *MultiCanvas) Reinitialize() error {
	var firstErr error
	for _, l := range mc.Layers() {
		br, ok := mc.Bridge(l)
		if !ok || br.Active() {
			continue
		}
		if err := br.Reinitialize(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close releases every bridge and drops the graph's runtime state.
// Idempotent.
func (mc *MultiCanvas) Close() {
	mc.mu.Lock()
	if mc.closed {
		mc.mu.Unlock()
		return
	}
	mc.closed = true
	bridges := mc.bridges
	mc.bridges = make(map[lattice.Layer]*Bridge)
	mc.mu.Unlock()

	for _, br := range bridges {
		br.Close()
	}
	mc.graph.Reset()
}
