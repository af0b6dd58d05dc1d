// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package graph derives per-layer parameters from a single keystone
// layer. Every non-keystone layer may carry one relationship — a named
// preset or a custom function — that transforms the keystone's
// parameters into that layer's parameters on each resolve.
package graph

import (
	"errors"
	"fmt"
	"sync"

	lattice "github.com/gogpu/lattice"
)

// Common graph errors.
var (
	// ErrKeystoneRelationship is returned when assigning a relationship
	// to the keystone layer itself.
	ErrKeystoneRelationship = errors.New("graph: keystone layer cannot have a relationship")

	// ErrUnknownPreset is returned for a preset name with no
	// registered transform.
	ErrUnknownPreset = errors.New("graph: unknown preset")

	// ErrUnknownProfile is returned by LoadProfile for an unregistered
	// profile name.
	ErrUnknownProfile = errors.New("graph: unknown profile")
)

// Func derives a layer's parameters from the keystone's. The returned
// Params must be freshly allocated; implementations must not retain or
// mutate keystone.
type Func func(layer lattice.Layer, keystone *lattice.Params) *lattice.Params

// relationship binds one layer to its transform.
type relationship struct {
	preset string
	opts   map[string]any
	fn     Func
}

// Graph holds the keystone designation and per-layer relationships.
// It is safe for concurrent use.
type Graph struct {
	mu       sync.Mutex
	keystone lattice.Layer
	rels     map[lattice.Layer]*relationship
}

// New creates a graph with the content layer as keystone and no
// relationships.
func New() *Graph {
	return &Graph{
		keystone: lattice.LayerContent,
		rels:     make(map[lattice.Layer]*relationship),
	}
}

// Keystone returns the current keystone layer.
func (g *Graph) Keystone() lattice.Layer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.keystone
}

// SetKeystone promotes l to keystone. Any relationship previously
// assigned to l is dropped, since the keystone drives itself.
func (g *Graph) SetKeystone(l lattice.Layer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keystone = l
	delete(g.rels, l)
}

// SetRelationship assigns the named preset to l with the given
// options. Missing options take the preset's defaults. Stateful
// presets start from fresh state.
func (g *Graph) SetRelationship(l lattice.Layer, preset string, opts map[string]any) error {
	fn, err := NewPreset(preset, opts)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if l == g.keystone {
		return ErrKeystoneRelationship
	}
	g.rels[l] = &relationship{preset: preset, opts: opts, fn: fn}
	return nil
}

// SetRelationshipFunc assigns a custom transform to l. Custom
// relationships are excluded from ExportConfig.
func (g *Graph) SetRelationshipFunc(l lattice.Layer, fn Func) error {
	if fn == nil {
		return fmt.Errorf("graph: nil relationship func")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if l == g.keystone {
		return ErrKeystoneRelationship
	}
	g.rels[l] = &relationship{fn: fn}
	return nil
}

// ClearRelationship removes l's relationship, returning it to keystone
// pass-through.
func (g *Graph) ClearRelationship(l lattice.Layer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rels, l)
}

// Resolve derives l's parameters from the keystone's. The result is
// always a fresh Params; keystone is never mutated. Layers without a
// relationship (and the keystone itself) get a structural copy.
func (g *Graph) Resolve(l lattice.Layer, keystone *lattice.Params) *lattice.Params {
	g.mu.Lock()
	rel, ok := g.rels[l]
	isKeystone := l == g.keystone
	g.mu.Unlock()

	if isKeystone || !ok {
		return keystone.Clone()
	}
	out := rel.fn(l, keystone)
	if out == nil {
		return keystone.Clone()
	}
	return out
}

// Reset drops every relationship and restores the content keystone.
func (g *Graph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keystone = lattice.LayerContent
	g.rels = make(map[lattice.Layer]*relationship)
}

// RelationshipConfig is the declarative form of one relationship.
type RelationshipConfig struct {
	Preset  string         `json:"preset"`
	Options map[string]any `json:"options,omitempty"`
}

// Config is the declarative form of a whole graph. Stateful preset
// accumulators are deliberately excluded: importing a config always
// starts from fresh state.
type Config struct {
	Keystone      string                        `json:"keystone"`
	Relationships map[string]RelationshipConfig `json:"relationships,omitempty"`
}

// ExportConfig captures the graph's declarative state. Relationships
// installed via SetRelationshipFunc have no preset name and are
// skipped.
func (g *Graph) ExportConfig() Config {
	g.mu.Lock()
	defer g.mu.Unlock()

	cfg := Config{Keystone: g.keystone.String()}
	for l, rel := range g.rels {
		if rel.preset == "" {
			continue
		}
		if cfg.Relationships == nil {
			cfg.Relationships = make(map[string]RelationshipConfig)
		}
		cfg.Relationships[l.String()] = RelationshipConfig{Preset: rel.preset, Options: rel.opts}
	}
	return cfg
}

// ImportConfig replaces the graph's state with cfg. Presets are
// instantiated fresh; on any error the graph is left unchanged.
func (g *Graph) ImportConfig(cfg Config) error {
	keystone, err := lattice.ParseLayer(cfg.Keystone)
	if err != nil {
		return fmt.Errorf("graph: import: %w", err)
	}

	rels := make(map[lattice.Layer]*relationship, len(cfg.Relationships))
	for layerName, rc := range cfg.Relationships {
		l, err := lattice.ParseLayer(layerName)
		if err != nil {
			return fmt.Errorf("graph: import: %w", err)
		}
		if l == keystone {
			return fmt.Errorf("graph: import layer %q: %w", layerName, ErrKeystoneRelationship)
		}
		fn, err := NewPreset(rc.Preset, rc.Options)
		if err != nil {
			return fmt.Errorf("graph: import layer %q: %w", layerName, err)
		}
		rels[l] = &relationship{preset: rc.Preset, opts: rc.Options, fn: fn}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.keystone = keystone
	g.rels = rels
	return nil
}
