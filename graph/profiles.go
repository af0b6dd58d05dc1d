// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"fmt"
	"sync"

	lattice "github.com/gogpu/lattice"
)

// Built-in profile names.
const (
	ProfileUnison       = "unison"
	ProfileCounterpoint = "counterpoint"
	ProfileCascade      = "cascade"
	ProfileSwarm        = "swarm"
)

var (
	profilesMu sync.RWMutex
	profiles   = map[string]Config{
		// unison: every layer reproduces the keystone exactly.
		ProfileUnison: {
			Keystone: lattice.LayerContent.String(),
			Relationships: map[string]RelationshipConfig{
				lattice.LayerBackground.String(): {Preset: PresetEcho, Options: map[string]any{"strength": 1.0}},
				lattice.LayerShadow.String():     {Preset: PresetEcho, Options: map[string]any{"strength": 1.0}},
				lattice.LayerHighlight.String():  {Preset: PresetEcho, Options: map[string]any{"strength": 1.0}},
				lattice.LayerAccent.String():     {Preset: PresetEcho, Options: map[string]any{"strength": 1.0}},
			},
		},
		// counterpoint: foreground layers oppose the keystone while
		// background layers shadow it.
		ProfileCounterpoint: {
			Keystone: lattice.LayerContent.String(),
			Relationships: map[string]RelationshipConfig{
				lattice.LayerBackground.String(): {Preset: PresetEcho, Options: map[string]any{"strength": 0.6}},
				lattice.LayerShadow.String():     {Preset: PresetEcho, Options: map[string]any{"strength": 0.4}},
				lattice.LayerHighlight.String():  {Preset: PresetMirror, Options: map[string]any{"flipHue": true}},
				lattice.LayerAccent.String():     {Preset: PresetComplement},
			},
		},
		// cascade: layers trail the keystone, slower with depth.
		ProfileCascade: {
			Keystone: lattice.LayerContent.String(),
			Relationships: map[string]RelationshipConfig{
				lattice.LayerHighlight.String():  {Preset: PresetChase, Options: map[string]any{"rate": 0.3}},
				lattice.LayerAccent.String():     {Preset: PresetChase, Options: map[string]any{"rate": 0.2}},
				lattice.LayerShadow.String():     {Preset: PresetChase, Options: map[string]any{"rate": 0.1}},
				lattice.LayerBackground.String(): {Preset: PresetChase, Options: map[string]any{"rate": 0.05}},
			},
		},
		// swarm: restless motion around the keystone.
		ProfileSwarm: {
			Keystone: lattice.LayerContent.String(),
			Relationships: map[string]RelationshipConfig{
				lattice.LayerBackground.String(): {Preset: PresetHarmonic, Options: map[string]any{"frequency": 0.7, "amplitude": 0.3}},
				lattice.LayerShadow.String():     {Preset: PresetHarmonic, Options: map[string]any{"frequency": 1.3, "amplitude": 0.4, "phase": 2.1}},
				lattice.LayerHighlight.String():  {Preset: PresetReactive, Options: map[string]any{"gain": 3.0}},
				lattice.LayerAccent.String():     {Preset: PresetHarmonic, Options: map[string]any{"frequency": 2.9, "amplitude": 0.2, "phase": 4.2}},
			},
		},
	}
)

// Profiles returns the registered profile names.
func Profiles() []string {
	profilesMu.RLock()
	defer profilesMu.RUnlock()
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	return names
}

// RegisterProfile adds or replaces a named profile. The config is
// validated by instantiating it into a throwaway graph.
func RegisterProfile(name string, cfg Config) error {
	if name == "" {
		return fmt.Errorf("graph: empty profile name")
	}
	if err := New().ImportConfig(cfg); err != nil {
		return fmt.Errorf("graph: profile %q: %w", name, err)
	}
	profilesMu.Lock()
	defer profilesMu.Unlock()
	profiles[name] = cfg
	return nil
}

// LoadProfile atomically replaces the graph's state with the named
// profile. Stateful presets start from fresh state.
func (g *Graph) LoadProfile(name string) error {
	profilesMu.RLock()
	cfg, ok := profiles[name]
	profilesMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return g.ImportConfig(cfg)
}
