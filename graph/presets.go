// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package graph

import (
	"fmt"
	"math"

	lattice "github.com/gogpu/lattice"
)

// Preset names accepted by NewPreset and SetRelationship.
const (
	PresetEcho       = "echo"
	PresetMirror     = "mirror"
	PresetComplement = "complement"
	PresetHarmonic   = "harmonic"
	PresetReactive   = "reactive"
	PresetChase      = "chase"
)

// rotationParams are the defaults for presets that act on rotation.
var rotationParams = []string{
	lattice.ParamRot4DXW,
	lattice.ParamRot4DYW,
	lattice.ParamRot4DZW,
}

// NewPreset instantiates a preset transform. opts may be nil; missing
// keys take defaults. Stateful presets (reactive, chase) own an
// explicit accumulator struct per instance, so each call starts fresh.
func NewPreset(name string, opts map[string]any) (Func, error) {
	switch name {
	case PresetEcho:
		return newEcho(opts), nil
	case PresetMirror:
		return newMirror(opts), nil
	case PresetComplement:
		return newComplement(opts), nil
	case PresetHarmonic:
		return newHarmonic(opts), nil
	case PresetReactive:
		return newReactive(opts), nil
	case PresetChase:
		return newChase(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
}

func optFloat(opts map[string]any, key string, def float32) float32 {
	if opts == nil {
		return def
	}
	switch v := opts[key].(type) {
	case float64:
		return float32(v)
	case float32:
		return v
	case int:
		return float32(v)
	default:
		return def
	}
}

func optBool(opts map[string]any, key string, def bool) bool {
	if opts == nil {
		return def
	}
	if v, ok := opts[key].(bool); ok {
		return v
	}
	return def
}

func optStrings(opts map[string]any, key string, def []string) []string {
	if opts == nil {
		return def
	}
	switch v := opts[key].(type) {
	case []string:
		if len(v) > 0 {
			return v
		}
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func wrapHue(h float32) float32 {
	h = float32(math.Mod(float64(h), 360))
	if h < 0 {
		h += 360
	}
	return h
}

// newEcho follows the keystone at reduced energy: intensity and chaos
// are scaled by strength (default 0.85).
func newEcho(opts map[string]any) Func {
	strength := optFloat(opts, "strength", 0.85)
	return func(_ lattice.Layer, keystone *lattice.Params) *lattice.Params {
		out := keystone.Clone()
		out.SetFloat(lattice.ParamIntensity, keystone.Float(lattice.ParamIntensity)*strength)
		out.SetFloat(lattice.ParamChaos, keystone.Float(lattice.ParamChaos)*strength)
		return out
	}
}

// newMirror reflects the keystone: 4D rotations are negated when
// invertRotation is set (default true), and the hue is flipped by 180
// degrees when flipHue is set (default false).
func newMirror(opts map[string]any) Func {
	invert := optBool(opts, "invertRotation", true)
	flipHue := optBool(opts, "flipHue", false)
	return func(_ lattice.Layer, keystone *lattice.Params) *lattice.Params {
		out := keystone.Clone()
		if invert {
			for _, name := range rotationParams {
				out.SetFloat(name, -keystone.Float(name))
			}
		}
		if flipHue {
			out.SetFloat(lattice.ParamHue, wrapHue(keystone.Float(lattice.ParamHue)+180))
		}
		return out
	}
}

// newComplement opposes the keystone visually: hue is shifted by
// hueOffset (default 180) and grid density is reflected around
// densityPivot (default 15), floored at zero.
func newComplement(opts map[string]any) Func {
	hueOffset := optFloat(opts, "hueOffset", 180)
	pivot := optFloat(opts, "densityPivot", 15)
	return func(_ lattice.Layer, keystone *lattice.Params) *lattice.Params {
		out := keystone.Clone()
		out.SetFloat(lattice.ParamHue, wrapHue(keystone.Float(lattice.ParamHue)+hueOffset))
		density := 2*pivot - keystone.Float(lattice.ParamGridDensity)
		if density < 0 {
			density = 0
		}
		out.SetFloat(lattice.ParamGridDensity, density)
		return out
	}
}

// newHarmonic modulates the listed params (default the 4D rotations)
// with a sine of the keystone's clock: amplitude (default 0.5) at
// frequency (default 2) with phase offset (default 0).
func newHarmonic(opts map[string]any) Func {
	frequency := optFloat(opts, "frequency", 2)
	amplitude := optFloat(opts, "amplitude", 0.5)
	phase := optFloat(opts, "phase", 0)
	params := optStrings(opts, "params", rotationParams)
	return func(_ lattice.Layer, keystone *lattice.Params) *lattice.Params {
		out := keystone.Clone()
		t := float64(keystone.Float(lattice.ParamTime)) * 0.001
		wave := amplitude * float32(math.Sin(float64(frequency)*t+float64(phase)))
		for _, name := range params {
			out.SetFloat(name, keystone.Float(name)+wave)
		}
		return out
	}
}

// reactivePreset amplifies keystone motion: each tracked param carries
// a level that spikes by gain times the param's change since the
// previous resolve and decays per resolve. The accumulator maps live
// on the struct; a new instance always starts cold.
type reactivePreset struct {
	gain   float32
	decay  float32
	params []string

	prev   map[string]float32
	level  map[string]float32
	seeded bool
}

// newReactive builds a reactive instance: gain default 2, decay
// default 0.92, params default intensity.
func newReactive(opts map[string]any) Func {
	p := &reactivePreset{
		gain:   optFloat(opts, "gain", 2),
		decay:  optFloat(opts, "decay", 0.92),
		params: optStrings(opts, "params", []string{lattice.ParamIntensity}),
	}
	p.prev = make(map[string]float32, len(p.params))
	p.level = make(map[string]float32, len(p.params))
	return p.resolve
}

func (p *reactivePreset) resolve(_ lattice.Layer, keystone *lattice.Params) *lattice.Params {
	out := keystone.Clone()
	for _, name := range p.params {
		base := keystone.Float(name)
		if p.seeded {
			delta := float32(math.Abs(float64(base - p.prev[name])))
			spiked := delta * p.gain
			decayed := p.level[name] * p.decay
			if spiked > decayed {
				p.level[name] = spiked
			} else {
				p.level[name] = decayed
			}
		}
		p.prev[name] = base
		out.SetFloat(name, base+p.level[name])
	}
	p.seeded = true
	return out
}

// chasePreset trails the keystone: each tracked param keeps an
// accumulator that moves toward the keystone value by rate per
// resolve. The first resolve snaps to the keystone so layers never
// sweep in from zero.
type chasePreset struct {
	rate   float32
	params []string

	acc    map[string]float32
	seeded bool
}

// newChase builds a chase instance: rate default 0.12, params default
// the 4D rotations.
func newChase(opts map[string]any) Func {
	p := &chasePreset{
		rate:   optFloat(opts, "rate", 0.12),
		params: optStrings(opts, "params", rotationParams),
	}
	p.acc = make(map[string]float32, len(p.params))
	return p.resolve
}

func (p *chasePreset) resolve(_ lattice.Layer, keystone *lattice.Params) *lattice.Params {
	out := keystone.Clone()
	for _, name := range p.params {
		target := keystone.Float(name)
		if !p.seeded {
			p.acc[name] = target
		} else {
			p.acc[name] += (target - p.acc[name]) * p.rate
		}
		out.SetFloat(name, p.acc[name])
	}
	p.seeded = true
	return out
}
