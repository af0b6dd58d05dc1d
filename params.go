package lattice

import (
	"golang.org/x/image/math/f32"
)

// Canonical parameter names understood by the built-in shader catalog.
// The explicit backend packs these positionally into its uniform block;
// the legacy backend resolves them by name against active uniforms.
// A Params set may carry additional names — backends ignore what they
// cannot bind.
const (
	ParamResolution  = "resolution"
	ParamTime        = "time"
	ParamRot4DXW     = "rot4dXW"
	ParamRot4DYW     = "rot4dYW"
	ParamRot4DZW     = "rot4dZW"
	ParamGridDensity = "gridDensity"
	ParamMorphFactor = "morphFactor"
	ParamChaos       = "chaos"
	ParamSpeed       = "speed"
	ParamHue         = "hue"
	ParamIntensity   = "intensity"
	ParamSaturation  = "saturation"
	ParamDimension   = "dimension"
	ParamGeometry    = "geometry"
)

// Value is a single uniform value: a scalar or a short fixed-length
// vector. The zero Value is a scalar 0.
type Value struct {
	arity uint8
	vec   f32.Vec4
}

// Float returns a scalar Value.
func Float(v float32) Value { return Value{arity: 1, vec: f32.Vec4{v}} }

// Vec2 returns a 2-component Value.
func Vec2(x, y float32) Value { return Value{arity: 2, vec: f32.Vec4{x, y}} }

// Vec3 returns a 3-component Value.
func Vec3(x, y, z float32) Value { return Value{arity: 3, vec: f32.Vec4{x, y, z}} }

// Vec4 returns a 4-component Value.
func Vec4(x, y, z, w float32) Value { return Value{arity: 4, vec: f32.Vec4{x, y, z, w}} }

// Arity returns the component count (1 for scalars, 2-4 for vectors).
// The zero Value reports arity 1.
func (v Value) Arity() int {
	if v.arity == 0 {
		return 1
	}
	return int(v.arity)
}

// Scalar returns the first component.
func (v Value) Scalar() float32 { return v.vec[0] }

// Components returns the active components as a slice.
// The returned slice is a copy.
func (v Value) Components() []float32 {
	n := v.Arity()
	out := make([]float32, n)
	copy(out, v.vec[:n])
	return out
}

// Vec returns the underlying packed vector. Components beyond Arity
// are zero.
func (v Value) Vec() f32.Vec4 { return v.vec }

// Params is an ordered mapping of parameter name to Value. Iteration
// order is insertion order, which the explicit backend relies on only
// for diagnostics — binding is by canonical name, never by position in
// the caller's set.
//
// Params is not safe for concurrent mutation; the frame driver owns it.
// Components that retain a Params always Clone first.
type Params struct {
	keys []string
	vals map[string]Value
}

// NewParams creates an empty parameter set.
func NewParams() *Params {
	return &Params{vals: make(map[string]Value)}
}

// Set stores a value under name, preserving the original insertion
// position when the name already exists.
func (p *Params) Set(name string, v Value) *Params {
	if p.vals == nil {
		p.vals = make(map[string]Value)
	}
	if _, ok := p.vals[name]; !ok {
		p.keys = append(p.keys, name)
	}
	p.vals[name] = v
	return p
}

// SetFloat stores a scalar value under name.
func (p *Params) SetFloat(name string, v float32) *Params {
	return p.Set(name, Float(v))
}

// Get returns the value stored under name.
func (p *Params) Get(name string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	v, ok := p.vals[name]
	return v, ok
}

// Float returns the scalar stored under name, or 0 if absent.
func (p *Params) Float(name string) float32 {
	if p == nil {
		return 0
	}
	return p.vals[name].Scalar()
}

// Len returns the number of parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Names returns the parameter names in insertion order.
// The returned slice is a copy.
func (p *Params) Names() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Each calls fn for every parameter in insertion order.
func (p *Params) Each(fn func(name string, v Value)) {
	if p == nil {
		return
	}
	for _, k := range p.keys {
		fn(k, p.vals[k])
	}
}

// Clone returns an independent deep copy. Clone of nil returns an empty
// set.
func (p *Params) Clone() *Params {
	out := NewParams()
	if p == nil {
		return out
	}
	out.keys = make([]string, len(p.keys))
	copy(out.keys, p.keys)
	for k, v := range p.vals {
		out.vals[k] = v
	}
	return out
}

// Merge overlays every parameter from other onto p, in other's
// insertion order. Existing names are overwritten in place.
func (p *Params) Merge(other *Params) *Params {
	if other == nil {
		return p
	}
	other.Each(func(name string, v Value) {
		p.Set(name, v)
	})
	return p
}

// Equal reports whether two sets hold the same names, order, and
// values.
func (p *Params) Equal(other *Params) bool {
	if p == nil || other == nil {
		return p.Len() == 0 && other.Len() == 0
	}
	if len(p.keys) != len(other.keys) {
		return false
	}
	for i, k := range p.keys {
		if other.keys[i] != k {
			return false
		}
		if p.vals[k] != other.vals[k] {
			return false
		}
	}
	return true
}
