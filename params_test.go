package lattice

import "testing"

func TestParamsOrderedIteration(t *testing.T) {
	p := NewParams().
		SetFloat(ParamHue, 200).
		SetFloat(ParamTime, 1).
		SetFloat(ParamChaos, 0.2)

	want := []string{ParamHue, ParamTime, ParamChaos}
	got := p.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Overwriting keeps the original position.
	p.SetFloat(ParamHue, 300)
	if p.Names()[0] != ParamHue {
		t.Error("Set of existing name moved its position")
	}
	if p.Float(ParamHue) != 300 {
		t.Errorf("hue = %v, want 300", p.Float(ParamHue))
	}

	var visited []string
	p.Each(func(name string, _ Value) { visited = append(visited, name) })
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("Each order = %v, want %v", visited, want)
		}
	}
}

func TestParamsCloneIndependent(t *testing.T) {
	p := NewParams().SetFloat(ParamTime, 1)
	c := p.Clone()
	c.SetFloat(ParamTime, 2).SetFloat(ParamHue, 3)

	if p.Float(ParamTime) != 1 {
		t.Error("mutating clone changed original value")
	}
	if p.Len() != 1 {
		t.Error("mutating clone changed original length")
	}

	var nilP *Params
	if nilP.Clone() == nil || nilP.Clone().Len() != 0 {
		t.Error("Clone of nil is not an empty set")
	}
}

func TestParamsMerge(t *testing.T) {
	base := NewParams().SetFloat(ParamHue, 10).SetFloat(ParamTime, 1)
	over := NewParams().SetFloat(ParamHue, 99).SetFloat(ParamChaos, 0.5)

	base.Merge(over)
	if base.Float(ParamHue) != 99 {
		t.Errorf("merged hue = %v, want 99", base.Float(ParamHue))
	}
	if base.Float(ParamTime) != 1 {
		t.Error("merge dropped unrelated param")
	}
	if base.Float(ParamChaos) != 0.5 {
		t.Error("merge missed new param")
	}
	// Overwritten name keeps its original position.
	if base.Names()[0] != ParamHue {
		t.Error("merge moved existing name")
	}

	base.Merge(nil) // no-op
	if base.Len() != 3 {
		t.Error("Merge(nil) changed the set")
	}
}

func TestParamsEqual(t *testing.T) {
	a := NewParams().SetFloat(ParamHue, 1).SetFloat(ParamTime, 2)
	b := NewParams().SetFloat(ParamHue, 1).SetFloat(ParamTime, 2)
	if !a.Equal(b) {
		t.Error("identical sets not equal")
	}

	// Same contents, different order.
	c := NewParams().SetFloat(ParamTime, 2).SetFloat(ParamHue, 1)
	if a.Equal(c) {
		t.Error("order-differing sets reported equal")
	}

	b.SetFloat(ParamTime, 3)
	if a.Equal(b) {
		t.Error("value-differing sets reported equal")
	}

	var nilP *Params
	if !nilP.Equal(NewParams()) {
		t.Error("nil and empty not equal")
	}
	if nilP.Equal(a) {
		t.Error("nil equal to populated set")
	}
}

func TestValueArity(t *testing.T) {
	tests := []struct {
		name  string
		v     Value
		arity int
		comps []float32
	}{
		{"zero", Value{}, 1, []float32{0}},
		{"float", Float(1.5), 1, []float32{1.5}},
		{"vec2", Vec2(1, 2), 2, []float32{1, 2}},
		{"vec3", Vec3(1, 2, 3), 3, []float32{1, 2, 3}},
		{"vec4", Vec4(1, 2, 3, 4), 4, []float32{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Arity(); got != tt.arity {
				t.Errorf("Arity() = %d, want %d", got, tt.arity)
			}
			comps := tt.v.Components()
			if len(comps) != len(tt.comps) {
				t.Fatalf("Components() = %v, want %v", comps, tt.comps)
			}
			for i := range comps {
				if comps[i] != tt.comps[i] {
					t.Errorf("Components()[%d] = %v, want %v", i, comps[i], tt.comps[i])
				}
			}
			if tt.v.Scalar() != tt.comps[0] {
				t.Errorf("Scalar() = %v, want %v", tt.v.Scalar(), tt.comps[0])
			}
		})
	}
}

func TestLayerStringParseRoundTrip(t *testing.T) {
	for _, l := range Layers() {
		got, err := ParseLayer(l.String())
		if err != nil {
			t.Errorf("ParseLayer(%q) failed: %v", l.String(), err)
		}
		if got != l {
			t.Errorf("round trip %v -> %q -> %v", l, l.String(), got)
		}
		if !l.Valid() {
			t.Errorf("%v not valid", l)
		}
	}

	if _, err := ParseLayer("nebula"); err == nil {
		t.Error("ParseLayer accepted unknown name")
	}
	if Layer(200).Valid() {
		t.Error("out-of-range layer valid")
	}

	// Back-to-front ordering is fixed.
	layers := Layers()
	if layers[0] != LayerBackground || layers[len(layers)-1] != LayerAccent {
		t.Errorf("Layers() = %v", layers)
	}
}
