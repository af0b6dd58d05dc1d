// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"testing"
	"time"

	lattice "github.com/gogpu/lattice"
	"github.com/gogpu/lattice/backend"
	"github.com/gogpu/lattice/pool"
	"github.com/gogpu/lattice/shader"
	"github.com/gogpu/lattice/surface"
)

func TestPooledBridgeRendersPinnedShader(t *testing.T) {
	fb := registerFake(t, "t-pb-render", backend.KindWGPU)
	br, err := NewBridge("pb-render", bridgeConfig("t-pb-render"))
	if err != nil {
		t.Fatalf("NewBridge failed: %v", err)
	}
	br.CompileShader(shader.Sources{Name: "s", WGSL: "w"})

	pb := NewPooledBridge(br, "s")
	if !pb.Active() {
		t.Fatal("pooled bridge not active")
	}

	pb.SetParams(lattice.NewParams().
		SetFloat(lattice.ParamHue, 200).
		SetFloat(lattice.ParamChaos, 0.1))
	pb.SetParam(lattice.ParamHue, lattice.Float(220)) // override wins

	if err := pb.Render(); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if fb.draws != 1 {
		t.Errorf("draws = %d, want 1", fb.draws)
	}
	if got := fb.staged.Float(lattice.ParamHue); got != 220 {
		t.Errorf("staged hue = %v, want 220", got)
	}
	if got := fb.staged.Float(lattice.ParamChaos); got != float32(0.1) {
		t.Errorf("staged chaos = %v", got)
	}

	pb.Dispose()
	if pb.Active() {
		t.Error("pooled bridge active after dispose")
	}
	if !fb.closed {
		t.Error("backend not closed through pooled dispose")
	}
}

func TestPoolFactoryConstructsRenderer(t *testing.T) {
	fb := registerFake(t, "t-pf-ok", backend.KindWGPU)

	catalog := shader.NewCatalog()
	if err := catalog.Register(shader.Sources{Name: "s", WGSL: "w"}); err != nil {
		t.Fatal(err)
	}

	p := pool.New(PoolFactory(bridgeConfig("t-pf-ok"), catalog, "s"),
		pool.Config{Max: 2, Surfaces: surface.DefaultRegistry()})
	defer p.ReleaseAll()

	slot := p.Acquire("k", "pf-surf", lattice.NewParams().SetFloat(lattice.ParamSpeed, 2))
	select {
	case <-slot.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("slot never settled")
	}
	if slot.Err() != nil {
		t.Fatalf("construction failed: %v", slot.Err())
	}

	r := slot.Renderer()
	if r == nil || !r.Active() {
		t.Fatal("renderer missing or inactive")
	}
	if err := r.Render(); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if fb.draws != 1 {
		t.Errorf("draws = %d, want 1", fb.draws)
	}
	if got := fb.staged.Float(lattice.ParamSpeed); got != 2 {
		t.Errorf("initial params not staged, speed = %v", got)
	}
}

func TestPoolFactoryUnknownShaderFails(t *testing.T) {
	registerFake(t, "t-pf-unk", backend.KindWGPU)

	p := pool.New(PoolFactory(bridgeConfig("t-pf-unk"), shader.NewCatalog(), "ghost"),
		pool.Config{Max: 1, Surfaces: surface.DefaultRegistry()})

	slot := p.Acquire("k", "pf-unk-surf", nil)
	select {
	case <-slot.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("slot never settled")
	}
	if slot.Err() == nil {
		t.Fatal("unknown shader did not fail construction")
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d, want 0", p.Len())
	}
}
