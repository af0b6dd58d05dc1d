// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"fmt"
	"sync"

	lattice "github.com/gogpu/lattice"
	"github.com/gogpu/lattice/backend"
	"github.com/gogpu/lattice/pool"
	"github.com/gogpu/lattice/shader"
)

// PooledBridge adapts a Bridge to the pool's renderer contract: it
// pins one shader name and draws it with the staged parameter set on
// every Render call.
type PooledBridge struct {
	mu     sync.Mutex
	br     *Bridge
	name   string
	params *lattice.Params
}

var _ pool.Renderer = (*PooledBridge)(nil)

// NewPooledBridge wraps br to draw the named shader. The shader must
// already be compiled on the bridge (or compile later via the bridge
// directly).
func NewPooledBridge(br *Bridge, shaderName string) *PooledBridge {
	return &PooledBridge{br: br, name: shaderName, params: lattice.NewParams()}
}

// Active reports whether the underlying bridge can accept draws.
func (pb *PooledBridge) Active() bool { return pb.br.Active() }

// Dispose releases the underlying bridge.
func (pb *PooledBridge) Dispose() { pb.br.Close() }

// SetParam stages one parameter for the next frame.
func (pb *PooledBridge) SetParam(name string, v lattice.Value) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.params.Set(name, v)
}

// SetParams merges p over the staged parameters.
func (pb *PooledBridge) SetParams(p *lattice.Params) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.params.Merge(p)
}

// Render draws one cleared frame of the pinned shader.
func (pb *PooledBridge) Render() error {
	pb.mu.Lock()
	ps := pb.params.Clone()
	name := pb.name
	pb.mu.Unlock()

	pb.br.SetUniforms(ps)
	return pb.br.Render(name, backend.DrawOptions{Clear: true})
}

// Bridge returns the wrapped bridge for operations beyond the pooled
// contract (resize, reinitialize, stats).
func (pb *PooledBridge) Bridge() *Bridge { return pb.br }

// PoolFactory builds a pool factory that constructs one bridge per
// surface, compiles the named catalog shader on it, and wraps it as a
// pooled renderer. A nil catalog means the default catalog.
func PoolFactory(cfg BridgeConfig, catalog *shader.Catalog, shaderName string) pool.Factory {
	if catalog == nil {
		catalog = shader.Default()
	}
	return func(surfaceID string, params *lattice.Params) (pool.Renderer, error) {
		src, ok := catalog.Lookup(shaderName)
		if !ok {
			return nil, fmt.Errorf("render: pool factory: unknown shader %q", shaderName)
		}
		br, err := NewBridge(surfaceID, cfg)
		if err != nil {
			return nil, err
		}
		if !br.CompileShader(src) {
			br.Close()
			return nil, fmt.Errorf("render: pool factory: shader %q rejected on %q", shaderName, surfaceID)
		}
		pb := NewPooledBridge(br, shaderName)
		if params != nil {
			pb.SetParams(params)
		}
		return pb, nil
	}
}
