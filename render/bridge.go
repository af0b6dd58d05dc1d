// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package render orchestrates backends over surfaces. A Bridge owns
// one surface and one backend and keeps rendering degradable: failed
// shaders and lost contexts downgrade draws to logged no-ops instead
// of errors, and Reinitialize brings a lost bridge back.
package render

import (
	"fmt"
	"sync"

	lattice "github.com/gogpu/lattice"
	"github.com/gogpu/lattice/alloc"
	"github.com/gogpu/lattice/backend"
	"github.com/gogpu/lattice/shader"
	"github.com/gogpu/lattice/surface"
)

// BridgeConfig configures bridge construction. The zero value selects
// the best available backend and surface provider.
type BridgeConfig struct {
	// Preferred names the backend to try first. Empty means highest
	// priority available.
	Preferred string

	// AllowFallback permits falling through to other backends when the
	// preferred one is missing or unavailable.
	AllowFallback bool

	// Device optionally shares the host application's GPU device with
	// backends that can consume it.
	Device DeviceHandle

	// Registry receives allocation records for the bridge's GPU
	// resources. Nil disables tracking.
	Registry *alloc.Registry

	// Surfaces is the surface registry to acquire from. Nil means the
	// process-wide default.
	Surfaces *surface.Registry

	// Provider names the surface provider. Empty means highest
	// priority available.
	Provider string

	// Width, Height and Scale size the surface.
	Width, Height int
	Scale         float64
}

// BridgeStats is a snapshot of a bridge's frame counters.
type BridgeStats struct {
	FramesRendered uint64
	FramesSkipped  uint64
	CompileFailed  int
	Reinits        uint64
}

// Bridge binds one surface to one backend and serializes access to
// both. All methods are safe for concurrent use.
type Bridge struct {
	mu sync.Mutex

	cfg  BridgeConfig
	surf surface.Surface
	b    backend.Backend

	// sources retains every compiled shader for replay on restore;
	// failed remembers sources the backend rejected so draws of those
	// names skip quietly.
	sources map[string]shader.Sources
	failed  map[string]error

	stats  BridgeStats
	closed bool
}

// NewBridge acquires a surface under surfaceID and initializes a
// backend against it.
func NewBridge(surfaceID string, cfg BridgeConfig) (*Bridge, error) {
	if cfg.Surfaces == nil {
		cfg.Surfaces = surface.DefaultRegistry()
	}

	surf, err := cfg.Surfaces.Acquire(cfg.Provider, surface.Options{
		ID:     surfaceID,
		Width:  cfg.Width,
		Height: cfg.Height,
		Scale:  cfg.Scale,
	})
	if err != nil {
		return nil, fmt.Errorf("render: bridge %q: %w", surfaceID, err)
	}

	b, err := initBackend(surf, cfg)
	if err != nil {
		surf.Release()
		cfg.Surfaces.Forget(surfaceID)
		return nil, fmt.Errorf("render: bridge %q: %w", surfaceID, err)
	}

	br := &Bridge{
		cfg:     cfg,
		surf:    surf,
		b:       b,
		sources: make(map[string]shader.Sources),
		failed:  make(map[string]error),
	}
	b.SetLostCallback(func() {
		lattice.Logger().Warn("bridge context lost", "surface", surfaceID)
	})
	lattice.Logger().Info("bridge initialized",
		"surface", surfaceID, "backend", b.Kind().String())
	return br, nil
}

// initBackend walks the candidate backends in selection order and
// returns the first that initializes against surf. An availability
// probe only proves the runtime is present; Init can still fail (no
// usable adapter, exhausted device), so each candidate that fails is
// closed and the next one is tried.
func initBackend(surf surface.Surface, cfg BridgeConfig) (backend.Backend, error) {
	names, err := backend.Candidates(cfg.Preferred, cfg.AllowFallback)
	if err != nil {
		return nil, err
	}

	var initErr error
	for _, name := range names {
		b := backend.Get(name)
		if b == nil {
			continue
		}

		if cfg.Device != nil {
			type deviceSink interface {
				SetDeviceProvider(provider any) error
			}
			if sink, ok := b.(deviceSink); ok {
				if err := sink.SetDeviceProvider(cfg.Device); err != nil {
					lattice.Logger().Debug("shared device rejected, backend self-provisions",
						"surface", surf.ID(), "backend", name, "error", err)
				}
			}
		}

		if err := b.Init(surf, cfg.Registry); err != nil {
			b.Close()
			initErr = fmt.Errorf("init %s backend: %w", name, err)
			lattice.Logger().Warn("backend init failed, trying next",
				"surface", surf.ID(), "backend", name, "error", err)
			continue
		}
		return b, nil
	}
	if initErr == nil {
		initErr = backend.ErrBackendNotAvailable
	}
	return nil, initErr
}

// CompileShader compiles src and retains it for restore replay. A
// rejected shader is remembered as failed and reported as false;
// rendering that name later skips without error.
func (br *Bridge) CompileShader(src shader.Sources) bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.closed {
		return false
	}

	br.sources[src.Name] = src
	if err := br.b.Compile(src); err != nil {
		br.failed[src.Name] = err
		lattice.Logger().Warn("shader compile failed",
			"surface", br.surf.ID(), "shader", src.Name, "error", err)
		return false
	}
	delete(br.failed, src.Name)
	return true
}

// SetUniforms stages parameters on the backend.
func (br *Bridge) SetUniforms(p *lattice.Params) {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.closed {
		return
	}
	br.b.SetUniforms(p)
}

// Render draws the named shader. Lost contexts and failed shaders
// downgrade to a logged skip; only structural misuse (unknown name
// that never went through CompileShader) returns an error.
func (br *Bridge) Render(name string, opts backend.DrawOptions) error {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.closed {
		return fmt.Errorf("render: bridge closed")
	}

	if _, failedBefore := br.failed[name]; failedBefore {
		br.stats.FramesSkipped++
		return nil
	}
	if br.b.Lost() || !br.surf.Valid() {
		br.stats.FramesSkipped++
		lattice.Logger().Debug("render skipped on lost context",
			"surface", br.surf.ID(), "shader", name)
		return nil
	}

	if err := br.b.Draw(name, opts); err != nil {
		if br.b.Lost() {
			br.stats.FramesSkipped++
			return nil
		}
		return fmt.Errorf("render: %q on %q: %w", name, br.surf.ID(), err)
	}
	br.stats.FramesRendered++
	return nil
}

// Resize propagates a new size and scale factor to the surface and
// backend. A scale of 0 keeps the surface's current scale.
func (br *Bridge) Resize(width, height int, scale float64) {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.closed {
		return
	}
	br.surf.Resize(width, height, scale)
	br.b.Resize(width, height)
}

// Reinitialize reclaims the surface, restores the backend, and replays
// every retained shader. It is the recovery path after context loss.
func (br *Bridge) Reinitialize() error {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.closed {
		return fmt.Errorf("render: bridge closed")
	}

	fresh, err := br.cfg.Surfaces.Reclaim(br.surf.ID())
	if err != nil {
		return fmt.Errorf("render: reinitialize %q: %w", br.surf.ID(), err)
	}
	br.surf = fresh

	if err := br.b.Restore(fresh); err != nil {
		return fmt.Errorf("render: reinitialize %q: %w", br.surf.ID(), err)
	}

	// Restore replays what the backend retained itself; re-push every
	// retained source so previously failed shaders get another chance
	// on the fresh context.
	for name, src := range br.sources {
		if err := br.b.Compile(src); err != nil {
			br.failed[name] = err
			continue
		}
		delete(br.failed, name)
	}

	br.stats.Reinits++
	lattice.Logger().Info("bridge reinitialized", "surface", br.surf.ID())
	return nil
}

// Close releases the backend and surface. Idempotent.
func (br *Bridge) Close() {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.closed {
		return
	}
	br.closed = true
	br.b.Close()
	br.surf.Release()
	br.cfg.Surfaces.Forget(br.surf.ID())
}

// Active reports whether the bridge can accept draws.
func (br *Bridge) Active() bool {
	br.mu.Lock()
	defer br.mu.Unlock()
	return !br.closed && !br.b.Lost() && br.surf.Valid()
}

// Dispose releases the bridge; it satisfies the pool's renderer
// contract.
func (br *Bridge) Dispose() { br.Close() }

// Kind returns the bound backend's family.
func (br *Bridge) Kind() backend.Kind {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.b.Kind()
}

// SurfaceID returns the bound surface's identity.
func (br *Bridge) SurfaceID() string {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.surf.ID()
}

// Stats returns a snapshot of the bridge's counters.
func (br *Bridge) Stats() BridgeStats {
	br.mu.Lock()
	defer br.mu.Unlock()
	s := br.stats
	s.CompileFailed = len(br.failed)
	return s
}
