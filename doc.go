// Package lattice is a multi-surface 4D-geometry rendering core for Go.
//
// # Overview
//
// lattice renders many parameterized visual surfaces concurrently while
// respecting a hard platform limit on simultaneously live GPU contexts.
// It is built on the GoGPU ecosystem (gogpu/wgpu, gogpu/naga) with an
// OpenGL fallback path, and is organized around five subsystems:
//
//   - alloc: an allocation-tracking registry for native GPU handles
//     (buffers, textures, pipelines) with leak detection.
//   - backend: one uniform rendering contract over two incompatible
//     graphics backends — an explicit-pipeline backend (WGSL via
//     gogpu/wgpu) and a legacy immediate-mode backend (GLSL via go-gl).
//   - pool: a bounded pool of named rendering bridges with strict
//     insertion-order eviction and forced surface reclamation.
//   - graph: a declarative relationship graph deriving per-layer render
//     parameters from one authoritative ("keystone") parameter set via
//     composable, stateful transform presets.
//   - render: the per-surface Bridge and the MultiCanvas orchestrator
//     that drives one render call per layer per frame.
//
// # Quick Start
//
//	mc, err := render.NewMultiCanvas(render.MultiCanvasConfig{
//	    Surfaces: map[lattice.Layer]string{
//	        lattice.LayerBackground: "bg",
//	        lattice.LayerContent:    "main",
//	    },
//	    Profile: "unison",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mc.Close()
//
//	mc.SetShaderAll("lattice")
//	for ts := range frameTimes {
//	    mc.Tick(ts)
//	}
//
// # Concurrency Model
//
// The core is frame-driven and cooperative: one external driver invokes
// Tick at a steady cadence, and no subsystem spawns long-lived
// goroutines of its own. All exported types are nonetheless safe for
// concurrent use; every mutation is serialized behind a mutex so that a
// multi-threaded host does not need extra synchronization.
//
// # Logging
//
// By default lattice produces no log output. Call SetLogger to enable
// structured logging via log/slog.
package lattice
