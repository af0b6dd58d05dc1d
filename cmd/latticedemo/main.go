// Command latticedemo drives a layered visual for a fixed number of
// frames and reports allocation and frame statistics. With the default
// noop backend it runs anywhere; pass -backend wgpu on a machine with
// Vulkan to exercise the explicit path.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	lattice "github.com/gogpu/lattice"
	"github.com/gogpu/lattice/alloc"
	"github.com/gogpu/lattice/graph"
	"github.com/gogpu/lattice/render"

	// Register backends.
	_ "github.com/gogpu/lattice/backend/noop"
	_ "github.com/gogpu/lattice/backend/wgpu"
)

func main() {
	var (
		width       = flag.Int("width", 800, "surface width")
		height      = flag.Int("height", 600, "surface height")
		frames      = flag.Int("frames", 120, "frames to render")
		backendName = flag.String("backend", "noop", "backend to use (noop, wgpu)")
		shaderName  = flag.String("shader", "lattice", "catalog shader (lattice, hypercube, wave)")
		profileName = flag.String("profile", graph.ProfileCascade, "relationship profile")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		lattice.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	reg := alloc.NewRegistry(alloc.Config{TrackHistory: true})

	mc, err := render.NewMultiCanvas(render.MultiCanvasConfig{
		Surfaces: map[lattice.Layer]string{
			lattice.LayerBackground: "demo-background",
			lattice.LayerShadow:     "demo-shadow",
			lattice.LayerContent:    "demo-content",
			lattice.LayerHighlight:  "demo-highlight",
			lattice.LayerAccent:     "demo-accent",
		},
		Profile: *profileName,
		Shader:  *shaderName,
		Bridge: render.BridgeConfig{
			Preferred:     *backendName,
			AllowFallback: true,
			Registry:      reg,
			Width:         *width,
			Height:        *height,
		},
	})
	if err != nil {
		log.Fatalf("multicanvas: %v", err)
	}
	defer mc.Close()

	mc.SetSharedParams(lattice.NewParams().
		SetFloat(lattice.ParamRot4DXW, 0.3).
		SetFloat(lattice.ParamRot4DYW, -0.2).
		SetFloat(lattice.ParamRot4DZW, 0.5).
		SetFloat(lattice.ParamGridDensity, 15).
		SetFloat(lattice.ParamMorphFactor, 0.6).
		SetFloat(lattice.ParamChaos, 0.15).
		SetFloat(lattice.ParamSpeed, 1).
		SetFloat(lattice.ParamHue, 200).
		SetFloat(lattice.ParamIntensity, 0.8).
		SetFloat(lattice.ParamSaturation, 0.9).
		SetFloat(lattice.ParamDimension, 3.6).
		SetFloat(lattice.ParamGeometry, 1))

	for i := 0; i < *frames; i++ {
		ts := float64(i) * 1000.0 / 60.0
		if err := mc.Tick(ts); err != nil {
			log.Fatalf("frame %d: %v", i, err)
		}
	}

	fmt.Printf("rendered %d frames on %d layers (%s backend, %q shader, %q profile)\n",
		*frames, len(mc.Layers()), mc.BackendKind(), *shaderName, *profileName)
	for _, l := range mc.Layers() {
		if br, ok := mc.Bridge(l); ok {
			s := br.Stats()
			fmt.Printf("  %-10s rendered=%d skipped=%d\n", l, s.FramesRendered, s.FramesSkipped)
		}
	}
	fmt.Println(reg.Stats().String())

	if leaks := reg.DetectLeaks(0); len(leaks) > 0 && *verbose {
		fmt.Printf("%d live resources (expected while canvases are open):\n", len(leaks))
		for _, rec := range leaks {
			fmt.Printf("  %s %s age=%s\n", rec.Kind, rec.Label, rec.Age().Round(1e6))
		}
	}
}
