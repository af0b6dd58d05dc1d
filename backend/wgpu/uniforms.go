// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"encoding/binary"
	"math"

	lattice "github.com/gogpu/lattice"
)

// uniformBlockSize is the byte size of the uniform buffer backing each
// pipeline. Padded to the common minimum dynamic offset alignment.
const uniformBlockSize = 256

// uniformOffsets maps canonical parameter names to their byte offsets
// inside the uniform block. The layout matches the Uniforms struct
// declared by every WGSL shader in the catalog: a vec2 resolution
// followed by packed f32 fields in declaration order.
var uniformOffsets = map[string]int{
	lattice.ParamResolution:  0, // vec2<f32>
	lattice.ParamTime:        8,
	lattice.ParamRot4DXW:     12,
	lattice.ParamRot4DYW:     16,
	lattice.ParamRot4DZW:     20,
	lattice.ParamGridDensity: 24,
	lattice.ParamMorphFactor: 28,
	lattice.ParamChaos:       32,
	lattice.ParamSpeed:       36,
	lattice.ParamHue:         40,
	lattice.ParamIntensity:   44,
	lattice.ParamSaturation:  48,
	lattice.ParamDimension:   52,
	lattice.ParamGeometry:    56,
}

func putFloat(dst []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(v))
}

// packUniforms serializes p into a uniform block. The surface size
// always wins over any staged resolution value, so shaders see the
// real target dimensions. Unknown parameter names are ignored.
func packUniforms(p *lattice.Params, width, height int) [uniformBlockSize]byte {
	var block [uniformBlockSize]byte

	if p != nil {
		p.Each(func(name string, v lattice.Value) {
			off, ok := uniformOffsets[name]
			if !ok {
				return
			}
			c := v.Components()
			if name == lattice.ParamResolution {
				if len(c) >= 2 {
					putFloat(block[:], off, c[0])
					putFloat(block[:], off+4, c[1])
				}
				return
			}
			if len(c) > 0 {
				putFloat(block[:], off, c[0])
			}
		})
	}

	putFloat(block[:], uniformOffsets[lattice.ParamResolution], float32(width))
	putFloat(block[:], uniformOffsets[lattice.ParamResolution]+4, float32(height))
	return block
}
