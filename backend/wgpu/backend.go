// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package wgpu implements the modern explicit rendering backend on the
// wgpu HAL. Shaders are WGSL, validated through naga before module
// creation; draws are encoded into command buffers and submitted
// fire-and-forget. The queue signals the frame fence at each
// submission index, waited on only when draining (resize, close).
package wgpu

import (
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	lattice "github.com/gogpu/lattice"
	"github.com/gogpu/lattice/alloc"
	"github.com/gogpu/lattice/backend"
	"github.com/gogpu/lattice/shader"
	"github.com/gogpu/lattice/surface"
)

// closeFenceTimeout bounds the wait for in-flight work during Close.
const closeFenceTimeout = 5 * time.Second

// targetFormat is the render target format for all pipelines.
const targetFormat = gputypes.TextureFormatBGRA8Unorm

// Allocation kinds recorded in the registry.
const (
	kindShaderModule = "shader-module"
	kindPipeline     = "render-pipeline"
	kindBuffer       = "buffer"
	kindTexture      = "texture"
	kindBindGroup    = "bind-group"
)

// program is one compiled shader with its pipeline and bindings.
type program struct {
	wgsl       string
	module     hal.ShaderModule
	pipeline   hal.RenderPipeline
	uniformBuf hal.Buffer
	bindGroup  hal.BindGroup
}

// Backend renders through the wgpu HAL.
type Backend struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	external bool

	surf surface.Surface
	reg  *alloc.Registry

	width  uint32
	height uint32

	target     hal.Texture
	targetView hal.TextureView

	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout

	programs  map[string]*program
	disposers map[any]func() error
	staged    *lattice.Params

	frameFence     hal.Fence
	lastSubmission uint64

	initialized bool
	lost        bool
	lostFn      func()
}

var _ backend.Backend = (*Backend)(nil)

// New returns an unbound wgpu backend.
func New() *Backend {
	return &Backend{programs: make(map[string]*program)}
}

func (b *Backend) Kind() backend.Kind { return backend.KindWGPU }

// SetDeviceProvider switches the backend to a shared GPU device from an
// external provider before Init. The provider must expose HalDevice()
// any and HalQueue() any returning hal.Device and hal.Queue.
func (b *Backend) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("wgpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("wgpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("wgpu: provider HalQueue is not hal.Queue")
	}
	b.device = device
	b.queue = queue
	b.external = true
	return nil
}

// Init binds the backend to a surface, opening a device unless one was
// injected via SetDeviceProvider.
func (b *Backend) Init(s surface.Surface, reg *alloc.Registry) error {
	if b.initialized {
		return nil
	}
	if s == nil {
		return fmt.Errorf("wgpu: init: nil surface")
	}
	b.surf = s
	b.reg = reg

	if !b.external {
		if err := b.openDevice(); err != nil {
			return err
		}
	}

	w, h := s.Size()
	b.width, b.height = uint32(w), uint32(h)

	if err := b.createSharedResources(); err != nil {
		b.teardown()
		return err
	}
	b.initialized = true
	lattice.Logger().Debug("wgpu backend initialized",
		"surface", s.ID(), "width", w, "height", h, "external_device", b.external)
	return nil
}

func (b *Backend) openDevice() error {
	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("wgpu: vulkan backend not available")
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("wgpu: create instance: %w", err)
	}
	b.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("wgpu: no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("wgpu: open device: %w", err)
	}
	b.device = openDev.Device
	b.queue = openDev.Queue
	lattice.Logger().Info("wgpu device opened", "adapter", selected.Info.Name)
	return nil
}

func (b *Backend) createSharedResources() error {
	bindLayout, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "lattice_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group layout: %w", err)
	}
	b.bindLayout = bindLayout

	pipeLayout, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "lattice_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		return fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}
	b.pipeLayout = pipeLayout

	fence, err := b.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create frame fence: %w", err)
	}
	b.frameFence = fence

	return b.createTarget()
}

func (b *Backend) createTarget() error {
	w, h := b.width, b.height
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "lattice_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        targetFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create target texture: %w", err)
	}
	b.target = tex

	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: "lattice_target_view",
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		b.target = nil
		return fmt.Errorf("wgpu: create target view: %w", err)
	}
	b.targetView = view

	b.record(kindTexture, tex, uint64(w)*uint64(h)*4, "target:"+b.surf.ID(), func() error {
		b.device.DestroyTexture(tex)
		return nil
	})
	return nil
}

func (b *Backend) destroyTarget() {
	if b.targetView != nil {
		b.targetView = nil
	}
	if b.target != nil {
		b.dispose(kindTexture, b.target)
		b.target = nil
	}
}

// Compile validates src.WGSL with naga, builds the render pipeline and
// uniform bindings, and retains the program under src.Name. A previous
// program of the same name is released first.
func (b *Backend) Compile(src shader.Sources) error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if b.lost {
		return backend.ErrContextLost
	}
	if !src.HasModern() {
		return fmt.Errorf("wgpu: compile %q: %w", src.Name, backend.ErrDialectMissing)
	}

	if _, err := naga.Compile(src.WGSL); err != nil {
		return fmt.Errorf("wgpu: validate %q: %w", src.Name, err)
	}

	p, err := b.buildProgram(src.Name, src.WGSL)
	if err != nil {
		return err
	}

	if old, ok := b.programs[src.Name]; ok {
		b.releaseProgram(old)
	}
	b.programs[src.Name] = p
	lattice.Logger().Debug("wgpu shader compiled", "shader", src.Name)
	return nil
}

func (b *Backend) buildProgram(name, wgsl string) (*program, error) {
	module, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  name,
		Source: hal.ShaderSource{WGSL: wgsl},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create shader module %q: %w", name, err)
	}

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := b.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  name + "_pipeline",
		Layout: b.pipeLayout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    targetFormat,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		b.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("wgpu: create pipeline %q: %w", name, err)
	}

	uniformBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: name + "_uniforms",
		Size:  uniformBlockSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		b.device.DestroyRenderPipeline(pipeline)
		b.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("wgpu: create uniform buffer %q: %w", name, err)
	}

	bindGroup, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  name + "_bind",
		Layout: b.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{
				Binding:  0,
				Resource: gputypes.BufferBinding{Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: uniformBlockSize},
			},
		},
	})
	if err != nil {
		b.device.DestroyBuffer(uniformBuf)
		b.device.DestroyRenderPipeline(pipeline)
		b.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("wgpu: create bind group %q: %w", name, err)
	}

	p := &program{
		wgsl:       wgsl,
		module:     module,
		pipeline:   pipeline,
		uniformBuf: uniformBuf,
		bindGroup:  bindGroup,
	}

	b.record(kindShaderModule, module, 0, name, func() error {
		b.device.DestroyShaderModule(module)
		return nil
	})
	b.record(kindPipeline, pipeline, 0, name, func() error {
		b.device.DestroyRenderPipeline(pipeline)
		return nil
	})
	b.record(kindBuffer, uniformBuf, uniformBlockSize, name+"_uniforms", func() error {
		b.device.DestroyBuffer(uniformBuf)
		return nil
	})
	b.record(kindBindGroup, bindGroup, 0, name, func() error {
		b.device.DestroyBindGroup(bindGroup)
		return nil
	})
	return p, nil
}

func (b *Backend) releaseProgram(p *program) {
	b.dispose(kindBindGroup, p.bindGroup)
	b.dispose(kindBuffer, p.uniformBuf)
	b.dispose(kindPipeline, p.pipeline)
	b.dispose(kindShaderModule, p.module)
}

// SetUniforms stages p for subsequent draws. The params are cloned, so
// later mutation by the caller does not affect staged values.
func (b *Backend) SetUniforms(p *lattice.Params) {
	b.staged = p.Clone()
}

// Draw renders the named shader as a full-surface pass. Submission is
// fire-and-forget: the queue hands back a submission index that the
// frame fence reaches when the work completes, and nothing on the
// frame path waits for it.
func (b *Backend) Draw(name string, opts backend.DrawOptions) error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if b.lost {
		return backend.ErrContextLost
	}
	p, ok := b.programs[name]
	if !ok {
		return fmt.Errorf("wgpu: draw %q: %w", name, backend.ErrShaderNotCompiled)
	}

	block := packUniforms(b.staged, int(b.width), int(b.height))
	b.queue.WriteBuffer(p.uniformBuf, 0, block[:])

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "lattice_frame",
	})
	if err != nil {
		return b.markLost(fmt.Errorf("wgpu: create command encoder: %w", err))
	}
	if err := encoder.BeginEncoding("lattice_frame"); err != nil {
		return b.markLost(fmt.Errorf("wgpu: begin encoding: %w", err))
	}

	loadOp := gputypes.LoadOpLoad
	clear := gputypes.Color{}
	if opts.Clear {
		loadOp = gputypes.LoadOpClear
		c := opts.ClearColor
		clear = gputypes.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: name + "_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       b.targetView,
			LoadOp:     loadOp,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clear,
		}},
	})
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return b.markLost(fmt.Errorf("wgpu: end encoding: %w", err))
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	idx, err := b.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return b.markLost(fmt.Errorf("wgpu: submit: %w", err))
	}
	b.lastSubmission = idx
	return nil
}

// Resize recreates the render target at the new size. In-flight frames
// against the old target are drained first.
func (b *Backend) Resize(width, height int) {
	if !b.initialized || b.lost {
		return
	}
	if width <= 0 || height <= 0 {
		return
	}
	w, h := uint32(width), uint32(height)
	if w == b.width && h == b.height {
		return
	}
	b.waitIdle()
	b.destroyTarget()
	b.width, b.height = w, h
	if err := b.createTarget(); err != nil {
		lattice.Logger().Warn("wgpu resize failed", "error", err)
		b.markLost(err) //nolint:errcheck
	}
}

func (b *Backend) Lost() bool { return b.lost }

func (b *Backend) SetLostCallback(fn func()) { b.lostFn = fn }

// markLost flips the backend into the lost state and fires the lost
// callback once. It returns err for convenient call-site chaining.
func (b *Backend) markLost(err error) error {
	if !b.lost {
		b.lost = true
		lattice.Logger().Warn("wgpu context lost", "error", err)
		if b.lostFn != nil {
			fn := b.lostFn
			b.lostFn = nil
			fn()
		}
	}
	return err
}

// Restore tears down the device state and rebuilds it against s, the
// reclaimed replacement surface, recompiling all retained shaders.
func (b *Backend) Restore(s surface.Surface) error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if s != nil {
		b.surf = s
	}

	retained := make(map[string]string, len(b.programs))
	for name, p := range b.programs {
		retained[name] = p.wgsl
	}

	b.teardown()
	b.lost = false
	b.initialized = false
	b.programs = make(map[string]*program)
	b.lastSubmission = 0

	if err := b.Init(b.surf, b.reg); err != nil {
		b.lost = true
		return fmt.Errorf("wgpu: restore: %w", err)
	}
	for name, wgsl := range retained {
		if err := b.Compile(shader.Sources{Name: name, WGSL: wgsl}); err != nil {
			return fmt.Errorf("wgpu: restore shader %q: %w", name, err)
		}
	}
	lattice.Logger().Info("wgpu context restored", "shaders", len(retained))
	return nil
}

// Close drains in-flight work and releases everything. Idempotent.
func (b *Backend) Close() {
	if !b.initialized {
		return
	}
	b.waitIdle()
	b.teardown()
	b.programs = make(map[string]*program)
	b.staged = nil
	b.initialized = false
	b.lastSubmission = 0
	b.lost = false
	b.lostFn = nil
}

// waitIdle blocks until the fence reaches the last submission index.
func (b *Backend) waitIdle() {
	if b.frameFence == nil || b.lastSubmission == 0 || b.lost {
		return
	}
	ok, err := b.device.Wait(b.frameFence, b.lastSubmission, closeFenceTimeout)
	if err != nil || !ok {
		lattice.Logger().Warn("wgpu fence wait incomplete", "submission", b.lastSubmission, "ok", ok, "error", err)
	}
}

func (b *Backend) teardown() {
	if b.device == nil {
		return
	}
	for _, p := range b.programs {
		b.releaseProgram(p)
	}
	b.destroyTarget()
	if b.pipeLayout != nil {
		b.device.DestroyPipelineLayout(b.pipeLayout)
		b.pipeLayout = nil
	}
	if b.bindLayout != nil {
		b.device.DestroyBindGroupLayout(b.bindLayout)
		b.bindLayout = nil
	}
	if b.frameFence != nil {
		b.device.DestroyFence(b.frameFence)
		b.frameFence = nil
	}
	if !b.external {
		b.device.Destroy()
		if b.instance != nil {
			b.instance.Destroy()
			b.instance = nil
		}
	}
	b.device = nil
	b.queue = nil
}

// record tracks a GPU resource in the allocation registry. disposers
// map remembers how to destroy the handle when tracking is off.
func (b *Backend) record(kind string, handle any, bytes uint64, label string, disposer func() error) {
	if b.reg != nil {
		b.reg.Register(kind, handle, disposer, bytes, label)
		return
	}
	if b.disposers == nil {
		b.disposers = make(map[any]func() error)
	}
	b.disposers[handle] = disposer
}

// dispose destroys a tracked resource through the registry, or directly
// when tracking is off.
func (b *Backend) dispose(kind string, handle any) {
	if handle == nil {
		return
	}
	if b.reg != nil {
		b.reg.Dispose(kind, handle)
		return
	}
	if fn, ok := b.disposers[handle]; ok {
		delete(b.disposers, handle)
		if err := fn(); err != nil {
			lattice.Logger().Warn("wgpu dispose failed", "kind", kind, "error", err)
		}
	}
}

func init() {
	backend.Register("wgpu", backend.KindWGPU, 100, func() backend.Backend { return New() }, func() bool {
		_, ok := hal.GetBackend(gputypes.BackendVulkan)
		return ok
	})
}
