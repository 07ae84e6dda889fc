// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/multisurface/atlas"
)

const (
	// blitUniformSize is the size of the Blit uniform: origin and size,
	// each a vec2<u32>.
	blitUniformSize = 16

	// blitSlotStride separates the uniform slots of blits recorded in the
	// same frame. It matches minUniformBufferOffsetAlignment.
	blitSlotStride = 256

	// minBlitSlots is the initial uniform capacity of a pipeline.
	minBlitSlots = 4
)

// BlitCache owns the blit shader and bind group layout and keeps one
// BlitPipeline per surface format. Pipelines are created on first use and
// live until Destroy.
type BlitCache struct {
	device hal.Device
	queue  hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout

	pipelines map[gputypes.TextureFormat]*BlitPipeline
}

// NewBlitCache creates an empty cache. No GPU objects are created until the
// first GetOrCreate.
func NewBlitCache(device hal.Device, queue hal.Queue) *BlitCache {
	return &BlitCache{
		device:    device,
		queue:     queue,
		pipelines: make(map[gputypes.TextureFormat]*BlitPipeline),
	}
}

// GetOrCreate returns the pipeline for format, creating it on first request.
func (c *BlitCache) GetOrCreate(format gputypes.TextureFormat) (*BlitPipeline, error) {
	if p, ok := c.pipelines[format]; ok {
		return p, nil
	}
	if err := c.ensureShared(); err != nil {
		return nil, err
	}

	pipeline, err := c.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "multisurface_blit_" + format.String(),
		Layout: c.pipeLayout,
		Vertex: hal.VertexState{
			Module:     c.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     c.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    format,
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
		return nil, fmt.Errorf("compositor: create blit pipeline for %s: %w", format, err)
	}

	p := &BlitPipeline{cache: c, format: format, pipeline: pipeline}
	c.pipelines[format] = p
	slogger().Debug("compositor: blit pipeline created", "format", format, "pipelines", len(c.pipelines))
	return p, nil
}

// ensureShared creates the shader module and layouts shared by all formats.
func (c *BlitCache) ensureShared() error {
	if c.pipeLayout != nil {
		return nil
	}

	shader, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "multisurface_blit_shader",
		Source: hal.ShaderSource{WGSL: blitShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compositor: compile blit shader: %w", err)
	}

	// Binding 0: Blit uniform (fragment)
	// Binding 1: atlas texture (fragment, loaded without a sampler)
	bindLayout, err := c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "multisurface_blit_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		c.device.DestroyShaderModule(shader)
		return fmt.Errorf("compositor: create blit bind layout: %w", err)
	}

	pipeLayout, err := c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "multisurface_blit_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		c.device.DestroyBindGroupLayout(bindLayout)
		c.device.DestroyShaderModule(shader)
		return fmt.Errorf("compositor: create blit pipeline layout: %w", err)
	}

	c.shader = shader
	c.bindLayout = bindLayout
	c.pipeLayout = pipeLayout
	return nil
}

// Len returns the number of cached pipelines.
func (c *BlitCache) Len() int {
	return len(c.pipelines)
}

// Formats returns the formats that have a pipeline, in ascending order.
func (c *BlitCache) Formats() []gputypes.TextureFormat {
	formats := make([]gputypes.TextureFormat, 0, len(c.pipelines))
	for f := range c.pipelines {
		formats = append(formats, f)
	}
	slices.Sort(formats)
	return formats
}

// beginFrame rewinds the uniform slots of every pipeline.
func (c *BlitCache) beginFrame() {
	for _, p := range c.pipelines {
		p.used = 0
	}
}

// takeStale returns the uniform buffers replaced since the last call.
func (c *BlitCache) takeStale() []hal.Buffer {
	var stale []hal.Buffer
	for _, p := range c.pipelines {
		stale = append(stale, p.stale...)
		p.stale = nil
	}
	return stale
}

// Destroy releases every pipeline and the shared objects. The GPU must be
// idle.
func (c *BlitCache) Destroy() {
	for f, p := range c.pipelines {
		p.destroy()
		delete(c.pipelines, f)
	}
	if c.pipeLayout != nil {
		c.device.DestroyPipelineLayout(c.pipeLayout)
		c.pipeLayout = nil
	}
	if c.bindLayout != nil {
		c.device.DestroyBindGroupLayout(c.bindLayout)
		c.bindLayout = nil
	}
	if c.shader != nil {
		c.device.DestroyShaderModule(c.shader)
		c.shader = nil
	}
}

// BlitPipeline copies an atlas region onto a surface texture of one format.
//
// Every blit recorded in a frame gets its own uniform slot, so any number of
// surfaces sharing a format can be blitted before the single submit.
type BlitPipeline struct {
	cache    *BlitCache
	format   gputypes.TextureFormat
	pipeline hal.RenderPipeline

	uniforms hal.Buffer
	slots    int // capacity of uniforms
	used     int // slots written this frame
	stale    []hal.Buffer
}

// Format returns the target format of the pipeline.
func (p *BlitPipeline) Format() gputypes.TextureFormat {
	return p.format
}

// Reserve makes room for n more blits in the current frame. A replaced
// uniform buffer may still be referenced by bind groups recorded earlier in
// the frame, so it is kept until the cache hands it out with takeStale.
func (p *BlitPipeline) Reserve(n int) error {
	need := p.used + n
	if need <= p.slots {
		return nil
	}
	slots := max(minBlitSlots, p.slots*2, n)
	buf, err := p.cache.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "multisurface_blit_uniforms_" + p.format.String(),
		Size:  uint64(slots) * blitSlotStride, //nolint:gosec // slot count is small
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("compositor: create blit uniforms: %w", err)
	}

	if p.uniforms != nil {
		p.stale = append(p.stale, p.uniforms)
	}
	p.uniforms = buf
	p.slots = slots
	p.used = 0
	slogger().Debug("compositor: blit uniforms grown", "format", p.format, "slots", slots)
	return nil
}

// Blit records a render pass that clears dst to opaque black and fills it
// with the pixels of region, read from src. The returned bind group is used
// only by this pass and must be destroyed after the frame completes.
func (p *BlitPipeline) Blit(enc hal.CommandEncoder, src, dst hal.TextureView, region atlas.Region) (hal.BindGroup, error) {
	if !region.IsValid() {
		return nil, fmt.Errorf("compositor: blit of invalid region %s", region)
	}
	if err := p.Reserve(1); err != nil {
		return nil, err
	}
	slot := p.used
	offset := uint64(slot) * blitSlotStride //nolint:gosec // slot is non-negative

	if err := p.cache.queue.WriteBuffer(p.uniforms, offset, blitUniform(region)); err != nil {
		return nil, fmt.Errorf("compositor: write blit uniforms: %w", err)
	}

	group, err := p.cache.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "multisurface_blit_bind",
		Layout: p.cache.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: p.uniforms.NativeHandle(), Offset: offset, Size: blitUniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: src.NativeHandle()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("compositor: create blit bind group: %w", err)
	}
	p.used++

	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "multisurface_blit_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       dst,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, group, nil)
	rp.Draw(6, 1, 0, 0)
	rp.End()
	return group, nil
}

func (p *BlitPipeline) destroy() {
	device := p.cache.device
	for _, b := range p.stale {
		device.DestroyBuffer(b)
	}
	p.stale = nil
	if p.uniforms != nil {
		device.DestroyBuffer(p.uniforms)
		p.uniforms = nil
	}
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
}

// blitUniform encodes the Blit uniform for region.
func blitUniform(r atlas.Region) []byte {
	buf := make([]byte, blitUniformSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(r.X))       //nolint:gosec // atlas coordinates are non-negative
	binary.LittleEndian.PutUint32(buf[4:], uint32(r.Y))       //nolint:gosec // atlas coordinates are non-negative
	binary.LittleEndian.PutUint32(buf[8:], uint32(r.Width))   //nolint:gosec // validated region
	binary.LittleEndian.PutUint32(buf[12:], uint32(r.Height)) //nolint:gosec // validated region
	return buf
}
