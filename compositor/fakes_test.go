// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"image"

	"github.com/gogpu/gg/scene"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// testDevice is a noop device that records pipeline and bind group traffic.
type testDevice struct {
	noop.Device

	pipelineFormats   []gputypes.TextureFormat
	shaders           []string
	bindGroups        int
	destroyedGroups   int
	buffers           int
	destroyedBuffers  int
	textures          int
	destroyedTextures int
	waitIdle          int
}

func (d *testDevice) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	d.shaders = append(d.shaders, desc.Source.WGSL)
	return d.Device.CreateShaderModule(desc)
}

func (d *testDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	d.pipelineFormats = append(d.pipelineFormats, desc.Fragment.Targets[0].Format)
	return d.Device.CreateRenderPipeline(desc)
}

func (d *testDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	d.bindGroups++
	return d.Device.CreateBindGroup(desc)
}

func (d *testDevice) DestroyBindGroup(g hal.BindGroup) {
	d.destroyedGroups++
	d.Device.DestroyBindGroup(g)
}

func (d *testDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.buffers++
	return d.Device.CreateBuffer(desc)
}

func (d *testDevice) DestroyBuffer(b hal.Buffer) {
	d.destroyedBuffers++
	d.Device.DestroyBuffer(b)
}

func (d *testDevice) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	d.textures++
	return d.Device.CreateTexture(desc)
}

func (d *testDevice) DestroyTexture(t hal.Texture) {
	d.destroyedTextures++
	d.Device.DestroyTexture(t)
}

func (d *testDevice) WaitIdle() error {
	d.waitIdle++
	return nil
}

// testQueue is a noop queue that counts submissions and presents.
type testQueue struct {
	noop.Queue

	submitErr error
	submits   int
	presented []hal.Surface
	uploads   []hal.Extent3D
	uniforms  [][]byte
	lag       uint64 // submissions PollCompleted reports as still running
}

func (q *testQueue) Submit(cbs []hal.CommandBuffer) (uint64, error) {
	if q.submitErr != nil {
		return 0, q.submitErr
	}
	q.submits++
	return q.Queue.Submit(cbs)
}

func (q *testQueue) PollCompleted() uint64 {
	done := q.Queue.PollCompleted()
	if done < q.lag {
		return 0
	}
	return done - q.lag
}

func (q *testQueue) Present(s hal.Surface, t hal.SurfaceTexture, damage []image.Rectangle) error {
	q.presented = append(q.presented, s)
	return q.Queue.Present(s, t, damage)
}

func (q *testQueue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error {
	q.uploads = append(q.uploads, *size)
	return q.Queue.WriteTexture(dst, data, layout, size)
}

func (q *testQueue) WriteBuffer(b hal.Buffer, offset uint64, data []byte) error {
	q.uniforms = append(q.uniforms, append([]byte(nil), data...))
	return q.Queue.WriteBuffer(b, offset, data)
}

// testSurface is a noop surface with scripted acquisition results.
type testSurface struct {
	noop.Surface

	acquireErr   error
	suboptimal   bool
	configs      []hal.SurfaceConfiguration
	acquired     int
	discarded    int
	unconfigured int
	destroyed    int
}

func (s *testSurface) Configure(d hal.Device, cfg *hal.SurfaceConfiguration) error {
	s.configs = append(s.configs, *cfg)
	return s.Surface.Configure(d, cfg)
}

func (s *testSurface) Unconfigure(d hal.Device) {
	s.unconfigured++
	s.Surface.Unconfigure(d)
}

func (s *testSurface) AcquireTexture(f hal.Fence) (*hal.AcquiredSurfaceTexture, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	s.acquired++
	st, err := s.Surface.AcquireTexture(f)
	if err != nil {
		return nil, err
	}
	st.Suboptimal = s.suboptimal
	return st, nil
}

func (s *testSurface) DiscardTexture(t hal.SurfaceTexture) {
	s.discarded++
}

func (s *testSurface) Destroy() {
	s.destroyed++
}

// recordingRenderer wraps a RasterRenderer and keeps what it was asked to
// draw.
type recordingRenderer struct {
	*RasterRenderer

	calls  int
	scene  *scene.Scene
	width  int
	height int
	err    error
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{RasterRenderer: NewRasterRenderer()}
}

func (r *recordingRenderer) RenderScene(t AtlasTarget, s *scene.Scene, width, height int) error {
	r.calls++
	r.scene = s
	r.width, r.height = width, height
	if r.err != nil {
		return r.err
	}
	return r.RasterRenderer.RenderScene(t, s, width, height)
}
