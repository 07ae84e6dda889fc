// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gg/scene"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/multisurface/atlas"
	"github.com/gogpu/multisurface/content"
	"github.com/gogpu/multisurface/surface"
)

var (
	// ErrNilDevice is returned by New when the device or queue is nil.
	ErrNilDevice = errors.New("compositor: nil device or queue")

	// ErrDeviceLost reports that the GPU device is gone. It is fatal: no
	// later frame can succeed.
	ErrDeviceLost = errors.New("compositor: device lost")

	// ErrSubmitFailed reports that the frame's command buffer could not be
	// finished or submitted. Like ErrDeviceLost it is fatal to the render
	// path.
	ErrSubmitFailed = errors.New("compositor: submit failed")

	// ErrSurfaceAcquisitionFailed is logged for a surface that could not be
	// configured or could not provide a texture. The surface is skipped for
	// the frame; Render does not return it.
	ErrSurfaceAcquisitionFailed = errors.New("compositor: surface acquisition failed")

	// ErrClosed is returned by Render after Close.
	ErrClosed = errors.New("compositor: closed")
)

// Stats counts compositor activity since New.
type Stats struct {
	Frames    uint64 // frames that reached the GPU
	Submits   uint64 // queue submissions
	Presented uint64 // surface textures presented
	Skipped   uint64 // surfaces skipped by acquisition or present failures
	Abandoned uint64 // frames dropped before submission
	Pipelines int    // cached blit pipelines
}

// Compositor draws surfaces through one shared atlas. See the package
// documentation for the frame sequence.
type Compositor struct {
	device hal.Device
	queue  hal.Queue
	cfg    config

	allocator *atlas.Allocator
	res       resources
	blits     *BlitCache
	scenes    SceneRenderer
	content   content.Renderer

	configured map[hal.Surface]surfaceConfig
	inflight   []retiredFrame

	stats  counters
	closed bool
}

// counters back Stats. They are read from other goroutines.
type counters struct {
	frames, submits, presented, skipped, abandoned atomic.Uint64
	pipelines                                      atomic.Int64
}

// surfaceConfig is what a presentation handle was last configured with.
type surfaceConfig struct {
	width, height int
	format        gputypes.TextureFormat
}

// New creates a compositor bound to one device and queue. GPU resources are
// created lazily by the first non-empty frame.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Compositor, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	renderer := cfg.content
	if renderer == nil {
		d, err := content.NewDispatcher()
		if err != nil {
			return nil, err
		}
		renderer = d
	}
	scenes := cfg.sceneRenderer
	if scenes == nil {
		scenes = NewRasterRenderer()
	}

	return &Compositor{
		device:     device,
		queue:      queue,
		cfg:        cfg,
		allocator:  atlas.New(cfg.atlasWidth, cfg.atlasHeight),
		res:        resources{device: device, width: cfg.atlasWidth, height: cfg.atlasHeight},
		blits:      NewBlitCache(device, queue),
		scenes:     scenes,
		content:    renderer,
		configured: make(map[hal.Surface]surfaceConfig),
	}, nil
}

// AtlasSize returns the size of the atlas texture.
func (c *Compositor) AtlasSize() (width, height int) {
	return c.allocator.Size()
}

// Blits returns the blit pipeline cache.
func (c *Compositor) Blits() *BlitCache {
	return c.blits
}

// Render draws entries in one frame.
//
// It returns atlas.ErrCapacityExceeded (wrapped in an *atlas.CapacityError)
// when the surfaces do not fit the atlas, and content errors, both before
// any GPU work. Surfaces that cannot be acquired are skipped and logged.
// Errors matching ErrDeviceLost or ErrSubmitFailed are fatal.
func (c *Compositor) Render(ctx context.Context, entries []surface.Entry) error {
	if c.closed {
		return ErrClosed
	}
	if len(entries) == 0 {
		return nil
	}
	if err := c.res.ensure(); err != nil {
		return deviceError(err)
	}

	layout, err := c.allocator.Allocate(requests(entries))
	if err != nil {
		c.stats.abandoned.Add(1)
		return err
	}

	combined, err := c.buildScene(ctx, entries, layout)
	if err != nil {
		c.stats.abandoned.Add(1)
		return err
	}

	return c.encode(entries, layout, combined)
}

// requests keys each entry by its id. Placements come back in entry order.
func requests(entries []surface.Entry) []atlas.Request {
	reqs := make([]atlas.Request, len(entries))
	for i, e := range entries {
		reqs[i] = atlas.Request{Key: uint64(e.ID), Width: e.Width, Height: e.Height}
	}
	return reqs
}

// buildScene renders every entry's content and combines the results into
// one scene: each content scene is clipped to its own rectangle and moved to
// its atlas region.
func (c *Compositor) buildScene(ctx context.Context, entries []surface.Entry, layout atlas.Layout) (*scene.Scene, error) {
	scenes := make([]*scene.Scene, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.workers)
	for i, e := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := c.content.Render(e.Content, e.Width, e.Height)
			if err != nil {
				return fmt.Errorf("compositor: content of surface %d: %w", e.ID, err)
			}
			scenes[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := scene.NewScene()
	for i, s := range scenes {
		if s == nil || s.IsEmpty() {
			continue
		}
		r := layout.Placements[i].Region
		x, y := float32(r.X), float32(r.Y)
		combined.PushLayer(scene.BlendNormal, 1, scene.NewRectShape(x, y, float32(r.Width), float32(r.Height)))
		combined.AppendWithTranslation(s, x, y)
		combined.PopLayer()
	}
	return combined, nil
}

// target is a surface whose texture was acquired for the current frame.
type target struct {
	entry   surface.Entry
	region  atlas.Region
	texture hal.SurfaceTexture
	view    hal.TextureView
}

// encode records the atlas pass and the blits, submits once and presents.
func (c *Compositor) encode(entries []surface.Entry, layout atlas.Layout, combined *scene.Scene) error {
	enc, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "multisurface_frame"})
	if err != nil {
		c.stats.abandoned.Add(1)
		return deviceError(fmt.Errorf("compositor: create encoder: %w", err))
	}
	if err := enc.BeginEncoding("multisurface_frame"); err != nil {
		enc.Destroy()
		c.stats.abandoned.Add(1)
		return deviceError(fmt.Errorf("compositor: begin encoding: %w", err))
	}

	var garbage []func()
	abandon := func(targets []target, err error) error {
		c.discard(targets)
		enc.DiscardEncoding()
		enc.Destroy()
		for _, release := range garbage {
			release()
		}
		c.stats.abandoned.Add(1)
		return deviceError(err)
	}

	width, height := layout.Extent()
	atlasTarget := AtlasTarget{
		Device:     c.device,
		Queue:      c.queue,
		Encoder:    enc,
		Texture:    c.res.texture,
		View:       c.res.view,
		Width:      c.res.width,
		Height:     c.res.height,
		Background: c.cfg.background,
	}
	if err := c.scenes.RenderScene(atlasTarget, combined, width, height); err != nil {
		return abandon(nil, err)
	}

	targets := make([]target, 0, len(entries))
	for i, e := range entries {
		tex, err := c.acquire(e)
		if err != nil {
			if errors.Is(err, hal.ErrDeviceLost) {
				return abandon(targets, err)
			}
			c.stats.skipped.Add(1)
			slogger().Warn("compositor: surface skipped", "id", e.ID, "err", err)
			continue
		}
		targets = append(targets, target{entry: e, region: layout.Placements[i].Region, texture: tex})
	}
	if len(targets) == 0 {
		enc.DiscardEncoding()
		enc.Destroy()
		slogger().Debug("compositor: no surface acquired, nothing submitted")
		return nil
	}

	c.blits.beginFrame()
	if err := c.reserveBlits(targets); err != nil {
		return abandon(targets, err)
	}
	for i := range targets {
		t := &targets[i]
		view, err := c.device.CreateTextureView(t.texture, &hal.TextureViewDescriptor{
			Label:         "multisurface_surface_view",
			Format:        t.entry.Format,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			MipLevelCount: 1,
		})
		if err != nil {
			return abandon(targets, fmt.Errorf("compositor: create view for surface %d: %w", t.entry.ID, err))
		}
		t.view = view
		garbage = append(garbage, func() { c.device.DestroyTextureView(view) })

		pipeline, err := c.blits.GetOrCreate(t.entry.Format)
		if err != nil {
			return abandon(targets, err)
		}
		group, err := pipeline.Blit(enc, c.res.view, view, t.region)
		if err != nil {
			return abandon(targets, err)
		}
		garbage = append(garbage, func() { c.device.DestroyBindGroup(group) })
	}
	for _, b := range c.blits.takeStale() {
		garbage = append(garbage, func() { c.device.DestroyBuffer(b) })
	}

	cmd, err := enc.EndEncoding()
	if err != nil {
		return abandon(targets, fmt.Errorf("%w: end encoding: %w", ErrSubmitFailed, err))
	}
	index, err := c.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		c.device.FreeCommandBuffer(cmd)
		return abandon(targets, fmt.Errorf("%w: %w", ErrSubmitFailed, err))
	}
	c.stats.submits.Add(1)
	c.stats.frames.Add(1)
	garbage = append(garbage, func() {
		c.device.FreeCommandBuffer(cmd)
		enc.Destroy()
	})

	for _, t := range targets {
		if err := c.queue.Present(t.entry.Handle, t.texture, nil); err != nil {
			c.stats.skipped.Add(1)
			c.forget(t.entry.Handle, err)
			slogger().Warn("compositor: present failed", "id", t.entry.ID, "err", err)
			continue
		}
		c.stats.presented.Add(1)
	}

	c.inflight = append(c.inflight, retiredFrame{index: index, release: garbage})
	c.collect(c.queue.PollCompleted())

	slogger().Debug("compositor: frame submitted",
		"index", index,
		"surfaces", len(entries),
		"presented", len(targets),
		"extent_w", width,
		"extent_h", height,
		"utilization", layout.Utilization())
	return nil
}

// reserveBlits creates the pipelines of every format in the frame and makes
// room for their blits.
func (c *Compositor) reserveBlits(targets []target) error {
	defer func() { c.stats.pipelines.Store(int64(c.blits.Len())) }()
	counts := make(map[gputypes.TextureFormat]int)
	for _, t := range targets {
		counts[t.entry.Format]++
	}
	for _, t := range targets {
		n, ok := counts[t.entry.Format]
		if !ok {
			continue
		}
		delete(counts, t.entry.Format)
		p, err := c.blits.GetOrCreate(t.entry.Format)
		if err != nil {
			return err
		}
		if err := p.Reserve(n); err != nil {
			return err
		}
	}
	return nil
}

// acquire configures the handle when needed and acquires its next texture.
func (c *Compositor) acquire(e surface.Entry) (hal.SurfaceTexture, error) {
	if err := c.configure(e); err != nil {
		return nil, fmt.Errorf("%w: surface %d: %w", ErrSurfaceAcquisitionFailed, e.ID, err)
	}
	acquired, err := e.Handle.AcquireTexture(nil)
	if err != nil {
		c.forget(e.Handle, err)
		return nil, fmt.Errorf("%w: surface %d: %w", ErrSurfaceAcquisitionFailed, e.ID, err)
	}
	if acquired.Suboptimal {
		delete(c.configured, e.Handle)
	}
	return acquired.Texture, nil
}

// configure applies size and format to the handle if they changed since it
// was last configured.
func (c *Compositor) configure(e surface.Entry) error {
	want := surfaceConfig{width: e.Width, height: e.Height, format: e.Format}
	if have, ok := c.configured[e.Handle]; ok && have == want {
		return nil
	}
	err := e.Handle.Configure(c.device, &hal.SurfaceConfiguration{
		Width:       uint32(e.Width),  //nolint:gosec // validated by the registry
		Height:      uint32(e.Height), //nolint:gosec // validated by the registry
		Format:      e.Format,
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: c.cfg.presentMode,
		AlphaMode:   gputypes.CompositeAlphaModeOpaque,
	})
	if err != nil {
		delete(c.configured, e.Handle)
		return fmt.Errorf("configure: %w", err)
	}
	c.configured[e.Handle] = want
	slogger().Debug("compositor: surface configured",
		"id", e.ID, "width", e.Width, "height", e.Height, "format", e.Format)
	return nil
}

// forget drops the recorded configuration of a handle whose configuration
// went stale, so the next frame configures it again.
func (c *Compositor) forget(h hal.Surface, err error) {
	if errors.Is(err, hal.ErrSurfaceOutdated) || errors.Is(err, hal.ErrSurfaceLost) {
		delete(c.configured, h)
	}
}

func (c *Compositor) discard(targets []target) {
	for _, t := range targets {
		t.entry.Handle.DiscardTexture(t.texture)
	}
}

// Release unconfigures and destroys presentation handles that are no longer
// registered. It must run on the goroutine that drives Render.
func (c *Compositor) Release(handles []hal.Surface) {
	for _, h := range handles {
		if _, ok := c.configured[h]; ok {
			h.Unconfigure(c.device)
			delete(c.configured, h)
		}
		h.Destroy()
	}
	if len(handles) > 0 {
		slogger().Debug("compositor: released surfaces", "count", len(handles))
	}
}

// Stats returns a snapshot of the counters. It is safe to call from any
// goroutine.
func (c *Compositor) Stats() Stats {
	return Stats{
		Frames:    c.stats.frames.Load(),
		Submits:   c.stats.submits.Load(),
		Presented: c.stats.presented.Load(),
		Skipped:   c.stats.skipped.Load(),
		Abandoned: c.stats.abandoned.Load(),
		Pipelines: int(c.stats.pipelines.Load()),
	}
}

// Close waits for the GPU to go idle and destroys every resource the
// compositor created. Configured handles are unconfigured but not
// destroyed; they belong to the caller. Close is idempotent.
func (c *Compositor) Close() {
	if c.closed {
		return
	}
	c.closed = true

	if err := c.device.WaitIdle(); err != nil {
		slogger().Warn("compositor: wait idle failed", "err", err)
	}
	c.collectAll()
	for h := range c.configured {
		h.Unconfigure(c.device)
	}
	clear(c.configured)
	c.blits.Destroy()
	c.scenes.Close()
	c.res.destroy()
	slogger().Info("compositor: closed", "frames", c.stats.frames.Load())
}

// deviceError marks errors caused by a lost device.
func deviceError(err error) error {
	if errors.Is(err, hal.ErrDeviceLost) && !errors.Is(err, ErrDeviceLost) {
		return fmt.Errorf("%w: %w", ErrDeviceLost, err)
	}
	return err
}
