// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package multisurface

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/multisurface/atlas"
	"github.com/gogpu/multisurface/compositor"
	"github.com/gogpu/multisurface/content"
	"github.com/gogpu/multisurface/scheduler"
	"github.com/gogpu/multisurface/surface"
)

// Errors returned by the Multiplexer. Most are defined by the sub-packages
// and re-exported here for errors.Is checks.
var (
	// ErrClosed is returned by operations after Shutdown or after the render
	// worker stopped on a fatal error.
	ErrClosed = errors.New("multisurface: closed")

	// ErrNoHAL is returned by NewFromProvider when the provider does not
	// expose a hal.Device and hal.Queue.
	ErrNoHAL = errors.New("multisurface: provider does not expose HAL types")

	ErrDuplicateID              = surface.ErrDuplicateID
	ErrDuplicateHandle          = surface.ErrDuplicateHandle
	ErrUnknownSurface           = surface.ErrUnknownSurface
	ErrInvalidSize              = surface.ErrInvalidSize
	ErrContentKind              = surface.ErrContentKind
	ErrCapacityExceeded         = atlas.ErrCapacityExceeded
	ErrSurfaceAcquisitionFailed = compositor.ErrSurfaceAcquisitionFailed
	ErrDeviceLost               = compositor.ErrDeviceLost
	ErrSubmitFailed             = compositor.ErrSubmitFailed
)

// Multiplexer renders the content of many presentation surfaces through one
// device, one atlas and one submission per frame.
//
// All methods are safe for concurrent use. Methods never block on GPU work:
// state changes go to the surface registry and RequestRender wakes the render
// goroutine, which draws whatever the registry holds when it runs.
type Multiplexer struct {
	reg   *surface.Registry
	comp  *compositor.Compositor
	sched *scheduler.Scheduler

	mu     sync.RWMutex
	closed bool
}

// New creates a multiplexer bound to device and queue and starts its render
// goroutine.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Multiplexer, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}

	copts := o.compositor
	switch {
	case o.content != nil:
		copts = append(copts, compositor.WithContentRenderer(o.content))
	case len(o.text) > 0:
		d, err := content.NewDispatcher(o.text...)
		if err != nil {
			return nil, fmt.Errorf("multisurface: %w", err)
		}
		copts = append(copts, compositor.WithContentRenderer(d))
	}

	comp, err := compositor.New(device, queue, copts...)
	if err != nil {
		return nil, fmt.Errorf("multisurface: %w", err)
	}

	m := &Multiplexer{
		reg:  surface.NewRegistry(o.surfaceFormat),
		comp: comp,
	}
	var sopts []scheduler.Option
	if o.onFatal != nil {
		sopts = append(sopts, scheduler.WithFatalHandler(o.onFatal))
	}
	m.sched = scheduler.New(m.reg, comp, sopts...)
	m.sched.Start()

	w, h := comp.AtlasSize()
	slogger().Info("multisurface: started",
		"atlas_w", w, "atlas_h", h, "format", m.reg.DefaultFormat().String())
	return m, nil
}

// NewFromProvider creates a multiplexer on a device shared with another
// component, such as a gogpu window. The provider must implement
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue.
// Its SurfaceFormat becomes the default surface format unless
// WithSurfaceFormat is given.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Multiplexer, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}

	if f := provider.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		opts = append([]Option{WithSurfaceFormat(f)}, opts...)
	}
	return New(device, queue, opts...)
}

// check returns ErrClosed once the multiplexer can no longer render.
// The caller must hold m.mu.
func (m *Multiplexer) check() error {
	if m.closed {
		return ErrClosed
	}
	select {
	case <-m.sched.Done():
		return ErrClosed
	default:
		return nil
	}
}

// RegisterSurface takes ownership of handle and registers it under id with
// Unset content in the default surface format. Registering a live id fails
// with ErrDuplicateID; a deregistered id may be registered again and starts
// fresh.
func (m *Multiplexer) RegisterSurface(id surface.ID, handle hal.Surface, width, height int) error {
	return m.RegisterSurfaceWithFormat(id, handle, width, height, gputypes.TextureFormatUndefined)
}

// RegisterSurfaceWithFormat is RegisterSurface with an explicit output format.
func (m *Multiplexer) RegisterSurfaceWithFormat(id surface.ID, handle hal.Surface, width, height int, format gputypes.TextureFormat) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return err
	}
	if err := m.reg.RegisterWithFormat(id, handle, width, height, format); err != nil {
		// The worker closes the registry when it stops.
		if errors.Is(err, surface.ErrClosed) {
			return fmt.Errorf("%w: %w", ErrClosed, err)
		}
		return err
	}
	slogger().Debug("multisurface: surface registered", "id", id, "w", width, "h", height)
	return nil
}

// UpdateContent replaces the content of a surface. It does not render;
// call RequestRender.
func (m *Multiplexer) UpdateContent(id surface.ID, d surface.Descriptor) error {
	return m.mutate(func() error { return m.reg.Update(id, d) })
}

// UpdateText replaces the text of a surface showing Parametrized content.
func (m *Multiplexer) UpdateText(id surface.ID, text string) error {
	return m.mutate(func() error { return m.reg.UpdateText(id, text) })
}

// UpdateParameters sets the font size and weight of a surface showing
// Parametrized content.
func (m *Multiplexer) UpdateParameters(id surface.ID, size, weight float32) error {
	return m.mutate(func() error { return m.reg.UpdateParameters(id, size, weight) })
}

// Resize changes the pixel size of a surface. The presentation handle is
// reconfigured by the next frame that draws it.
func (m *Multiplexer) Resize(id surface.ID, width, height int) error {
	return m.mutate(func() error { return m.reg.Resize(id, width, height) })
}

func (m *Multiplexer) mutate(fn func() error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return err
	}
	return fn()
}

// RequestRender asks for a frame containing ids. It returns immediately.
// Requests made before the render goroutine picks them up are merged into
// one frame that uses the content current at that time. Unknown ids are
// ignored. RequestRender after Shutdown does nothing.
func (m *Multiplexer) RequestRender(ids ...surface.ID) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	m.sched.RequestRender(ids...)
}

// DeregisterSurface removes a surface and reports whether it was
// registered. Its presentation handle is released on the render goroutine.
func (m *Multiplexer) DeregisterSurface(id surface.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false
	}
	if !m.reg.Deregister(id) {
		return false
	}
	m.sched.RequestRender()
	slogger().Debug("multisurface: surface deregistered", "id", id)
	return true
}

// Shutdown stops the render goroutine and returns without waiting. A frame
// in progress finishes, pending requests are dropped, and every registered
// handle is released. Use Wait or Done to wait for completion.
func (m *Multiplexer) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.sched.Shutdown()
}

// Done is closed when the render goroutine has stopped and released every
// GPU resource.
func (m *Multiplexer) Done() <-chan struct{} {
	return m.sched.Done()
}

// Wait blocks until the render goroutine stops and returns the fatal error
// that stopped it, or nil after Shutdown.
func (m *Multiplexer) Wait() error {
	return m.sched.Wait()
}

// Err returns the fatal error that stopped the render goroutine, or nil.
func (m *Multiplexer) Err() error {
	return m.sched.Err()
}

// Len returns the number of registered surfaces.
func (m *Multiplexer) Len() int {
	return m.reg.Len()
}

// Lookup returns a copy of the state of a registered surface.
func (m *Multiplexer) Lookup(id surface.ID) (surface.Entry, bool) {
	return m.reg.Lookup(id)
}

// Stats returns compositor counters.
func (m *Multiplexer) Stats() compositor.Stats {
	return m.comp.Stats()
}
