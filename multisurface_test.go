// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package multisurface

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gg"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/multisurface/compositor"
	"github.com/gogpu/multisurface/surface"
)

// fakeQueue counts submissions and reports presents on a channel.
type fakeQueue struct {
	noop.Queue

	mu        sync.Mutex
	submitErr error
	submits   int
	presents  chan hal.Surface
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{presents: make(chan hal.Surface, 64)}
}

func (q *fakeQueue) Submit(cbs []hal.CommandBuffer) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.submitErr != nil {
		return 0, q.submitErr
	}
	q.submits++
	return q.Queue.Submit(cbs)
}

func (q *fakeQueue) PollCompleted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.Queue.PollCompleted()
}

func (q *fakeQueue) Present(s hal.Surface, t hal.SurfaceTexture, damage []image.Rectangle) error {
	q.presents <- s
	return nil
}

func (q *fakeQueue) submitCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submits
}

// fakeSurface closes destroyed when the multiplexer releases it.
type fakeSurface struct {
	noop.Surface
	once      sync.Once
	destroyed chan struct{}
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{destroyed: make(chan struct{})}
}

func (s *fakeSurface) Destroy() {
	s.once.Do(func() { close(s.destroyed) })
}

func (s *fakeSurface) isDestroyed() bool {
	select {
	case <-s.destroyed:
		return true
	default:
		return false
	}
}

const timeout = 5 * time.Second

func newMultiplexer(t *testing.T, q *fakeQueue, opts ...Option) *Multiplexer {
	t.Helper()
	m, err := New(&noop.Device{}, q, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		m.Shutdown()
		select {
		case <-m.Done():
		case <-time.After(timeout):
			t.Error("render goroutine did not stop")
		}
	})
	return m
}

func presented(t *testing.T, q *fakeQueue, n int) []hal.Surface {
	t.Helper()
	var got []hal.Surface
	for range n {
		select {
		case s := <-q.presents:
			got = append(got, s)
		case <-time.After(timeout):
			t.Fatalf("presented %d surfaces, want %d", len(got), n)
		}
	}
	return got
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewNilDevice(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, compositor.ErrNilDevice) {
		t.Errorf("New(nil, nil) err = %v, want ErrNilDevice", err)
	}
}

func TestRenderTwoSurfaces(t *testing.T) {
	q := newFakeQueue()
	m := newMultiplexer(t, q, WithAtlasSize(256, 256))

	a, b := newFakeSurface(), newFakeSurface()
	if err := m.RegisterSurface(1, a, 100, 50); err != nil {
		t.Fatal(err)
	}
	if err := m.RegisterSurface(2, b, 80, 80); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateContent(1, surface.Parametrized{Text: "12:30", Size: 24, Weight: 400}); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateContent(2, surface.Solid{Color: gg.Blue}); err != nil {
		t.Fatal(err)
	}

	m.RequestRender(1, 2)
	got := presented(t, q, 2)
	if got[0] != hal.Surface(a) || got[1] != hal.Surface(b) {
		t.Errorf("present order = %v, want [a b]", got)
	}

	m.Shutdown()
	if err := m.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n := q.submitCount(); n != 1 {
		t.Errorf("submits = %d, want 1", n)
	}
	st := m.Stats()
	if st.Frames != 1 || st.Presented != 2 || st.Pipelines != 1 {
		t.Errorf("Stats() = %+v", st)
	}
	if !a.isDestroyed() || !b.isDestroyed() {
		t.Error("handles not released at shutdown")
	}
}

func TestCapacityExceeded(t *testing.T) {
	q := newFakeQueue()
	m := newMultiplexer(t, q, WithAtlasSize(2048, 2048))

	c := newFakeSurface()
	if err := m.RegisterSurface(3, c, 4096, 4096); err != nil {
		t.Fatal(err)
	}
	m.RequestRender(3)
	eventually(t, "the frame to be abandoned", func() bool { return m.Stats().Abandoned == 1 })

	if n := q.submitCount(); n != 0 {
		t.Errorf("submits = %d, want 0", n)
	}
	if m.Err() != nil {
		t.Errorf("Err() = %v, capacity errors are not fatal", m.Err())
	}

	// The worker keeps running after the failed frame.
	small := newFakeSurface()
	if err := m.RegisterSurface(4, small, 64, 64); err != nil {
		t.Fatal(err)
	}
	m.RequestRender(4)
	if got := presented(t, q, 1); got[0] != hal.Surface(small) {
		t.Errorf("presented %v, want the small surface", got[0])
	}
}

func TestRegistryErrors(t *testing.T) {
	m := newMultiplexer(t, newFakeQueue())
	h := newFakeSurface()
	if err := m.RegisterSurface(1, h, 10, 10); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"duplicate id", m.RegisterSurface(1, newFakeSurface(), 10, 10), ErrDuplicateID},
		{"duplicate handle", m.RegisterSurface(2, h, 10, 10), ErrDuplicateHandle},
		{"invalid size", m.RegisterSurface(3, newFakeSurface(), 0, 10), ErrInvalidSize},
		{"update unknown", m.UpdateContent(9, surface.Unset{}), ErrUnknownSurface},
		{"text unknown", m.UpdateText(9, "x"), ErrUnknownSurface},
		{"resize unknown", m.Resize(9, 5, 5), ErrUnknownSurface},
		{"text on unset", m.UpdateText(1, "x"), ErrContentKind},
		{"parameters on unset", m.UpdateParameters(1, 10, 400), ErrContentKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("err = %v, want %v", tt.err, tt.want)
			}
		})
	}
}

func TestUpdateParametrized(t *testing.T) {
	m := newMultiplexer(t, newFakeQueue())
	if err := m.RegisterSurface(1, newFakeSurface(), 200, 60); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateContent(1, surface.Parametrized{Text: "a", Size: 12, Weight: 400}); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateText(1, "b"); err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateParameters(1, 30, 700); err != nil {
		t.Fatal(err)
	}
	e, ok := m.Lookup(1)
	if !ok {
		t.Fatal("Lookup(1) = false")
	}
	if want := (surface.Parametrized{Text: "b", Size: 30, Weight: 700}); e.Content != want {
		t.Errorf("content = %v, want %v", e.Content, want)
	}
}

func TestDeregisterReleasesHandle(t *testing.T) {
	m := newMultiplexer(t, newFakeQueue())
	h := newFakeSurface()
	if err := m.RegisterSurface(1, h, 10, 10); err != nil {
		t.Fatal(err)
	}
	if !m.DeregisterSurface(1) {
		t.Fatal("DeregisterSurface(1) = false")
	}
	if m.DeregisterSurface(1) {
		t.Error("second DeregisterSurface(1) = true")
	}
	select {
	case <-h.destroyed:
	case <-time.After(timeout):
		t.Fatal("deregistered handle was not released")
	}

	// The id can be reused and starts with no content.
	if err := m.RegisterSurface(1, newFakeSurface(), 20, 20); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	e, _ := m.Lookup(1)
	if _, ok := e.Content.(surface.Unset); !ok || e.Width != 20 {
		t.Errorf("re-registered entry = %+v", e)
	}
}

func TestShutdown(t *testing.T) {
	q := newFakeQueue()
	m := newMultiplexer(t, q)
	h := newFakeSurface()
	if err := m.RegisterSurface(1, h, 10, 10); err != nil {
		t.Fatal(err)
	}

	m.Shutdown()
	m.Shutdown()
	m.RequestRender(1)
	if err := m.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if err := m.RegisterSurface(2, newFakeSurface(), 10, 10); !errors.Is(err, ErrClosed) {
		t.Errorf("RegisterSurface after Shutdown err = %v, want ErrClosed", err)
	}
	if err := m.UpdateText(1, "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("UpdateText after Shutdown err = %v, want ErrClosed", err)
	}
	if m.DeregisterSurface(1) {
		t.Error("DeregisterSurface after Shutdown = true")
	}
	if !h.isDestroyed() {
		t.Error("handle not released")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after shutdown", m.Len())
	}
}

func TestRegisterWhileWorkerStops(t *testing.T) {
	m := newMultiplexer(t, newFakeQueue())

	// The worker closes the registry before Done is closed; a registration
	// landing in between must not take ownership of the handle.
	released := m.reg.Close()
	if len(released) != 0 {
		t.Fatalf("Close() returned %d handles, want 0", len(released))
	}
	if err := m.RegisterSurface(1, newFakeSurface(), 10, 10); !errors.Is(err, ErrClosed) {
		t.Errorf("RegisterSurface err = %v, want ErrClosed", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestDeviceLost(t *testing.T) {
	q := newFakeQueue()
	q.submitErr = hal.ErrDeviceLost

	fatal := make(chan error, 1)
	m := newMultiplexer(t, q, WithFatalHandler(func(err error) { fatal <- err }))
	if err := m.RegisterSurface(1, newFakeSurface(), 10, 10); err != nil {
		t.Fatal(err)
	}
	m.RequestRender(1)

	select {
	case err := <-fatal:
		if !errors.Is(err, ErrDeviceLost) {
			t.Errorf("fatal handler got %v", err)
		}
	case <-time.After(timeout):
		t.Fatal("fatal handler not called")
	}
	if err := m.Wait(); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Wait err = %v, want ErrDeviceLost", err)
	}
	if err := m.RegisterSurface(2, newFakeSurface(), 10, 10); !errors.Is(err, ErrClosed) {
		t.Errorf("RegisterSurface after device loss err = %v, want ErrClosed", err)
	}
}

func TestSubmitFailure(t *testing.T) {
	q := newFakeQueue()
	q.submitErr = errors.New("queue submit rejected")

	fatal := make(chan error, 1)
	m := newMultiplexer(t, q, WithFatalHandler(func(err error) { fatal <- err }))
	if err := m.RegisterSurface(1, newFakeSurface(), 10, 10); err != nil {
		t.Fatal(err)
	}
	m.RequestRender(1)

	if err := m.Wait(); !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("Wait err = %v, want ErrSubmitFailed", err)
	}
	if err := <-fatal; !errors.Is(err, ErrSubmitFailed) {
		t.Errorf("fatal handler got %v", err)
	}
	if !errors.Is(m.Err(), ErrSubmitFailed) {
		t.Errorf("Err() = %v", m.Err())
	}
	if st := m.Stats(); st.Abandoned != 1 || st.Submits != 0 {
		t.Errorf("Stats() = %+v", st)
	}
	if err := m.RegisterSurface(2, newFakeSurface(), 10, 10); !errors.Is(err, ErrClosed) {
		t.Errorf("RegisterSurface after submit failure err = %v, want ErrClosed", err)
	}
}

// fakeProvider shares a noop device the way a windowing library would.
type fakeProvider struct {
	device hal.Device
	queue  hal.Queue
	format gputypes.TextureFormat
}

func (p *fakeProvider) Device() gpucontext.Device             { return p.device }
func (p *fakeProvider) Queue() gpucontext.Queue               { return p.queue }
func (p *fakeProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *fakeProvider) SurfaceFormat() gputypes.TextureFormat { return p.format }
func (p *fakeProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }
func (p *fakeProvider) HalDevice() any                        { return p.device }
func (p *fakeProvider) HalQueue() any                         { return p.queue }

// plainProvider has no HAL accessors.
type plainProvider struct{ fakeProvider }

func (plainProvider) HalDevice() {}

func TestNewFromProvider(t *testing.T) {
	p := &fakeProvider{device: &noop.Device{}, queue: newFakeQueue(), format: gputypes.TextureFormatRGBA8Unorm}
	m, err := NewFromProvider(p)
	if err != nil {
		t.Fatalf("NewFromProvider: %v", err)
	}
	defer func() {
		m.Shutdown()
		_ = m.Wait()
	}()

	if err := m.RegisterSurface(1, newFakeSurface(), 10, 10); err != nil {
		t.Fatal(err)
	}
	if e, _ := m.Lookup(1); e.Format != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("format = %v, want the provider's RGBA8Unorm", e.Format)
	}
	if err := m.RegisterSurfaceWithFormat(2, newFakeSurface(), 10, 10, gputypes.TextureFormatBGRA8Unorm); err != nil {
		t.Fatal(err)
	}
	if e, _ := m.Lookup(2); e.Format != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("explicit format = %v, want BGRA8Unorm", e.Format)
	}
}

func TestNewFromProviderWithoutHAL(t *testing.T) {
	tests := []struct {
		name     string
		provider gpucontext.DeviceProvider
	}{
		{"no accessors", &plainProvider{}},
		{"nil device", &fakeProvider{queue: newFakeQueue()}},
		{"nil queue", &fakeProvider{device: &noop.Device{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFromProvider(tt.provider); !errors.Is(err, ErrNoHAL) {
				t.Errorf("err = %v, want ErrNoHAL", err)
			}
		})
	}
}
