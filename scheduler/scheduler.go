// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package scheduler runs frames on a single render goroutine.
//
// Callers mark surfaces dirty and post a Render command; the worker takes
// the command, reads the dirty set and the surface state at that moment and
// hands them to a FrameRenderer. Requests posted while a frame is running
// coalesce into one follow-up frame. All GPU calls, including the release
// of deregistered presentation handles, happen on the worker.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/multisurface/compositor"
	"github.com/gogpu/multisurface/surface"
)

// FrameRenderer draws frames for the worker. *compositor.Compositor
// implements it.
type FrameRenderer interface {
	Render(ctx context.Context, entries []surface.Entry) error
	Release(handles []hal.Surface)
	Close()
}

var _ FrameRenderer = (*compositor.Compositor)(nil)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithFatalHandler sets a function called on the worker goroutine with the
// error that stopped it.
func WithFatalHandler(fn func(error)) Option {
	return func(s *Scheduler) {
		s.onFatal = fn
	}
}

// WithFatal sets the predicate that decides whether a frame error stops the
// worker. The default treats compositor.ErrDeviceLost and
// compositor.ErrSubmitFailed as fatal.
func WithFatal(isFatal func(error) bool) Option {
	return func(s *Scheduler) {
		if isFatal != nil {
			s.isFatal = isFatal
		}
	}
}

func isRenderPathLost(err error) bool {
	return errors.Is(err, compositor.ErrDeviceLost) || errors.Is(err, compositor.ErrSubmitFailed)
}

// Scheduler owns the render worker.
type Scheduler struct {
	reg     *surface.Registry
	frames  FrameRenderer
	box     *Mailbox
	onFatal func(error)
	isFatal func(error) bool

	start sync.Once
	done  chan struct{}
	err   error // set before done is closed

	frameCount atomic.Uint64
	failed     atomic.Uint64
}

// New creates a scheduler for reg. The worker does not run until Start.
func New(reg *surface.Registry, frames FrameRenderer, opts ...Option) *Scheduler {
	s := &Scheduler{
		reg:     reg,
		frames:  frames,
		box:     NewMailbox(),
		isFatal: isRenderPathLost,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the worker. Calls after the first do nothing. Commands
// posted before Start are kept and handled once the worker runs.
func (s *Scheduler) Start() {
	s.start.Do(func() {
		go s.run()
	})
}

// RequestRender marks ids dirty and asks for a frame. It never blocks on
// rendering. Unknown ids are ignored. With no ids it only wakes the worker,
// which then releases retired handles and renders whatever is already dirty.
func (s *Scheduler) RequestRender(ids ...surface.ID) {
	s.reg.MarkDirty(ids...)
	s.box.Post(Render)
}

// Shutdown asks the worker to stop. It returns immediately; a frame in
// progress completes, a pending Render is dropped. Use Wait or Done to learn
// when the worker has exited.
func (s *Scheduler) Shutdown() {
	if s.box.Post(Shutdown) {
		slogger().Debug("scheduler: shutdown requested")
	}
}

// Done is closed when the worker has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the worker has exited and returns the error that
// stopped it, or nil after Shutdown. Start must have been called.
func (s *Scheduler) Wait() error {
	<-s.done
	return s.err
}

// Err returns the fatal error once the worker has exited, nil otherwise.
func (s *Scheduler) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Frames returns the number of frames the worker has attempted.
func (s *Scheduler) Frames() uint64 {
	return s.frameCount.Load()
}

// Failed returns the number of frames that ended with a non-fatal error.
func (s *Scheduler) Failed() uint64 {
	return s.failed.Load()
}

func (s *Scheduler) run() {
	defer close(s.done)
	defer s.stop()

	slogger().Info("scheduler: worker started")
	for {
		cmd := s.box.Wait()
		s.frames.Release(s.reg.TakeRetired())
		if cmd == Shutdown {
			return
		}
		if err := s.renderDirty(); err != nil {
			s.err = err
			slogger().Error("scheduler: worker stopped", "err", err)
			if s.onFatal != nil {
				s.onFatal(err)
			}
			return
		}
	}
}

// renderDirty renders the surfaces dirty at this moment. Only fatal errors
// are returned.
func (s *Scheduler) renderDirty() error {
	ids := s.reg.TakeDirty()
	entries, missing := s.reg.Snapshot(ids)
	if len(missing) > 0 {
		slogger().Debug("scheduler: dirty surfaces gone before render", "ids", missing)
	}

	err := s.frames.Render(context.Background(), entries)
	s.frameCount.Add(1)
	if err == nil {
		return nil
	}
	if s.isFatal(err) {
		return err
	}
	s.failed.Add(1)
	slogger().Error("scheduler: frame abandoned", "surfaces", len(entries), "err", err)
	return nil
}

// stop releases every handle still owned by the registry and closes the
// frame renderer. It runs on the worker as it exits.
func (s *Scheduler) stop() {
	s.frames.Release(s.reg.Close())
	s.frames.Close()
	slogger().Info("scheduler: worker stopped", "frames", s.frameCount.Load())
}
