// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package scheduler

import "sync"

// Command is an instruction for the render worker.
type Command int

const (
	// None means nothing is pending.
	None Command = iota

	// Render asks for a frame of every dirty surface.
	Render

	// Shutdown stops the worker after the frame in progress, if any.
	Shutdown
)

func (c Command) String() string {
	switch c {
	case None:
		return "none"
	case Render:
		return "render"
	case Shutdown:
		return "shutdown"
	}
	return "unknown"
}

// Mailbox is a single-slot command cell. Posting replaces whatever is
// pending, so any number of Render posts between two takes collapse into
// one. Shutdown is sticky: once posted, later posts are dropped.
type Mailbox struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  Command
	shutdown bool
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Post stores cmd as the pending command and wakes the worker. It reports
// whether cmd was accepted. Post never blocks on the worker.
func (m *Mailbox) Post(cmd Command) bool {
	if cmd == None {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return false
	}
	m.pending = cmd
	if cmd == Shutdown {
		m.shutdown = true
	}
	m.cond.Signal()
	return true
}

// Wait blocks until a command is pending, then takes it and empties the
// slot.
func (m *Mailbox) Wait() Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.pending == None {
		m.cond.Wait()
	}
	cmd := m.pending
	m.pending = None
	return cmd
}

// Pending returns the command waiting in the slot without taking it.
func (m *Mailbox) Pending() Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}
