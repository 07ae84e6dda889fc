// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

// retiredFrame holds the per-frame objects that must outlive the GPU work
// of one submission.
type retiredFrame struct {
	index   uint64
	release []func()
}

// collect releases the frames whose submission index has completed.
func (c *Compositor) collect(completed uint64) {
	n := 0
	for _, f := range c.inflight {
		if f.index <= completed {
			f.run()
			continue
		}
		c.inflight[n] = f
		n++
	}
	clear(c.inflight[n:])
	c.inflight = c.inflight[:n]
}

// collectAll releases every frame. The GPU must be idle.
func (c *Compositor) collectAll() {
	for _, f := range c.inflight {
		f.run()
	}
	c.inflight = nil
}

func (f retiredFrame) run() {
	for _, release := range f.release {
		release()
	}
}

// InFlight returns the number of submitted frames whose resources have not
// been released yet.
func (c *Compositor) InFlight() int {
	return len(c.inflight)
}
