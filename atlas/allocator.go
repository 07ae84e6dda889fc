// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package atlas

import (
	"errors"
	"fmt"
	"slices"
)

// Allocation errors.
var (
	// ErrCapacityExceeded is returned when the requests cannot all be placed
	// inside the atlas bounds.
	ErrCapacityExceeded = errors.New("atlas: capacity exceeded")

	// ErrInvalidSize is returned for requests with a non-positive dimension,
	// and by New for a non-positive atlas size.
	ErrInvalidSize = errors.New("atlas: invalid size")

	// ErrDuplicateKey is returned when two requests share a key.
	ErrDuplicateKey = errors.New("atlas: duplicate request key")
)

// CapacityError describes the request that could not be placed.
// It unwraps to ErrCapacityExceeded.
type CapacityError struct {
	Key         uint64
	Width       int
	Height      int
	AtlasWidth  int
	AtlasHeight int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("atlas: capacity exceeded: request %d (%dx%d) does not fit %dx%d atlas",
		e.Key, e.Width, e.Height, e.AtlasWidth, e.AtlasHeight)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// Request asks for a Width x Height region identified by Key.
type Request struct {
	Key    uint64
	Width  int
	Height int
}

// Placement is a request key together with the region assigned to it.
type Placement struct {
	Key uint64
	Region
}

// Layout is the result of one Allocate call. Placements are in request order.
type Layout struct {
	Width      int
	Height     int
	Placements []Placement

	index map[uint64]int
}

// Lookup returns the region assigned to key.
func (l Layout) Lookup(key uint64) (Region, bool) {
	i, ok := l.index[key]
	if !ok {
		return Region{}, false
	}
	return l.Placements[i].Region, true
}

// Len returns the number of placements.
func (l Layout) Len() int { return len(l.Placements) }

// Extent returns the smallest width and height, anchored at the origin,
// that cover every placement. Uploads of the atlas contents only need
// this much of the texture.
func (l Layout) Extent() (width, height int) {
	for _, p := range l.Placements {
		width = max(width, p.Right())
		height = max(height, p.Bottom())
	}
	return width, height
}

// Utilization returns the fraction of the atlas area covered by placements.
func (l Layout) Utilization() float64 {
	if l.Width <= 0 || l.Height <= 0 {
		return 0
	}
	used := 0
	for _, p := range l.Placements {
		used += p.Area()
	}
	return float64(used) / float64(l.Width*l.Height)
}

// freeRect is one node of the free-list arena.
type freeRect struct {
	Region
	// seq orders nodes by the time they entered the free list.
	seq uint64
}

// Allocator is a best-fit guillotine packer for a fixed-size atlas.
//
// Allocate does not depend on previous calls; the Allocator only keeps its
// arena around so that per-frame packing does not reallocate. An Allocator
// is not safe for concurrent use.
type Allocator struct {
	width  int
	height int

	// nodes is the arena; free holds indices of live nodes in insertion order.
	nodes []freeRect
	free  []int
	spare []int
	seq   uint64
}

// New creates an allocator for a width x height atlas.
// It panics if either dimension is not positive.
func New(width, height int) *Allocator {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("atlas: invalid atlas size %dx%d", width, height))
	}
	return &Allocator{width: width, height: height}
}

// Size returns the atlas dimensions.
func (a *Allocator) Size() (width, height int) {
	return a.width, a.height
}

// Pack is a convenience wrapper around New(width, height).Allocate(reqs).
func Pack(width, height int, reqs []Request) (Layout, error) {
	if width <= 0 || height <= 0 {
		return Layout{}, fmt.Errorf("%w: atlas %dx%d", ErrInvalidSize, width, height)
	}
	return New(width, height).Allocate(reqs)
}

// Allocate places every request inside the atlas, in order.
//
// On failure the returned Layout is empty: a request set is either placed
// in full or not at all.
func (a *Allocator) Allocate(reqs []Request) (Layout, error) {
	a.reset()

	layout := Layout{
		Width:      a.width,
		Height:     a.height,
		Placements: make([]Placement, 0, len(reqs)),
		index:      make(map[uint64]int, len(reqs)),
	}

	for _, req := range reqs {
		if req.Width <= 0 || req.Height <= 0 {
			return Layout{}, fmt.Errorf("%w: request %d is %dx%d", ErrInvalidSize, req.Key, req.Width, req.Height)
		}
		if _, dup := layout.index[req.Key]; dup {
			return Layout{}, fmt.Errorf("%w: %d", ErrDuplicateKey, req.Key)
		}

		region, ok := a.place(req.Width, req.Height)
		if !ok {
			return Layout{}, &CapacityError{
				Key:         req.Key,
				Width:       req.Width,
				Height:      req.Height,
				AtlasWidth:  a.width,
				AtlasHeight: a.height,
			}
		}

		layout.index[req.Key] = len(layout.Placements)
		layout.Placements = append(layout.Placements, Placement{Key: req.Key, Region: region})
	}

	return layout, nil
}

// reset empties the arena and seeds it with the whole atlas.
func (a *Allocator) reset() {
	a.nodes = a.nodes[:0]
	a.free = a.free[:0]
	a.spare = a.spare[:0]
	a.seq = 0
	a.push(Region{Width: a.width, Height: a.height})
}

// push adds a region to the free list, reusing a spare arena slot if any.
func (a *Allocator) push(r Region) {
	if !r.IsValid() {
		return
	}
	node := freeRect{Region: r, seq: a.seq}
	a.seq++

	var idx int
	if n := len(a.spare); n > 0 {
		idx = a.spare[n-1]
		a.spare = a.spare[:n-1]
		a.nodes[idx] = node
	} else {
		idx = len(a.nodes)
		a.nodes = append(a.nodes, node)
	}
	a.free = append(a.free, idx)
}

// place finds the best-fitting free rectangle for w x h, carves the request
// out of its top-left corner and returns the remainder to the free list.
func (a *Allocator) place(w, h int) (Region, bool) {
	best := -1
	bestWaste := 0
	var bestSeq uint64
	for pos, idx := range a.free {
		n := a.nodes[idx]
		if n.Width < w || n.Height < h {
			continue
		}
		waste := n.Area() - w*h
		if best < 0 || waste < bestWaste || (waste == bestWaste && n.seq < bestSeq) {
			best, bestWaste, bestSeq = pos, waste, n.seq
		}
	}
	if best < 0 {
		return Region{}, false
	}

	idx := a.free[best]
	host := a.nodes[idx].Region
	a.free = slices.Delete(a.free, best, best+1)
	a.spare = append(a.spare, idx)

	right, bottom := split(host, w, h)
	a.push(right)
	a.push(bottom)

	return Region{X: host.X, Y: host.Y, Width: w, Height: h}, true
}

// split cuts host along the axis with the shorter leftover, so the larger
// leftover stays in one piece.
func split(host Region, w, h int) (right, bottom Region) {
	dw := host.Width - w
	dh := host.Height - h
	if dw < dh {
		right = Region{X: host.X + w, Y: host.Y, Width: dw, Height: h}
		bottom = Region{X: host.X, Y: host.Y + h, Width: host.Width, Height: dh}
		return right, bottom
	}
	right = Region{X: host.X + w, Y: host.Y, Width: dw, Height: host.Height}
	bottom = Region{X: host.X, Y: host.Y + h, Width: w, Height: dh}
	return right, bottom
}
