// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package atlas packs rectangular render targets into one fixed-size texture.
//
// The packer is a best-fit guillotine allocator. Each call to
// [Allocator.Allocate] starts from a single free rectangle covering the whole
// atlas, places requests in the order given, and splits the remainder of every
// chosen free rectangle into at most two new free rectangles. Nothing carries
// over between calls, so a layout is only meaningful for the frame it was
// computed for.
//
// Placement is deterministic: among free rectangles that fit a request, the
// one leaving the least unused area wins, and ties go to the rectangle that
// entered the free list first.
//
//	a := atlas.New(2048, 2560)
//	layout, err := a.Allocate([]atlas.Request{
//	    {Key: 1, Width: 100, Height: 50},
//	    {Key: 2, Width: 80, Height: 80},
//	})
//	if errors.Is(err, atlas.ErrCapacityExceeded) {
//	    // abandon the frame
//	}
//	r, _ := layout.Lookup(2)
package atlas
