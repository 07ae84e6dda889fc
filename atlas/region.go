// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package atlas

import "fmt"

// Region is a rectangle inside the atlas, in texels.
type Region struct {
	// X is the left edge of the region.
	X int
	// Y is the top edge of the region.
	Y int
	// Width is the region width.
	Width int
	// Height is the region height.
	Height int
}

// IsValid returns true if the region has a non-zero area.
func (r Region) IsValid() bool {
	return r.Width > 0 && r.Height > 0
}

// Right returns the exclusive right edge.
func (r Region) Right() int { return r.X + r.Width }

// Bottom returns the exclusive bottom edge.
func (r Region) Bottom() int { return r.Y + r.Height }

// Area returns Width*Height.
func (r Region) Area() int { return r.Width * r.Height }

// Contains returns true if the point (x, y) is inside the region.
func (r Region) Contains(x, y int) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}

// Overlaps reports whether r and o share at least one texel.
func (r Region) Overlaps(o Region) bool {
	if !r.IsValid() || !o.IsValid() {
		return false
	}
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Within reports whether r lies entirely inside a width x height area
// anchored at the origin.
func (r Region) Within(width, height int) bool {
	return r.X >= 0 && r.Y >= 0 && r.Right() <= width && r.Bottom() <= height
}

// String returns a string representation of the region.
func (r Region) String() string {
	return fmt.Sprintf("Region(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}
