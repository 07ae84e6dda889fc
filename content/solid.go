// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package content

import (
	"fmt"

	"github.com/gogpu/gg/scene"

	"github.com/gogpu/multisurface/surface"
)

// SolidRenderer fills the whole surface with the color of a Solid descriptor.
type SolidRenderer struct{}

var _ Renderer = SolidRenderer{}

// Render implements Renderer.
func (SolidRenderer) Render(d surface.Descriptor, width, height int) (*scene.Scene, error) {
	solid, ok := d.(surface.Solid)
	if !ok {
		return nil, fmt.Errorf("%w: solid renderer got %s", ErrUnsupportedKind, d.Kind())
	}
	s := scene.NewScene()
	s.Fill(scene.FillNonZero, scene.IdentityAffine(), scene.SolidBrush(solid.Color),
		scene.NewRectShape(0, 0, float32(width), float32(height)))
	return s, nil
}
