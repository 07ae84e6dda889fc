// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package content

import (
	"fmt"

	"github.com/gogpu/gg/scene"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/multisurface/surface"
)

// Dispatcher selects a Renderer by descriptor kind.
// It is safe for concurrent use, including Register during rendering.
type Dispatcher struct {
	renderers *gpucontext.Registry[Renderer]
}

var _ Renderer = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher with renderers for the built-in kinds:
// Unset draws nothing, Solid fills the surface and Parametrized is laid out
// by a TextRenderer built from opts.
func NewDispatcher(opts ...TextOption) (*Dispatcher, error) {
	text, err := NewTextRenderer(opts...)
	if err != nil {
		return nil, err
	}

	d := NewEmptyDispatcher()
	d.Register(surface.KindUnset, Blank)
	d.Register(surface.KindSolid, SolidRenderer{})
	d.Register(surface.KindParametrized, text)
	return d, nil
}

// NewEmptyDispatcher creates a dispatcher with no renderers.
func NewEmptyDispatcher() *Dispatcher {
	return &Dispatcher{renderers: gpucontext.NewRegistry[Renderer]()}
}

// Register installs r for descriptors of the given kind, replacing any
// previous renderer for that kind.
func (d *Dispatcher) Register(kind string, r Renderer) {
	d.renderers.Register(kind, func() Renderer { return r })
}

// Kinds returns the kinds that have a renderer, in no particular order.
func (d *Dispatcher) Kinds() []string {
	return d.renderers.Available()
}

// Render implements Renderer. A nil descriptor renders as Unset.
func (d *Dispatcher) Render(desc surface.Descriptor, width, height int) (*scene.Scene, error) {
	if desc == nil {
		desc = surface.Unset{}
	}
	kind := desc.Kind()
	if !d.renderers.Has(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	return d.renderers.Get(kind).Render(desc, width, height)
}
