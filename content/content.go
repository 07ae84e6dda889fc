// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package content turns surface content descriptors into drawable scenes.
//
// A Renderer is a pure function of a descriptor and a target size. The
// compositor calls renderers for several surfaces at once, so every
// Renderer must be safe for concurrent use.
//
// The Dispatcher routes each descriptor to the renderer registered for its
// kind. NewDispatcher installs renderers for all built-in kinds:
//
//	d, err := content.NewDispatcher()
//	s, err := d.Render(surface.Parametrized{Text: "12:30", Size: 96, Weight: 650}, 500, 200)
package content

import (
	"errors"

	"github.com/gogpu/gg/scene"

	"github.com/gogpu/multisurface/surface"
)

// ErrUnsupportedKind is returned when no renderer handles a descriptor kind.
var ErrUnsupportedKind = errors.New("content: unsupported content kind")

// Renderer produces the scene for one surface, in surface-local
// coordinates with the origin at the top-left corner.
type Renderer interface {
	Render(d surface.Descriptor, width, height int) (*scene.Scene, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(d surface.Descriptor, width, height int) (*scene.Scene, error)

// Render calls f(d, width, height).
func (f RendererFunc) Render(d surface.Descriptor, width, height int) (*scene.Scene, error) {
	return f(d, width, height)
}

// Blank renders every descriptor as an empty scene.
var Blank Renderer = RendererFunc(func(surface.Descriptor, int, int) (*scene.Scene, error) {
	return scene.NewScene(), nil
})
