// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package multisurface

import (
	"log/slog"

	"github.com/gogpu/gg"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/multisurface/compositor"
	"github.com/gogpu/multisurface/content"
)

// Option configures a Multiplexer during creation.
//
// Example:
//
//	m, err := multisurface.New(device, queue,
//	    multisurface.WithAtlasSize(4096, 4096),
//	    multisurface.WithPresentMode(gputypes.PresentModeFifo),
//	)
type Option func(*options)

type options struct {
	compositor    []compositor.Option
	surfaceFormat gputypes.TextureFormat
	text          []content.TextOption
	content       content.Renderer
	onFatal       func(error)
	logger        *slog.Logger
}

// WithAtlasSize sets the size of the shared atlas texture. The default is
// 2048x2560. All surfaces rendered in one frame must fit in it together.
func WithAtlasSize(width, height int) Option {
	return func(o *options) {
		o.compositor = append(o.compositor, compositor.WithAtlasSize(width, height))
	}
}

// WithSurfaceFormat sets the output format of surfaces registered with
// RegisterSurface. The default is BGRA8Unorm.
func WithSurfaceFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.surfaceFormat = f
	}
}

// WithPresentMode sets the present mode surfaces are configured with.
// The default is Mailbox.
func WithPresentMode(m gputypes.PresentMode) Option {
	return func(o *options) {
		o.compositor = append(o.compositor, compositor.WithPresentMode(m))
	}
}

// WithBackground sets the color the atlas is cleared to before content is
// drawn. The default is white.
func WithBackground(c gg.RGBA) Option {
	return func(o *options) {
		o.compositor = append(o.compositor, compositor.WithBackground(c))
	}
}

// WithContentRenderer replaces the built-in content renderers. Use a
// content.Dispatcher to add kinds while keeping the defaults.
func WithContentRenderer(r content.Renderer) Option {
	return func(o *options) {
		o.content = r
	}
}

// WithSceneRenderer replaces the renderer that draws the combined scene
// into the atlas. The default rasterizes on the CPU with gg and uploads the
// result.
func WithSceneRenderer(r compositor.SceneRenderer) Option {
	return func(o *options) {
		o.compositor = append(o.compositor, compositor.WithSceneRenderer(r))
	}
}

// WithFont sets the font used for text content. A variable font with a wght
// axis honors every weight. Ignored when WithContentRenderer is given.
func WithFont(ttf []byte) Option {
	return func(o *options) {
		o.text = append(o.text, content.WithFont(ttf))
	}
}

// WithTextOptions passes options to the built-in text renderer.
// Ignored when WithContentRenderer is given.
func WithTextOptions(opts ...content.TextOption) Option {
	return func(o *options) {
		o.text = append(o.text, opts...)
	}
}

// WithFatalHandler sets a function called once, on the render goroutine,
// when the device is lost or a frame cannot be submitted, and the
// multiplexer stops.
func WithFatalHandler(fn func(error)) Option {
	return func(o *options) {
		o.onFatal = fn
	}
}

// WithLogger sets the package logger, as SetLogger does.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
