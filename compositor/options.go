// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"runtime"

	"github.com/gogpu/gg"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/multisurface/content"
)

// Default atlas dimensions.
const (
	DefaultAtlasWidth  = 2048
	DefaultAtlasHeight = 2560
)

// Option configures a Compositor.
type Option func(*config)

type config struct {
	atlasWidth    int
	atlasHeight   int
	presentMode   gputypes.PresentMode
	background    gg.RGBA
	content       content.Renderer
	sceneRenderer SceneRenderer
	workers       int
}

func defaultConfig() config {
	return config{
		atlasWidth:  DefaultAtlasWidth,
		atlasHeight: DefaultAtlasHeight,
		presentMode: gputypes.PresentModeMailbox,
		background:  gg.White,
		workers:     runtime.GOMAXPROCS(0),
	}
}

// WithAtlasSize sets the atlas texture size. Surfaces that do not fit
// together in one atlas of this size cannot be rendered in the same frame.
func WithAtlasSize(width, height int) Option {
	return func(c *config) {
		if width > 0 && height > 0 {
			c.atlasWidth = width
			c.atlasHeight = height
		}
	}
}

// WithPresentMode sets the present mode surfaces are configured with.
// The default is Mailbox.
func WithPresentMode(m gputypes.PresentMode) Option {
	return func(c *config) {
		if m != gputypes.PresentModeUndefined {
			c.presentMode = m
		}
	}
}

// WithBackground sets the color the atlas is cleared to before content is
// drawn. The default is white.
func WithBackground(color gg.RGBA) Option {
	return func(c *config) {
		c.background = color
	}
}

// WithContentRenderer sets the renderer that turns descriptors into scenes.
// The default is content.NewDispatcher with its default fonts.
func WithContentRenderer(r content.Renderer) Option {
	return func(c *config) {
		c.content = r
	}
}

// WithSceneRenderer replaces the renderer that draws the combined scene into
// the atlas. The default is a RasterRenderer.
func WithSceneRenderer(r SceneRenderer) Option {
	return func(c *config) {
		c.sceneRenderer = r
	}
}

// WithWorkers limits how many content scenes are built concurrently.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}
