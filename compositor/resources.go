// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// AtlasFormat is the pixel format of the atlas texture.
const AtlasFormat = gputypes.TextureFormatRGBA8Unorm

// resources are the GPU objects shared by every frame. They are created on
// the first non-empty frame and live until Close.
type resources struct {
	device hal.Device
	width  int
	height int

	texture hal.Texture
	view    hal.TextureView
}

func (r *resources) ready() bool {
	return r.texture != nil
}

// ensure creates the atlas texture and its view if they do not exist yet.
func (r *resources) ensure() error {
	if r.ready() {
		return nil
	}

	size := hal.Extent3D{
		Width:              uint32(r.width),  //nolint:gosec // validated in New
		Height:             uint32(r.height), //nolint:gosec // validated in New
		DepthOrArrayLayers: 1,
	}
	tex, err := r.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "multisurface_atlas",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        AtlasFormat,
		Usage: gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopyDst |
			gputypes.TextureUsageStorageBinding |
			gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("compositor: create atlas texture: %w", err)
	}

	view, err := r.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "multisurface_atlas_view",
		Format:        AtlasFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		r.device.DestroyTexture(tex)
		return fmt.Errorf("compositor: create atlas view: %w", err)
	}

	r.texture = tex
	r.view = view
	slogger().Info("compositor: atlas created", "width", r.width, "height", r.height, "format", AtlasFormat)
	return nil
}

func (r *resources) destroy() {
	if r.view != nil {
		r.device.DestroyTextureView(r.view)
		r.view = nil
	}
	if r.texture != nil {
		r.device.DestroyTexture(r.texture)
		r.texture = nil
	}
}
