// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import (
	"fmt"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/scene"
	"github.com/gogpu/wgpu/hal"
)

// AtlasTarget is the atlas texture of one frame, handed to a SceneRenderer.
type AtlasTarget struct {
	Device  hal.Device
	Queue   hal.Queue
	Encoder hal.CommandEncoder // frame encoder, already recording
	Texture hal.Texture
	View    hal.TextureView

	// Width and Height are the size of the whole atlas texture.
	Width, Height int

	// Background is the color of atlas pixels no content covers.
	Background gg.RGBA
}

// SceneRenderer draws the combined frame scene into the atlas. Only the
// top-left width x height pixels are read back by the blits; the rest of the
// atlas may be left untouched.
type SceneRenderer interface {
	RenderScene(t AtlasTarget, s *scene.Scene, width, height int) error
	Close()
}

// RasterRenderer draws the scene on the CPU with the gg tile renderer and
// uploads the drawn pixels with a single texture write.
type RasterRenderer struct {
	renderer *scene.Renderer
	pixmap   *gg.Pixmap
	opts     []scene.RendererOption
}

var _ SceneRenderer = (*RasterRenderer)(nil)

// NewRasterRenderer creates a RasterRenderer. The options are passed to the
// underlying scene.Renderer.
func NewRasterRenderer(opts ...scene.RendererOption) *RasterRenderer {
	return &RasterRenderer{opts: opts}
}

// RenderScene implements SceneRenderer.
func (r *RasterRenderer) RenderScene(t AtlasTarget, s *scene.Scene, width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	if width > t.Width || height > t.Height {
		return fmt.Errorf("compositor: raster %dx%d exceeds atlas %dx%d", width, height, t.Width, t.Height)
	}
	w := uploadWidth(width, t.Width)
	r.ensure(w, height)

	r.pixmap.Clear(t.Background)
	if err := r.renderer.Render(r.pixmap, s); err != nil {
		return fmt.Errorf("compositor: rasterize atlas: %w", err)
	}

	err := t.Queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.Texture, MipLevel: 0},
		r.pixmap.Data(),
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(w * 4),  //nolint:gosec // bounded by atlas width
			RowsPerImage: uint32(height), //nolint:gosec // bounded by atlas height
		},
		&hal.Extent3D{Width: uint32(w), Height: uint32(height), DepthOrArrayLayers: 1}, //nolint:gosec // bounded by atlas size
	)
	if err != nil {
		return fmt.Errorf("compositor: upload atlas: %w", err)
	}
	return nil
}

func (r *RasterRenderer) ensure(width, height int) {
	if r.pixmap != nil && r.pixmap.Width() == width && r.pixmap.Height() == height {
		return
	}
	r.pixmap = gg.NewPixmap(width, height)
	if r.renderer == nil {
		r.renderer = scene.NewRenderer(width, height, r.opts...)
		return
	}
	r.renderer.Resize(width, height)
}

// Pixmap returns the pixels uploaded by the last RenderScene, or nil.
func (r *RasterRenderer) Pixmap() *gg.Pixmap {
	return r.pixmap
}

// Close implements SceneRenderer.
func (r *RasterRenderer) Close() {
	if r.renderer != nil {
		r.renderer.Close()
		r.renderer = nil
	}
	r.pixmap = nil
}

// rowAlignment is the texel granularity of upload rows. It gives a 256-byte
// pitch for 4-byte formats unless the row is capped at the atlas width;
// WriteTexture accepts any pitch.
const rowAlignment = 64

// uploadWidth rounds width up to the row alignment and caps it at the atlas
// width, which need not be a multiple of the alignment.
func uploadWidth(width, atlasWidth int) int {
	w := (width + rowAlignment - 1) &^ (rowAlignment - 1)
	return min(w, atlasWidth)
}
