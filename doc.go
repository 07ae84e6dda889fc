// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package multisurface renders many small presentation surfaces through a
// single GPU device.
//
// # Overview
//
// Each surface (a widget, an overlay, a status panel) registers a
// presentation handle and a content descriptor. When a render is requested,
// the content of every dirty surface is drawn into one shared atlas texture
// in one pass, then each surface's region is copied into its own swapchain
// texture. A frame costs one atlas pass, one blit per surface, one queue
// submission and one present per surface, however many surfaces there are.
//
// # Quick Start
//
//	m, err := multisurface.New(device, queue)
//	if err != nil {
//	    return err
//	}
//	defer func() {
//	    m.Shutdown()
//	    _ = m.Wait()
//	}()
//
//	_ = m.RegisterSurface(1, clockSurface, 200, 60)
//	_ = m.UpdateContent(1, surface.Parametrized{Text: "12:30", Size: 32, Weight: 400})
//	m.RequestRender(1)
//
// # Threading
//
// All Multiplexer methods may be called from any goroutine and none of them
// waits for the GPU. Rendering happens on one goroutine owned by the
// multiplexer. Render requests are coalesced: any number of RequestRender
// calls made while a frame is pending produce a single frame, and that frame
// uses the content current when it starts, including updates made after the
// request.
//
// # Errors
//
// Registration and update errors are returned synchronously. Frame errors
// are not: a frame whose surfaces do not fit the atlas is dropped and logged
// (ErrCapacityExceeded), and a surface that cannot provide a swapchain
// texture is skipped for that frame (ErrSurfaceAcquisitionFailed). Losing
// the device or failing to submit a frame stops the render goroutine; Wait
// returns ErrDeviceLost or ErrSubmitFailed and the handler set with
// WithFatalHandler is called.
//
// # Packages
//
//   - atlas: packs surface rectangles into the atlas
//   - surface: the registry of surfaces and their content
//   - content: turns content descriptors into gg scenes
//   - compositor: draws one frame on the GPU
//   - scheduler: the render goroutine and request coalescing
//
// # Logging
//
// multisurface is silent by default. SetLogger enables structured logging
// with log/slog for the package and all sub-packages.
package multisurface
