// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package compositor renders a set of surfaces with one GPU submission.
//
// A frame runs in a fixed order:
//
//  1. An empty set returns immediately.
//  2. The atlas texture is created on first use.
//  3. All surfaces are packed into the atlas. If they do not fit the frame
//     is abandoned with atlas.ErrCapacityExceeded before any GPU work.
//  4. Content scenes are built and combined into one scene, each clipped to
//     its own rectangle and translated to its atlas region.
//  5. The combined scene is drawn into the atlas once. The default
//     SceneRenderer, RasterRenderer, rasterizes it on the CPU with gg and
//     uploads the drawn extent with a single texture write; a GPU scene
//     renderer can be plugged in with WithSceneRenderer.
//  6. Each surface acquires its next texture and gets its region copied in
//     by the blit pipeline cached for its format. A surface whose texture
//     cannot be acquired is logged and skipped.
//  7. Everything is submitted once, every acquired texture is presented and
//     the queue is polled without blocking.
//
// A Compositor is not safe for concurrent use. It is meant to be driven by a
// single render goroutine, which is also the only goroutine that touches the
// presentation handles. Stats is the exception and may be read from any
// goroutine.
package compositor
