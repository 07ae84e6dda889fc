// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package surface keeps track of the presentation targets a multiplexer
// renders into.
//
// Each registered surface owns one hal.Surface handle, a pixel size, an
// output format and a content Descriptor. The Registry is the single source
// of truth for that state: caller goroutines mutate it, and the render worker
// reads it through Snapshot, which copies entries out under the lock so that
// no GPU work ever runs while the lock is held.
//
// # Content
//
// A Descriptor is one of:
//
//   - Unset: renders nothing (the state of a freshly registered surface)
//   - Parametrized: text with a size and a variable-font weight
//   - Solid: a single fill color
//
// Parametrized content can be edited in place with UpdateText and
// UpdateParameters; any content can be replaced with Update.
//
// # Dirty set
//
// MarkDirty records which surfaces need a new frame; TakeDirty hands them to
// the renderer in the order they were first marked and clears the set.
//
// # Handle ownership
//
// Deregister removes the entry immediately but does not touch the handle.
// The handle is parked in a retired list that the render worker drains with
// TakeRetired and releases on its own goroutine.
package surface
