// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Registry errors.
var (
	// ErrDuplicateID is returned when registering an id that is already live.
	ErrDuplicateID = errors.New("surface: duplicate surface id")

	// ErrDuplicateHandle is returned when a presentation handle is already
	// owned by another live entry.
	ErrDuplicateHandle = errors.New("surface: presentation handle already registered")

	// ErrUnknownSurface is returned for operations on an id that is not registered.
	ErrUnknownSurface = errors.New("surface: unknown surface id")

	// ErrContentKind is returned by parameter updates on a surface whose
	// content is not Parametrized.
	ErrContentKind = errors.New("surface: content kind does not support this update")

	// ErrInvalidSize is returned for non-positive surface dimensions.
	ErrInvalidSize = errors.New("surface: invalid size")

	// ErrNilHandle is returned when registering without a presentation handle.
	ErrNilHandle = errors.New("surface: nil presentation handle")

	// ErrClosed is returned when registering after Close.
	ErrClosed = errors.New("surface: registry closed")
)

// DuplicateIDError reports the id of a rejected registration.
// It unwraps to ErrDuplicateID.
type DuplicateIDError struct {
	ID ID
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("surface: duplicate surface id %d", e.ID)
}

func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// UnknownSurfaceError reports the id that was not found.
// It unwraps to ErrUnknownSurface.
type UnknownSurfaceError struct {
	ID ID
}

func (e *UnknownSurfaceError) Error() string {
	return fmt.Sprintf("surface: unknown surface id %d", e.ID)
}

func (e *UnknownSurfaceError) Unwrap() error { return ErrUnknownSurface }

// ID is a caller-assigned surface identifier. An id may be reused after
// Deregister.
type ID uint64

// Entry is a copy of one registered surface, as seen by a render pass.
type Entry struct {
	ID ID

	// Handle is the presentation target. The registry owns it from
	// registration until Deregister.
	Handle hal.Surface

	Width  int
	Height int

	// Format is the texture format the handle is configured with.
	Format gputypes.TextureFormat

	Content Descriptor

	// Generation distinguishes registrations that reused the same id.
	Generation uint64
}

// Registry holds the live surfaces, the set of surfaces marked dirty since
// the last render, and handles waiting to be released.
//
// All methods are safe for concurrent use. Critical sections only copy or
// assign fields; no GPU calls are made while the lock is held.
type Registry struct {
	mu      sync.RWMutex
	entries map[ID]*Entry
	handles map[hal.Surface]ID

	// dirty keeps first-marked order, dirtySet answers membership.
	dirty    []ID
	dirtySet map[ID]struct{}

	retired []hal.Surface

	format     gputypes.TextureFormat
	generation uint64
	closed     bool
}

// NewRegistry creates an empty registry. Surfaces registered without an
// explicit format use defaultFormat; TextureFormatUndefined selects BGRA8Unorm.
func NewRegistry(defaultFormat gputypes.TextureFormat) *Registry {
	if defaultFormat == gputypes.TextureFormatUndefined {
		defaultFormat = gputypes.TextureFormatBGRA8Unorm
	}
	return &Registry{
		entries:  make(map[ID]*Entry),
		handles:  make(map[hal.Surface]ID),
		dirtySet: make(map[ID]struct{}),
		format:   defaultFormat,
	}
}

// DefaultFormat returns the format used by Register.
func (r *Registry) DefaultFormat() gputypes.TextureFormat {
	return r.format
}

// Register adds a surface with Unset content in the default format.
func (r *Registry) Register(id ID, handle hal.Surface, width, height int) error {
	return r.RegisterWithFormat(id, handle, width, height, r.format)
}

// RegisterWithFormat adds a surface with Unset content in the given format.
func (r *Registry) RegisterWithFormat(id ID, handle hal.Surface, width, height int, format gputypes.TextureFormat) error {
	if handle == nil {
		return ErrNilHandle
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if format == gputypes.TextureFormatUndefined {
		format = r.format
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, ok := r.entries[id]; ok {
		return &DuplicateIDError{ID: id}
	}
	if owner, ok := r.handles[handle]; ok {
		return fmt.Errorf("%w: owned by surface %d", ErrDuplicateHandle, owner)
	}
	// A retired handle is about to be destroyed by the render worker.
	if slices.Contains(r.retired, handle) {
		return fmt.Errorf("%w: waiting for release", ErrDuplicateHandle)
	}

	r.generation++
	r.entries[id] = &Entry{
		ID:         id,
		Handle:     handle,
		Width:      width,
		Height:     height,
		Format:     format,
		Content:    Unset{},
		Generation: r.generation,
	}
	r.handles[handle] = id
	return nil
}

// Update replaces the content descriptor of a surface. A nil descriptor
// resets the surface to Unset.
func (r *Registry) Update(id ID, d Descriptor) error {
	if d == nil {
		d = Unset{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return &UnknownSurfaceError{ID: id}
	}
	e.Content = d
	return nil
}

// UpdateText replaces the text of a Parametrized surface.
func (r *Registry) UpdateText(id ID, text string) error {
	return r.updateParametrized(id, func(p *Parametrized) { p.Text = text })
}

// UpdateParameters replaces the size and weight of a Parametrized surface.
func (r *Registry) UpdateParameters(id ID, size, weight float32) error {
	return r.updateParametrized(id, func(p *Parametrized) {
		p.Size = size
		p.Weight = weight
	})
}

func (r *Registry) updateParametrized(id ID, fn func(*Parametrized)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return &UnknownSurfaceError{ID: id}
	}
	p, ok := e.Content.(Parametrized)
	if !ok {
		return fmt.Errorf("%w: surface %d has %s content", ErrContentKind, id, e.Content.Kind())
	}
	fn(&p)
	e.Content = p
	return nil
}

// Resize changes the pixel size of a surface. The handle is reconfigured
// by the next render that includes the surface.
func (r *Registry) Resize(id ID, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return &UnknownSurfaceError{ID: id}
	}
	e.Width = width
	e.Height = height
	return nil
}

// Deregister removes a surface and queues its handle for release.
// It reports whether the id was registered.
func (r *Registry) Deregister(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	delete(r.entries, id)
	delete(r.handles, e.Handle)
	r.retired = append(r.retired, e.Handle)

	if _, dirty := r.dirtySet[id]; dirty {
		delete(r.dirtySet, id)
		r.dirty = slices.DeleteFunc(r.dirty, func(d ID) bool { return d == id })
	}
	return true
}

// Lookup returns a copy of the entry for id.
func (r *Registry) Lookup(id ID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Snapshot copies the entries for ids, preserving order. Ids that are no
// longer registered are returned in missing.
func (r *Registry) Snapshot(ids []ID) (entries []Entry, missing []ID) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries = make([]Entry, 0, len(ids))
	for _, id := range ids {
		e, ok := r.entries[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		entries = append(entries, *e)
	}
	return entries, missing
}

// MarkDirty adds ids to the dirty set. Unknown ids are ignored; the
// order in which ids are first marked is kept.
func (r *Registry) MarkDirty(ids ...ID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if _, ok := r.entries[id]; !ok {
			continue
		}
		if _, ok := r.dirtySet[id]; ok {
			continue
		}
		r.dirtySet[id] = struct{}{}
		r.dirty = append(r.dirty, id)
	}
}

// TakeDirty returns the dirty ids in first-marked order and clears the set.
func (r *Registry) TakeDirty() []ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.dirty
	r.dirty = nil
	clear(r.dirtySet)
	return ids
}

// TakeRetired returns the handles of deregistered surfaces that have not
// been released yet, and forgets them.
func (r *Registry) TakeRetired() []hal.Surface {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := r.retired
	r.retired = nil
	return handles
}

// Len returns the number of registered surfaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedIDsLocked()
}

// Close deregisters every surface and returns all handles still owned by
// the registry, including retired ones. Later registrations fail with
// ErrClosed.
func (r *Registry) Close() []hal.Surface {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	handles := r.retired
	r.retired = nil
	for _, id := range r.sortedIDsLocked() {
		handles = append(handles, r.entries[id].Handle)
	}
	clear(r.entries)
	clear(r.handles)
	clear(r.dirtySet)
	r.dirty = nil
	return handles
}

func (r *Registry) sortedIDsLocked() []ID {
	ids := make([]ID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
