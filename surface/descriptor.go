// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"fmt"

	"github.com/gogpu/gg"
)

// Content kinds reported by Descriptor.Kind.
const (
	KindUnset        = "unset"
	KindParametrized = "text"
	KindSolid        = "solid"
)

// Descriptor describes what a surface shows. It is a value: updating a
// surface's content replaces the descriptor, it never mutates a shared one.
//
// The set of descriptors is closed; see Unset, Parametrized and Solid.
type Descriptor interface {
	// Kind names the content kind; content renderers are selected by it.
	Kind() string

	descriptor()
}

// Unset renders nothing. A newly registered surface starts out Unset.
type Unset struct{}

// Kind implements Descriptor.
func (Unset) Kind() string { return KindUnset }

func (Unset) descriptor() {}

// Parametrized is text drawn with a variable font at a given size and weight.
type Parametrized struct {
	// Text is the string to lay out. Newlines force a line break.
	Text string
	// Size is the font size in pixels.
	Size float32
	// Weight is the font weight on the usual 100..1000 scale (400 regular, 700 bold).
	Weight float32
}

// Kind implements Descriptor.
func (Parametrized) Kind() string { return KindParametrized }

func (Parametrized) descriptor() {}

func (p Parametrized) String() string {
	return fmt.Sprintf("Parametrized(%q size=%g weight=%g)", p.Text, p.Size, p.Weight)
}

// Solid fills the whole surface with one color.
type Solid struct {
	Color gg.RGBA
}

// Kind implements Descriptor.
func (Solid) Kind() string { return KindSolid }

func (Solid) descriptor() {}
