// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package content

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	ot "github.com/go-text/typesetting/font/opentype"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/scene"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/multisurface/surface"
)

// Text layout defaults.
const (
	// DefaultLayoutWidth is the width, in pixels, at which lines are broken.
	DefaultLayoutWidth = 500

	// DefaultLineHeight is the line advance as a multiple of the font size.
	DefaultLineHeight = 1.3

	// boldThreshold selects the bold fallback face for fonts without a wght axis.
	boldThreshold = 600
)

var wghtTag = ot.MustNewTag("wght")

// TextOption configures a TextRenderer.
type TextOption func(*textConfig)

type textConfig struct {
	regular     []byte
	bold        []byte
	layoutWidth float32
	lineHeight  float32
	color       gg.RGBA
}

// WithFont sets the font used for text content. A variable font with a
// wght axis gets the requested weight applied directly; any other font is
// drawn as is, and a bold face (if one was given with WithBoldFont) is used
// for heavy weights. The default is Go Regular with Go Bold.
func WithFont(ttf []byte) TextOption {
	return func(c *textConfig) {
		c.regular = ttf
		c.bold = nil
	}
}

// WithBoldFont sets the face used for weights of 600 and above when the
// main font is not variable.
func WithBoldFont(ttf []byte) TextOption {
	return func(c *textConfig) {
		c.bold = ttf
	}
}

// WithLayoutWidth sets the width at which lines are broken.
func WithLayoutWidth(px float32) TextOption {
	return func(c *textConfig) {
		if px > 0 {
			c.layoutWidth = px
		}
	}
}

// WithLineHeight sets the line advance as a multiple of the font size.
func WithLineHeight(factor float32) TextOption {
	return func(c *textConfig) {
		if factor > 0 {
			c.lineHeight = factor
		}
	}
}

// WithTextColor sets the text color. The default is black.
func WithTextColor(c gg.RGBA) TextOption {
	return func(cfg *textConfig) {
		cfg.color = c
	}
}

// TextRenderer lays out Parametrized content: the text is shaped with
// HarfBuzz, broken into lines at the layout width and filled as glyph
// outlines.
//
// TextRenderer is safe for concurrent use. Parsed fonts are shared; a
// font.Face and a shaper are taken per call.
type TextRenderer struct {
	regular *font.Font
	bold    *font.Font

	layoutWidth float32
	lineHeight  float32
	brush       scene.Brush

	// shaperPool pools HarfbuzzShaper instances, which are not safe for
	// concurrent use.
	shaperPool sync.Pool
}

var _ Renderer = (*TextRenderer)(nil)

// NewTextRenderer parses the configured fonts and returns a renderer.
func NewTextRenderer(opts ...TextOption) (*TextRenderer, error) {
	cfg := textConfig{
		regular:     goregular.TTF,
		bold:        gobold.TTF,
		layoutWidth: DefaultLayoutWidth,
		lineHeight:  DefaultLineHeight,
		color:       gg.Black,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	regular, err := parseFont(cfg.regular)
	if err != nil {
		return nil, fmt.Errorf("content: parse font: %w", err)
	}
	var bold *font.Font
	if cfg.bold != nil {
		if bold, err = parseFont(cfg.bold); err != nil {
			return nil, fmt.Errorf("content: parse bold font: %w", err)
		}
	}

	return &TextRenderer{
		regular:     regular,
		bold:        bold,
		layoutWidth: cfg.layoutWidth,
		lineHeight:  cfg.lineHeight,
		brush:       scene.SolidBrush(cfg.color),
		shaperPool: sync.Pool{
			New: func() any { return &shaping.HarfbuzzShaper{} },
		},
	}, nil
}

func parseFont(ttf []byte) (*font.Font, error) {
	face, err := font.ParseTTF(bytes.NewReader(ttf))
	if err != nil {
		return nil, err
	}
	return face.Font, nil
}

// Render implements Renderer.
func (t *TextRenderer) Render(d surface.Descriptor, _, _ int) (*scene.Scene, error) {
	p, ok := d.(surface.Parametrized)
	if !ok {
		return nil, fmt.Errorf("%w: text renderer got %s", ErrUnsupportedKind, d.Kind())
	}

	s := scene.NewScene()
	if p.Text == "" || p.Size <= 0 {
		return s, nil
	}

	face := t.face(p.Weight)
	path := scene.NewPath()
	t.layout(path, face, norm.NFC.String(p.Text), p.Size)
	if !path.IsEmpty() {
		s.Fill(scene.FillNonZero, scene.IdentityAffine(), t.brush, scene.NewPathShape(path))
	}
	return s, nil
}

// face returns a face for the requested weight: the wght axis of a variable
// font, or the bold fallback for static fonts.
func (t *TextRenderer) face(weight float32) *font.Face {
	face := font.NewFace(t.regular)
	if weight <= 0 {
		return face
	}
	face.SetVariations([]font.Variation{{Tag: wghtTag, Value: weight}})
	if len(face.Coords()) == 0 && weight >= boldThreshold && t.bold != nil {
		return font.NewFace(t.bold)
	}
	return face
}

// layout shapes every paragraph, breaks it into lines and appends the glyph
// outlines to path.
func (t *TextRenderer) layout(path *scene.Path, face *font.Face, text string, size float32) {
	advance := size * t.lineHeight
	top := float32(0)

	for _, para := range strings.Split(text, "\n") {
		runes := []rune(para)
		if len(runes) == 0 {
			top += advance
			continue
		}

		out := t.shape(face, runes, size)
		ascent := fixedToFloat(out.LineBounds.Ascent)
		descent := fixedToFloat(out.LineBounds.Descent)
		if descent < 0 {
			descent = -descent
		}
		halfLeading := (advance - (ascent + descent)) / 2

		for _, line := range breakLines(out.Glyphs, runes, t.layoutWidth) {
			baseline := top + halfLeading + ascent
			t.drawLine(path, face, out.Glyphs[line.start:line.end], baseline, size)
			top += advance
		}
	}
}

func (t *TextRenderer) shape(face *font.Face, runes []rune, size float32) shaping.Output {
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      face,
		Size:      floatToFixed(size),
		Script:    detectScript(runes),
		Language:  language.NewLanguage("en"),
	}
	hb := t.shaperPool.Get().(*shaping.HarfbuzzShaper)
	out := hb.Shape(input)
	t.shaperPool.Put(hb)
	return out
}

// drawLine appends the outlines of glyphs, pen starting at x = 0.
func (t *TextRenderer) drawLine(path *scene.Path, face *font.Face, glyphs []shaping.Glyph, baseline, size float32) {
	scale := size / float32(face.Upem())
	x := float32(0)
	for _, g := range glyphs {
		gx := x + fixedToFloat(g.XOffset)
		gy := baseline - fixedToFloat(g.YOffset)
		if outline, ok := face.GlyphData(g.GlyphID).(font.GlyphOutline); ok {
			appendOutline(path, outline, gx, gy, scale)
		}
		x += fixedToFloat(g.Advance)
	}
}

// appendOutline converts a glyph outline (font units, y up) into path
// commands in pixels with y down, placed at (x, y).
func appendOutline(path *scene.Path, outline font.GlyphOutline, x, y, scale float32) {
	pt := func(p font.SegmentPoint) (float32, float32) {
		return x + p.X*scale, y - p.Y*scale
	}
	open := false
	for _, seg := range outline.Segments {
		switch seg.Op {
		case ot.SegmentOpMoveTo:
			if open {
				path.Close()
			}
			px, py := pt(seg.Args[0])
			path.MoveTo(px, py)
			open = true
		case ot.SegmentOpLineTo:
			px, py := pt(seg.Args[0])
			path.LineTo(px, py)
		case ot.SegmentOpQuadTo:
			cx, cy := pt(seg.Args[0])
			px, py := pt(seg.Args[1])
			path.QuadTo(cx, cy, px, py)
		case ot.SegmentOpCubeTo:
			c1x, c1y := pt(seg.Args[0])
			c2x, c2y := pt(seg.Args[1])
			px, py := pt(seg.Args[2])
			path.CubicTo(c1x, c1y, c2x, c2y, px, py)
		}
	}
	if open {
		path.Close()
	}
}

// lineSpan is a half-open range of glyph indices forming one line.
type lineSpan struct {
	start, end int
}

// breakLines splits shaped glyphs into lines no wider than width, breaking
// after whitespace. A word wider than width gets a line of its own.
func breakLines(glyphs []shaping.Glyph, runes []rune, width float32) []lineSpan {
	if len(glyphs) == 0 {
		return nil
	}

	var lines []lineSpan
	start := 0
	lastBreak := -1 // index of the first glyph after the latest whitespace
	x := float32(0)
	for i, g := range glyphs {
		adv := fixedToFloat(g.Advance)
		if x+adv > width && i > start && lastBreak > start {
			lines = append(lines, lineSpan{start, lastBreak})
			x = lineWidth(glyphs[lastBreak:i])
			start = lastBreak
			lastBreak = -1
		}
		x += adv
		if isBreakRune(runes, g.TextIndex()) {
			lastBreak = i + 1
		}
	}
	return append(lines, lineSpan{start, len(glyphs)})
}

func lineWidth(glyphs []shaping.Glyph) float32 {
	var w float32
	for _, g := range glyphs {
		w += fixedToFloat(g.Advance)
	}
	return w
}

func isBreakRune(runes []rune, idx int) bool {
	if idx < 0 || idx >= len(runes) {
		return false
	}
	switch runes[idx] {
	case ' ', '\t', '\u3000':
		return true
	}
	return false
}

// detectScript returns the script of the first non-space rune.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' || r == '\r' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

func floatToFixed(v float32) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
