// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package trace

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
)

// Colors of the levels when shown on a display.
var (
	HighColor = color.NRGBA{R: 0x20, G: 0xE0, B: 0x20, A: 255}
	LowColor  = color.NRGBA{R: 0x20, G: 0x20, B: 0x20, A: 255}
)

// Show draws the current level of every signal on d, one pixel per signal
// in declaration order. Signals past the width of d are not shown.
func (r *Recorder) Show(d display.Drawer) error {
	levels := r.Levels()
	b := d.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), 1))
	for i := 0; i < b.Dx(); i++ {
		c := LowColor
		if i < len(levels) && levels[i] {
			c = HighColor
		}
		img.SetNRGBA(i, 0, c)
	}
	return d.Draw(b, img, image.Point{})
}

// StripOpts holds the Strip configuration.
type StripOpts struct {
	// X is the number of pixels.
	X       int
	Palette *ansi256.Palette
	// W receives the escape sequences. It defaults to the colorable stdout.
	W io.Writer
}

// Strip is a one line display.Drawer rendered in a terminal with ANSI 256
// colors, one block per pixel. The line is redrawn in place.
type Strip struct {
	w       io.Writer
	l       int
	palette ansi256.Palette

	pixels []byte
	buf    bytes.Buffer
}

// NewStrip returns a Strip of opts.X pixels.
func NewStrip(opts *StripOpts) *Strip {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	w := opts.W
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	return &Strip{
		w:       w,
		l:       opts.X,
		palette: *p,
		pixels:  make([]byte, 3*opts.X),
	}
}

func (s *Strip) String() string {
	return "Strip"
}

// Halt implements conn.Resource.
//
// It resets the attributes and ends the line.
func (s *Strip) Halt() error {
	_, err := s.w.Write([]byte("\n\033[0m"))
	return err
}

// Write accepts a stream of raw RGB pixels.
func (s *Strip) Write(pixels []byte) (int, error) {
	if len(pixels)%3 != 0 {
		return 0, errors.New("trace: invalid RGB stream length")
	}
	copy(s.pixels, pixels)
	return s.refresh()
}

// ColorModel implements display.Drawer.
func (s *Strip) ColorModel() color.Model {
	return color.NRGBAModel
}

// Bounds implements display.Drawer.
func (s *Strip) Bounds() image.Rectangle {
	return image.Rectangle{Max: image.Point{X: s.l, Y: 1}}
}

// Draw implements display.Drawer.
func (s *Strip) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(s.Bounds())
	srcR := src.Bounds()
	srcR.Min = srcR.Min.Add(sp)
	if dX := r.Dx(); dX < srcR.Dx() {
		srcR.Max.X = srcR.Min.X + dX
	}
	deltaX3 := 3 * (r.Min.X - srcR.Min.X)
	for sX := srcR.Min.X; sX < srcR.Max.X; sX++ {
		r16, g16, b16, _ := src.At(sX, srcR.Min.Y).RGBA()
		dX3 := 3*sX + deltaX3
		s.pixels[dX3] = byte(r16 >> 8)
		s.pixels[dX3+1] = byte(g16 >> 8)
		s.pixels[dX3+2] = byte(b16 >> 8)
	}
	_, err := s.refresh()
	return err
}

func (s *Strip) refresh() (int, error) {
	s.buf.Reset()
	_, _ = s.buf.WriteString("\r\033[0m")
	for i := 0; i < len(s.pixels)/3; i++ {
		c := color.NRGBA{s.pixels[3*i], s.pixels[3*i+1], s.pixels[3*i+2], 255}
		_, _ = io.WriteString(&s.buf, s.palette.Block(c))
	}
	_, _ = s.buf.WriteString("\033[0m ")
	_, err := s.buf.WriteTo(s.w)
	return len(s.pixels), err
}

var _ display.Drawer = &Strip{}
var _ fmt.Stringer = &Strip{}
