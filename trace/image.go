// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package trace

import (
	"fmt"
	"image"
	"io"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

// ImageOpts holds the waveform layout.
type ImageOpts struct {
	// Width is the image width in pixels, label column included.
	Width int
	// Span is the time shown. It defaults to the time elapsed.
	Span time.Duration
	// FontSize is the label size in points.
	FontSize float64
}

// DefaultImageOpts is the layout used when none is given.
var DefaultImageOpts = ImageOpts{
	Width:    800,
	FontSize: 12,
}

// Waveform geometry, in pixels.
const (
	LabelWidth = 100
	RowHeight  = 40
	// HighY and LowY are the offsets of the high and low levels in a row.
	HighY = 8
	LowY  = 32
)

// Image renders the signals as a timing diagram, one row per signal, black
// on white.
func (r *Recorder) Image(opts *ImageOpts) (image.Image, error) {
	o := DefaultImageOpts
	if opts != nil {
		o = *opts
	}
	if o.Width == 0 {
		o.Width = DefaultImageOpts.Width
	}
	if o.FontSize == 0 {
		o.FontSize = DefaultImageOpts.FontSize
	}
	if o.Span == 0 {
		o.Span = r.Elapsed()
	}
	if o.Width <= LabelWidth || o.Span <= 0 {
		return nil, fmt.Errorf("trace: invalid layout %d px over %s", o.Width, o.Span)
	}
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	sigs := r.Signals()
	dc := gg.NewContext(o.Width, RowHeight*max(len(sigs), 1))
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)
	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: o.FontSize}))
	dc.SetLineWidth(2)
	scale := float64(o.Width-LabelWidth) / float64(o.Span)
	x := func(t time.Duration) float64 {
		return LabelWidth + float64(t)*scale
	}
	for i, s := range sigs {
		top := float64(i * RowHeight)
		y := func(l bool) float64 {
			if l {
				return top + HighY
			}
			return top + LowY
		}
		dc.DrawStringAnchored(s.Name, 4, top+RowHeight/2, 0, 0.5)
		at, level := time.Duration(0), false
		for _, e := range s.Edges {
			if e.At > o.Span {
				break
			}
			dc.DrawLine(x(at), y(level), x(e.At), y(level))
			dc.DrawLine(x(e.At), y(level), x(e.At), y(bool(e.Level)))
			at, level = e.At, bool(e.Level)
		}
		dc.DrawLine(x(at), y(level), x(o.Span), y(level))
		dc.Stroke()
	}
	return dc.Image(), nil
}

// WritePNG encodes the timing diagram as PNG to w.
func (r *Recorder) WritePNG(w io.Writer, opts *ImageOpts) error {
	img, err := r.Image(opts)
	if err != nil {
		return err
	}
	dc := gg.NewContextForImage(img)
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	return nil
}
