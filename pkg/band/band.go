// Arvid Client
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Arvid Client.
//
// Arvid Client is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Arvid Client is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Arvid Client.  If not, see <http://www.gnu.org/licenses/>.

// Package band splits framebuffers into horizontal bands, compresses them
// and streams each compressed sub-band to the server as a blit packet.
package band

import (
	"errors"
	"fmt"
)

const (
	// SubBandLines is how many rows go into one blit packet.
	SubBandLines = 32

	// NarrowSubBandLines is used for wide rows so a sub-band stays within
	// the compressed packet ceiling.
	NarrowSubBandLines = 16

	// WideStride is the stride, in pixels, above which sub-bands are halved.
	WideStride = 512

	// lineAlign is the row granularity of per-task bands.
	lineAlign = 4

	maxRows = 1 << 16
)

var ErrInvalidFrame = errors.New("invalid frame")

// Frame is a 16-bit framebuffer. Stride is the row pitch in pixels.
type Frame struct {
	Pixels []uint16
	Width  int
	Height int
	Stride int
}

// Validate checks the frame geometry against its pixel buffer.
func (f *Frame) Validate() error {
	switch {
	case f.Width <= 0 || f.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidFrame, f.Width, f.Height)
	case f.Stride < f.Width:
		return fmt.Errorf("%w: stride %d below width %d", ErrInvalidFrame, f.Stride, f.Width)
	case f.Height > maxRows:
		return fmt.Errorf("%w: height %d", ErrInvalidFrame, f.Height)
	case len(f.Pixels) < (f.Height-1)*f.Stride+f.Width:
		return fmt.Errorf("%w: buffer holds %d pixels, need %d",
			ErrInvalidFrame, len(f.Pixels), (f.Height-1)*f.Stride+f.Width)
	}
	return nil
}

// Span is a contiguous range of rows.
type Span struct {
	Row   int
	Lines int
}

// Partition splits height rows across tasks in row order. Every task but
// the one taking the remainder gets a multiple of four lines; tasks after
// the remainder get empty spans. A single task takes the whole frame.
func Partition(height, tasks int) []Span {
	if tasks < 1 {
		return nil
	}
	perTask := ((height / tasks) / lineAlign) * lineAlign
	if tasks < 2 {
		perTask = height
	} else if perTask*tasks < height {
		perTask += lineAlign
	}

	spans := make([]Span, tasks)
	row := 0
	for i := range spans {
		lines := min(height-row, perTask)
		spans[i] = Span{Row: row, Lines: lines}
		row += lines
	}
	return spans
}

// Band is the part of a frame one task compresses.
type Band struct {
	Pixels []uint16
	Row    int
	Lines  int
	Width  int
	Stride int
}

// Band returns the rows of span as a band. The pixel slice starts at the
// span's first row.
func (f *Frame) Band(s Span) Band {
	start := min(s.Row*f.Stride, len(f.Pixels))
	return Band{
		Pixels: f.Pixels[start:],
		Row:    s.Row,
		Lines:  s.Lines,
		Width:  f.Width,
		Stride: f.Stride,
	}
}

// SubBandSize returns the sub-band height for a row stride in pixels.
func SubBandSize(stride int) int {
	if stride > WideStride {
		return NarrowSubBandLines
	}
	return SubBandLines
}

// SubBands returns the row spans of the packets a band is sent as.
func (b *Band) SubBands() []Span {
	block := SubBandSize(b.Stride)
	spans := make([]Span, 0, (b.Lines+block-1)/block)
	for y := 0; y < b.Lines; y += block {
		spans = append(spans, Span{Row: b.Row + y, Lines: min(b.Lines-y, block)})
	}
	return spans
}

// rows returns the pixels of lines rows starting at band-relative row y.
// The final row of a frame may be shorter than the stride.
func (b *Band) rows(y, lines int) []uint16 {
	start := min(y*b.Stride, len(b.Pixels))
	end := min(start+lines*b.Stride, len(b.Pixels))
	return b.Pixels[start:end]
}
