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

package band

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/flate"
)

// DefaultLevel trades ratio for speed; frames must keep up with vsync.
const DefaultLevel = 2

var ErrChunkOverflow = errors.New("compressed sub-band exceeds packet ceiling")

// Compressor turns one sub-band of raw pixels into a complete raw deflate
// stream. Implementations keep their state between calls and reset it
// instead of reallocating.
type Compressor interface {
	Compress(dst, src []byte) (int, error)
}

// NewCompressorFunc creates the compressor owned by one task.
type NewCompressorFunc func() (Compressor, error)

// DeflaterFactory returns a NewCompressorFunc for raw deflate at level.
func DeflaterFactory(level int) NewCompressorFunc {
	return func() (Compressor, error) {
		return NewDeflater(level)
	}
}

// Deflater is a headerless deflate compressor.
type Deflater struct {
	fw  *flate.Writer
	out fixedWriter
}

// NewDeflater initialises a raw deflate stream at level.
func NewDeflater(level int) (*Deflater, error) {
	d := &Deflater{}
	fw, err := flate.NewWriter(&d.out, level)
	if err != nil {
		return nil, fmt.Errorf("failed to init deflate stream: %w", err)
	}
	d.fw = fw
	return d, nil
}

// Compress writes the fully flushed deflate stream of src into dst and
// resets the stream for the next sub-band.
func (d *Deflater) Compress(dst, src []byte) (int, error) {
	d.out = fixedWriter{buf: dst}
	d.fw.Reset(&d.out)
	if _, err := d.fw.Write(src); err != nil {
		return 0, err
	}
	if err := d.fw.Close(); err != nil {
		return 0, err
	}
	return d.out.n, nil
}

// fixedWriter writes into a caller-owned buffer and refuses to grow it.
type fixedWriter struct {
	buf []byte
	n   int
}

func (w *fixedWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > len(w.buf) {
		return 0, ErrChunkOverflow
	}
	copy(w.buf[w.n:], p)
	w.n += len(p)
	return len(p), nil
}
