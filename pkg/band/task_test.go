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
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ZaparooProject/arvid-client/pkg/protocol"
	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type recordingSender struct {
	err     error
	packets [][]byte
	mu      sync.Mutex
}

func (s *recordingSender) Send(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.packets = append(s.packets, append([]byte(nil), p...))
	return nil
}

func inflate(t testing.TB, data []byte) []byte {
	t.Helper()
	r := flate.NewReader(bytes.NewReader(data))
	defer func() { _ = r.Close() }()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func testFrame(width, height, stride int) Frame {
	pixels := make([]uint16, height*stride)
	for i := range pixels {
		pixels[i] = uint16(i*7 + i/stride)
	}
	return Frame{Pixels: pixels, Width: width, Height: height, Stride: stride}
}

func TestDeflaterRoundTrip(t *testing.T) {
	t.Parallel()

	d, err := NewDeflater(DefaultLevel)
	require.NoError(t, err)

	codec := protocol.NewCodec(binary.LittleEndian)
	f := testFrame(320, SubBandLines, 320)
	raw := make([]byte, len(f.Pixels)*2)
	codec.PutPixels(raw, f.Pixels)

	dst := make([]byte, protocol.MaxBlitPayload)
	for range 3 {
		// state is reset between calls, so each output is a full stream
		n, err := d.Compress(dst, raw)
		require.NoError(t, err)
		assert.Equal(t, f.Pixels, codec.Pixels(inflate(t, dst[:n])))
	}
}

func TestPropertyDeflaterRoundTrip(t *testing.T) {
	t.Parallel()

	d, err := NewDeflater(DefaultLevel)
	require.NoError(t, err)
	codec := protocol.NewCodec(binary.LittleEndian)
	dst := make([]byte, protocol.MaxBlitPayload)

	rapid.Check(t, func(rt *rapid.T) {
		pixels := rapid.SliceOfN(rapid.Uint16Range(0, 0x0FFF), 0, 8*1024).Draw(rt, "pixels")
		raw := make([]byte, len(pixels)*2)
		codec.PutPixels(raw, pixels)

		n, err := d.Compress(dst, raw)
		if err != nil {
			rt.Fatalf("compress: %v", err)
		}
		got := codec.Pixels(inflate(t, dst[:n]))
		if len(got) != len(pixels) {
			rt.Fatalf("got %d pixels, want %d", len(got), len(pixels))
		}
		for i := range got {
			if got[i] != pixels[i] {
				rt.Fatalf("pixel %d differs", i)
			}
		}
	})
}

func TestDeflaterOverflow(t *testing.T) {
	t.Parallel()

	d, err := NewDeflater(DefaultLevel)
	require.NoError(t, err)

	src := make([]byte, 4096)
	for i := range src {
		src[i] = byte(i * 31)
	}
	_, err = d.Compress(make([]byte, 8), src)
	require.ErrorIs(t, err, ErrChunkOverflow)

	// the stream recovers after an overflow
	dst := make([]byte, 8192)
	n, err := d.Compress(dst, src)
	require.NoError(t, err)
	assert.Equal(t, src, inflate(t, dst[:n]))
}

func TestNewDeflaterInvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := NewDeflater(42)
	require.Error(t, err)
}

func TestTaskSendsSubBandsInRowOrder(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	var transferred atomic.Uint64
	codec := protocol.NewCodec(binary.LittleEndian)
	task, err := NewTask(1, TaskConfig{Sender: sender, Codec: codec, Transferred: &transferred})
	require.NoError(t, err)
	assert.Equal(t, 1, task.Index())

	f := testFrame(320, 100, 320)
	b := f.Band(Span{Row: 0, Lines: 100})
	require.NoError(t, task.Run(&b, 77))

	require.Len(t, sender.packets, 4)
	var total uint64
	rebuilt := make([]uint16, 0, len(f.Pixels))
	for i, pkt := range sender.packets {
		h, payload, err := codec.DecodeBlitHeader(pkt)
		require.NoError(t, err)
		assert.Equal(t, uint16(77), h.Seq)
		assert.Equal(t, uint16(i*SubBandLines), h.Row)
		rebuilt = append(rebuilt, codec.Pixels(inflate(t, payload))...)
		total += uint64(len(pkt))
	}
	assert.Equal(t, f.Pixels, rebuilt)
	assert.Equal(t, total, transferred.Load())
}

func TestTaskWideStrideUsesNarrowSubBands(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	codec := protocol.NewCodec(binary.LittleEndian)
	task, err := NewTask(0, TaskConfig{Sender: sender, Codec: codec})
	require.NoError(t, err)

	f := testFrame(640, 40, 640)
	b := f.Band(Span{Row: 8, Lines: 32})
	require.NoError(t, task.Run(&b, 1))

	require.Len(t, sender.packets, 2)
	h0, _, err := codec.DecodeBlitHeader(sender.packets[0])
	require.NoError(t, err)
	h1, _, err := codec.DecodeBlitHeader(sender.packets[1])
	require.NoError(t, err)
	assert.Equal(t, uint16(8), h0.Row)
	assert.Equal(t, uint16(8+NarrowSubBandLines), h1.Row)
}

type failingCompressor struct{}

func (failingCompressor) Compress(_, _ []byte) (int, error) {
	return 0, ErrChunkOverflow
}

func TestTaskSkipsFailedSubBands(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	task, err := NewTask(2, TaskConfig{
		Sender: sender,
		NewCompressor: func() (Compressor, error) {
			return failingCompressor{}, nil
		},
	})
	require.NoError(t, err)

	f := testFrame(16, 64, 16)
	b := f.Band(Span{Row: 0, Lines: 64})
	err = task.Run(&b, 1)
	require.ErrorIs(t, err, ErrChunkOverflow)
	assert.Empty(t, sender.packets)
}

func TestTaskSendError(t *testing.T) {
	t.Parallel()

	sendErr := errors.New("network down")
	task, err := NewTask(1, TaskConfig{Sender: &recordingSender{err: sendErr}})
	require.NoError(t, err)

	f := testFrame(16, 16, 16)
	b := f.Band(Span{Row: 0, Lines: 16})
	require.ErrorIs(t, task.Run(&b, 1), sendErr)
}

func TestNewTaskCompressorFailure(t *testing.T) {
	t.Parallel()

	initErr := errors.New("no memory")
	_, err := NewTask(3, TaskConfig{
		Sender: &recordingSender{},
		NewCompressor: func() (Compressor, error) {
			return nil, initErr
		},
	})
	require.ErrorIs(t, err, initErr)
}

func TestNewTaskRequiresSender(t *testing.T) {
	t.Parallel()

	_, err := NewTask(0, TaskConfig{})
	require.Error(t, err)
}
