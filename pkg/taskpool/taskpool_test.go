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

package taskpool

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/arvid-client/pkg/band"
	"github.com/ZaparooProject/arvid-client/pkg/helpers/cpu"
	"github.com/ZaparooProject/arvid-client/pkg/protocol"
	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pgregory.net/rapid"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var codec = protocol.NewCodec(binary.LittleEndian)

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

func (s *recordingSender) sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.packets...)
}

// gatedCompressor holds every Compress call until gate is closed.
type gatedCompressor struct {
	inner band.Compressor
	gate  <-chan struct{}
}

func (g gatedCompressor) Compress(dst, src []byte) (int, error) {
	<-g.gate
	return g.inner.Compress(dst, src)
}

func gatedFactory(gate <-chan struct{}) band.NewCompressorFunc {
	return func() (band.Compressor, error) {
		d, err := band.NewDeflater(band.DefaultLevel)
		if err != nil {
			return nil, err
		}
		return gatedCompressor{inner: d, gate: gate}, nil
	}
}

func testFrame(width, height int) band.Frame {
	pixels := make([]uint16, width*height)
	for i := range pixels {
		pixels[i] = uint16(i*13 + i/width)
	}
	return band.Frame{Pixels: pixels, Width: width, Height: height, Stride: width}
}

// reassemble decodes blit packets and rebuilds the frame by origin row.
func reassemble(t *testing.T, packets [][]byte, width int) []uint16 {
	t.Helper()
	type chunk struct {
		pixels []uint16
		row    int
	}
	chunks := make([]chunk, 0, len(packets))
	for _, pkt := range packets {
		h, payload, err := codec.DecodeBlitHeader(pkt)
		require.NoError(t, err)
		r := flate.NewReader(bytes.NewReader(payload))
		raw, err := io.ReadAll(r)
		require.NoError(t, err)
		_ = r.Close()
		chunks = append(chunks, chunk{row: int(h.Row), pixels: codec.Pixels(raw)})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].row < chunks[j].row })

	var out []uint16
	for _, c := range chunks {
		require.Equal(t, len(out)/width, c.row, "rows must be contiguous")
		out = append(out, c.pixels...)
	}
	return out
}

func newPool(t *testing.T, cores int, sender band.Sender, factory band.NewCompressorFunc) *Pool {
	t.Helper()
	p, err := New(Options{
		Sender:        sender,
		NewCompressor: factory,
		Codec:         codec,
		Layout:        cpu.NewLayout(cores, 0, nil),
	})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestDispatchBlockingSendsWholeFrame(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	p := newPool(t, 3, sender, nil)
	assert.Equal(t, 3, p.Size())

	f := testFrame(320, 240)
	require.NoError(t, p.Dispatch(f, 9, true))
	assert.False(t, p.Busy())

	packets := sender.sent()
	for _, pkt := range packets {
		h, _, err := codec.DecodeBlitHeader(pkt)
		require.NoError(t, err)
		assert.Equal(t, uint16(9), h.Seq)
	}
	assert.Equal(t, f.Pixels, reassemble(t, packets, f.Width))
}

func TestDispatchNonBlockingDefersCompletion(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	sender := &recordingSender{}
	p := newPool(t, 4, sender, gatedFactory(gate))

	f := testFrame(320, 240)
	// returns while every compressor is still held
	require.NoError(t, p.Dispatch(f, 1, false))
	assert.True(t, p.Busy())
	assert.Empty(t, sender.sent())
	require.ErrorIs(t, p.Dispatch(f, 2, false), ErrBusy)

	close(gate)
	require.NoError(t, p.Wait())
	assert.False(t, p.Busy())
	assert.Equal(t, f.Pixels, reassemble(t, sender.sent(), f.Width))
}

func TestDispatchNonBlockingWaitBlocksUntilDone(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	p := newPool(t, 2, &recordingSender{}, gatedFactory(gate))

	require.NoError(t, p.Dispatch(testFrame(64, 64), 1, false))

	var waited atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Wait()
		waited.Store(true)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, waited.Load())
	close(gate)
	<-done
	assert.True(t, waited.Load())
}

func TestDispatchSingleTaskRunsInline(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	p := newPool(t, 1, sender, nil)

	f := testFrame(100, 70)
	require.NoError(t, p.Dispatch(f, 3, false))
	assert.False(t, p.Busy())
	assert.Len(t, sender.sent(), 3)
	assert.Equal(t, f.Pixels, reassemble(t, sender.sent(), f.Width))
}

func TestDispatchReportsSendErrors(t *testing.T) {
	t.Parallel()

	sendErr := errors.New("unreachable")
	p := newPool(t, 2, &recordingSender{err: sendErr}, nil)

	err := p.Dispatch(testFrame(32, 64), 1, true)
	require.ErrorIs(t, err, sendErr)
	assert.False(t, p.Busy())
}

func TestDispatchInvalidFrame(t *testing.T) {
	t.Parallel()

	p := newPool(t, 2, &recordingSender{}, nil)
	err := p.Dispatch(band.Frame{Width: 10, Height: 10, Stride: 10}, 1, true)
	require.ErrorIs(t, err, band.ErrInvalidFrame)
}

func TestNewFailsWhenWorkerCannotStart(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	factory := func() (band.Compressor, error) {
		if calls.Add(1) > 1 {
			return nil, errors.New("out of memory")
		}
		return band.NewDeflater(band.DefaultLevel)
	}

	clock := clockwork.NewFakeClock()
	errCh := make(chan error, 1)
	go func() {
		_, err := New(Options{
			Clock:          clock,
			Sender:         &recordingSender{},
			NewCompressor:  factory,
			Layout:         cpu.NewLayout(3, 0, nil),
			StartupTimeout: time.Second,
		})
		errCh <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	require.ErrorIs(t, <-errCh, ErrStartup)
}

func TestNewFailsWhenForegroundCannotStart(t *testing.T) {
	t.Parallel()

	_, err := New(Options{
		Sender: &recordingSender{},
		NewCompressor: func() (band.Compressor, error) {
			return nil, errors.New("out of memory")
		},
		Layout: cpu.NewLayout(4, 0, nil),
	})
	require.ErrorIs(t, err, ErrStartup)
}

func TestNewRejectsInvalidCoreCount(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Sender: &recordingSender{}, Layout: cpu.NewLayout(0, 0, nil)})
	require.ErrorIs(t, err, ErrStartup)
}

func TestCloseStopsWorkers(t *testing.T) {
	t.Parallel()

	p, err := New(Options{Sender: &recordingSender{}, Layout: cpu.NewLayout(4, 0, nil)})
	require.NoError(t, err)
	for i := 1; i < p.Size(); i++ {
		assert.Equal(t, StateIdle, p.WorkerState(i))
	}

	p.Close()
	for i := 1; i < p.Size(); i++ {
		assert.Equal(t, StateTerminated, p.WorkerState(i))
	}
	require.ErrorIs(t, p.Dispatch(testFrame(8, 8), 1, true), ErrClosed)
	p.Close()
}

func TestCloseFinishesFrameInFlight(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	sender := &recordingSender{}
	p, err := New(Options{
		Sender:        sender,
		NewCompressor: gatedFactory(gate),
		Codec:         codec,
		Layout:        cpu.NewLayout(2, 0, nil),
	})
	require.NoError(t, err)

	f := testFrame(16, 16)
	require.NoError(t, p.Dispatch(f, 1, false))
	close(gate)
	p.Close()
	assert.Equal(t, f.Pixels, reassemble(t, sender.sent(), f.Width))
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestPropertyDispatchCoversEveryRow(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		cores := rapid.IntRange(1, cpu.MaxCores).Draw(rt, "cores")
		height := rapid.IntRange(1, 200).Draw(rt, "height")
		wait := rapid.Bool().Draw(rt, "wait")

		sender := &recordingSender{}
		p, err := New(Options{Sender: sender, Codec: codec, Layout: cpu.NewLayout(cores, 0, nil)})
		if err != nil {
			rt.Fatalf("new: %v", err)
		}
		defer p.Close()

		f := testFrame(8, height)
		if err := p.Dispatch(f, 1, wait); err != nil {
			rt.Fatalf("dispatch: %v", err)
		}
		if err := p.Wait(); err != nil {
			rt.Fatalf("wait: %v", err)
		}

		rows := make(map[int]int)
		for _, pkt := range sender.sent() {
			h, _, err := codec.DecodeBlitHeader(pkt)
			if err != nil {
				rt.Fatalf("decode: %v", err)
			}
			rows[int(h.Row)]++
		}
		for r, n := range rows {
			if n != 1 {
				rt.Fatalf("row %d sent %d times", r, n)
			}
		}
		if rows[0] != 1 {
			rt.Fatalf("row 0 missing")
		}
	})
}
