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

// Package session implements the Arvid request/response exchange over a
// datagram transport and drives the compression task pool for blits.
//
// A Session is owned by one goroutine. Only its compression workers run
// concurrently, and they touch nothing but the transport and the
// transferred-bytes counter.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/arvid-client/pkg/band"
	"github.com/ZaparooProject/arvid-client/pkg/helpers/cpu"
	"github.com/ZaparooProject/arvid-client/pkg/protocol"
	"github.com/ZaparooProject/arvid-client/pkg/taskpool"
	"github.com/ZaparooProject/arvid-client/pkg/transport"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// sendRepeat is how many times every command datagram is sent.
	sendRepeat = 3

	// DefaultSettleTime is how long Connect waits for the INIT reply.
	DefaultSettleTime = time.Second
)

// BlitType selects whether Blit waits for the frame to be sent.
type BlitType int

const (
	BlitBlocking    BlitType = 0
	BlitNonBlocking BlitType = 1
)

func (t BlitType) String() string {
	switch t {
	case BlitBlocking:
		return "blocking"
	case BlitNonBlocking:
		return "non_blocking"
	default:
		return fmt.Sprintf("blit_type(%d)", int(t))
	}
}

// Options configures Connect.
type Options struct {
	// Clock times the INIT settle wait.
	Clock         clockwork.Clock
	Dial          transport.DialFunc
	NewCompressor band.NewCompressorFunc
	Codec         protocol.Codec
	Layout        cpu.Layout
	Port          int
	SettleTime    time.Duration
	// StartupTimeout bounds the compression task startup.
	StartupTimeout time.Duration
	// UpdatePacketRate limits firmware packets per second. Zero means no
	// limit.
	UpdatePacketRate float64
	PinThreads       bool
}

// Session is one connection to an Arvid server.
type Session struct {
	clock       clockwork.Clock
	conn        transport.Conn
	pool        *taskpool.Pool
	limiter     *rate.Limiter
	log         zerolog.Logger
	out         []byte
	recv        []byte
	codec       protocol.Codec
	transferred atomic.Uint64
	width       int
	height      int
	buttons     uint32
	blitType    BlitType
	id          uuid.UUID
	seq         uint16
	recvSeq     uint16
}

type blitSender struct {
	s *Session
}

func (b blitSender) Send(p []byte) error {
	return b.s.conn.Send(p)
}

// Connect starts the compression tasks, opens the transport and greets
// the server. It succeeds once a reply to INIT has arrived within the
// settle time.
func Connect(ctx context.Context, address string, opts Options) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Dial == nil {
		opts.Dial = transport.DialUDP
	}
	if opts.Port == 0 {
		opts.Port = protocol.DefaultPort
	}
	if opts.SettleTime <= 0 {
		opts.SettleTime = DefaultSettleTime
	}
	limit := rate.Inf
	if opts.UpdatePacketRate > 0 {
		limit = rate.Limit(opts.UpdatePacketRate)
	}

	id := uuid.New()
	s := &Session{
		id:      id,
		clock:   opts.Clock,
		codec:   opts.Codec,
		limiter: rate.NewLimiter(limit, 1),
		recv:    make([]byte, protocol.MaxResponseSize),
		log:     log.With().Str("session", id.String()).Logger(),
	}

	s.log.Info().
		Str("address", address).
		Int("cores", opts.Layout.Cores()).
		Msg("connecting to arvid server")

	pool, err := taskpool.New(taskpool.Options{
		Sender:         blitSender{s: s},
		NewCompressor:  opts.NewCompressor,
		Transferred:    &s.transferred,
		Codec:          opts.Codec,
		Layout:         opts.Layout,
		StartupTimeout: opts.StartupTimeout,
		PinThreads:     opts.PinThreads,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create tasks")
		return nil, fmt.Errorf("%w: %w", ErrTaskPool, err)
	}
	s.pool = pool

	conn, err := opts.Dial(ctx, address, opts.Port)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create socket")
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrSocket, err)
	}
	s.conn = conn

	if err := s.greet(ctx, opts.SettleTime); err != nil {
		s.log.Error().Err(err).Msg("connection failed")
		s.release()
		return nil, err
	}

	s.log.Info().Msg("connected")
	return s, nil
}

func (s *Session) greet(ctx context.Context, settle time.Duration) error {
	if err := s.send(&protocol.Request{Cmd: protocol.CmdInit}); err != nil {
		return fmt.Errorf("%w: %w", ErrNoInitResponse, err)
	}

	select {
	case <-s.clock.After(settle):
	case <-ctx.Done():
		return ctx.Err()
	}

	n, err := s.conn.Poll(s.recv)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoInitResponse, err)
	}
	resp, err := s.codec.DecodeResponse(s.recv[:n])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoInitResponse, err)
	}
	s.recvSeq = resp.Seq
	return nil
}

// release closes the pool and the transport without talking to the server.
func (s *Session) release() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.log.Warn().Err(err).Msg("failed to close socket")
		}
		s.conn = nil
	}
	s.width = 0
	s.height = 0
	s.seq = 0
	s.recvSeq = 0
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Cores returns the number of compression tasks.
func (s *Session) Cores() int {
	return s.pool.Size()
}

func (s *Session) connected() error {
	if s.conn == nil {
		return ErrNotConnected
	}
	return nil
}

// send stamps req with the next sequence id and transmits it sendRepeat
// times.
func (s *Session) send(req *protocol.Request) error {
	s.seq++
	s.out = s.codec.AppendRequest(s.out[:0], req, s.seq)
	var sendErr error
	for range sendRepeat {
		if err := s.conn.Send(s.out); err != nil {
			sendErr = err
		}
	}
	if sendErr != nil {
		s.log.Error().Err(sendErr).Stringer("cmd", req.Cmd).Msg("failed to send command")
		return fmt.Errorf("send %s: %w", req.Cmd, sendErr)
	}
	return nil
}

// receive blocks until a reply whose sequence id differs from the last
// one consumed arrives. Repeated copies of the previous reply are
// skipped; an older reply with a different id is accepted.
func (s *Session) receive(ctx context.Context) (protocol.Response, []byte, error) {
	for {
		n, err := s.conn.Receive(ctx, s.recv)
		if err != nil {
			return protocol.Response{}, nil, fmt.Errorf("failed to receive response: %w", err)
		}
		resp, err := s.codec.DecodeResponse(s.recv[:n])
		if err != nil {
			s.log.Debug().Int("size", n).Msg("ignoring short response")
			continue
		}
		if resp.Seq == s.recvSeq {
			continue
		}
		s.recvSeq = resp.Seq
		return resp, s.recv[:n], nil
	}
}

func (s *Session) exchange(ctx context.Context, req *protocol.Request) (protocol.Response, []byte, error) {
	if err := s.connected(); err != nil {
		return protocol.Response{}, nil, err
	}
	if err := s.send(req); err != nil {
		return protocol.Response{}, nil, err
	}
	return s.receive(ctx)
}

func (s *Session) result(ctx context.Context, req *protocol.Request) (int, error) {
	resp, _, err := s.exchange(ctx, req)
	if err != nil {
		return 0, err
	}
	return resp.Result(), nil
}

// Close stops the compression tasks, says goodbye to the server and
// closes the transport. It returns the server's CLOSE result.
func (s *Session) Close(ctx context.Context) (int, error) {
	if err := s.connected(); err != nil {
		return 0, err
	}
	if err := s.pool.Wait(); err != nil {
		s.log.Warn().Err(err).Msg("last frame incomplete")
	}
	s.pool.Close()

	result, err := s.result(ctx, &protocol.Request{Cmd: protocol.CmdClose})
	s.release()
	if err != nil {
		s.log.Warn().Err(err).Msg("no reply to close")
		return 0, err
	}
	s.log.Info().Int("result", result).Msg("disconnected")
	return result, nil
}

// SetBlitType switches between blocking and non-blocking blits. A single
// core cannot run non-blocking; the type is set to blocking and
// ErrBlitTypeDowngraded returned.
func (s *Session) SetBlitType(t BlitType) error {
	if err := s.connected(); err != nil {
		return err
	}
	if t != BlitBlocking && t != BlitNonBlocking {
		return fmt.Errorf("%w: blit type %d", ErrInvalidArgument, int(t))
	}
	if t == BlitNonBlocking && s.pool.Size() <= 1 {
		s.blitType = BlitBlocking
		s.log.Warn().Msg("single core, non-blocking blit unavailable")
		return ErrBlitTypeDowngraded
	}
	s.blitType = t
	return nil
}

func (s *Session) BlitType() BlitType {
	return s.blitType
}

// Blit sends frame to the server's hidden framebuffer. In non-blocking
// mode Blit returns once the bands are handed to the workers; the frame
// must not be modified until WaitForVsync has returned.
//
// Packet send failures are logged but not returned, a lost band only
// shows as missing rows on screen.
func (s *Session) Blit(frame band.Frame) error {
	if err := s.connected(); err != nil {
		return err
	}
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	wait := s.blitType == BlitBlocking
	if s.pool.Busy() {
		if !wait {
			return ErrBlitInFlight
		}
		s.drain()
	}

	err := s.pool.Dispatch(frame, s.seq, wait)
	if errors.Is(err, taskpool.ErrClosed) || errors.Is(err, taskpool.ErrBusy) {
		return err
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("frame partially sent")
	}
	return nil
}

func (s *Session) drain() {
	if err := s.pool.Wait(); err != nil {
		s.log.Warn().Err(err).Msg("frame partially sent")
	}
}

// FrameNumber returns the server's current frame counter.
func (s *Session) FrameNumber(ctx context.Context) (uint32, error) {
	resp, _, err := s.exchange(ctx, &protocol.Request{Cmd: protocol.CmdFrameNumber})
	if err != nil {
		return 0, err
	}
	return resp.Value, nil
}

// WaitForVsync finishes any non-blocking blit in flight, then waits for
// the server's next vsync. It returns the frame number and records the
// button state carried by the reply.
func (s *Session) WaitForVsync(ctx context.Context) (uint32, error) {
	if err := s.connected(); err != nil {
		return 0, err
	}
	s.drain()

	resp, raw, err := s.exchange(ctx, &protocol.Request{Cmd: protocol.CmdVsync})
	if err != nil {
		return 0, err
	}
	buttons, err := s.codec.DecodeButtons(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("vsync reply without button state")
	} else {
		s.buttons = buttons
	}
	return resp.Value, nil
}

// Buttons returns the button bitmask from the last vsync reply.
func (s *Session) Buttons() (uint32, error) {
	if err := s.connected(); err != nil {
		return 0, err
	}
	return s.buttons, nil
}

// SetVideoMode switches the server to mode with the given line count and
// forgets the cached frame size.
func (s *Session) SetVideoMode(ctx context.Context, mode, lines int) (int, error) {
	if err := s.connected(); err != nil {
		return 0, err
	}
	s.width = 0
	s.height = 0
	return s.result(ctx, &protocol.Request{
		Cmd:  protocol.CmdSetVideoMode,
		Args: []uint16{uint16(mode), uint16(lines)},
	})
}

// VideoModeLines asks how many lines mode has at frequency hertz. The
// answer also becomes the cached height.
func (s *Session) VideoModeLines(ctx context.Context, mode int, frequency float64) (int, error) {
	millihertz := int(frequency * 1000)
	lines, err := s.result(ctx, &protocol.Request{
		Cmd:  protocol.CmdGetVideoModeLines,
		Args: []uint16{uint16(mode), uint16(millihertz)},
	})
	if err != nil {
		return 0, err
	}
	s.height = lines
	s.log.Debug().
		Int("mode", mode).
		Float64("frequency", frequency).
		Int("lines", lines).
		Msg("video mode lines")
	return lines, nil
}

// VideoModeRefreshRate returns the refresh rate in hertz of mode at lines.
func (s *Session) VideoModeRefreshRate(ctx context.Context, mode, lines int) (float64, error) {
	millihertz, err := s.result(ctx, &protocol.Request{
		Cmd:  protocol.CmdGetVideoModeFreq,
		Args: []uint16{uint16(mode), uint16(lines)},
	})
	if err != nil {
		return 0, err
	}
	return float64(millihertz) / 1000, nil
}

// Width returns the framebuffer width, asking the server only when no
// width is cached.
func (s *Session) Width(ctx context.Context) (int, error) {
	if s.width > 0 {
		return s.width, nil
	}
	w, err := s.result(ctx, &protocol.Request{Cmd: protocol.CmdGetWidth})
	if err != nil {
		return 0, err
	}
	s.width = w
	return w, nil
}

// Height returns the framebuffer height, asking the server only when no
// height is cached.
func (s *Session) Height(ctx context.Context) (int, error) {
	if s.height > 0 {
		return s.height, nil
	}
	h, err := s.result(ctx, &protocol.Request{Cmd: protocol.CmdGetHeight})
	if err != nil {
		return 0, err
	}
	s.height = h
	return h, nil
}

// EnumVideoModes fills dst with the server's video modes and returns how
// many were written. If the server reports more modes than dst holds, or
// none at all, dst is left untouched and ErrVideoModeCapacity returned.
func (s *Session) EnumVideoModes(ctx context.Context, dst []protocol.VideoModeInfo) (int, error) {
	if err := s.connected(); err != nil {
		return 0, err
	}
	if len(dst) < 1 {
		return 0, fmt.Errorf("%w: empty mode buffer", ErrInvalidArgument)
	}
	resp, raw, err := s.exchange(ctx, &protocol.Request{Cmd: protocol.CmdEnumVideoModes})
	if err != nil {
		return 0, err
	}
	count := resp.Result()
	s.log.Debug().Int("count", count).Msg("enum video modes")
	if count <= 0 || count > len(dst) {
		return 0, fmt.Errorf("%w: server has %d modes, buffer holds %d",
			ErrVideoModeCapacity, count, len(dst))
	}
	modes, err := s.codec.DecodeVideoModes(raw, count)
	if err != nil {
		return 0, err
	}
	return copy(dst, modes), nil
}

// SetLinePosMod adjusts the server's line position modifier. No reply is
// expected.
func (s *Session) SetLinePosMod(mod int16) error {
	if err := s.connected(); err != nil {
		return err
	}
	return s.send(&protocol.Request{
		Cmd:  protocol.CmdSetLineMod,
		Args: []uint16{uint16(mod)},
	})
}

func (s *Session) LinePosMod(ctx context.Context) (int, error) {
	return s.result(ctx, &protocol.Request{Cmd: protocol.CmdGetLineMod})
}

// SetVirtualVsync makes the server signal vsync at line. A line of -1
// disables the virtual vsync. No reply is expected.
func (s *Session) SetVirtualVsync(line int) error {
	if err := s.connected(); err != nil {
		return err
	}
	if line < -1 || line > 0x7FFF {
		return fmt.Errorf("%w: vsync line %d", ErrInvalidArgument, line)
	}
	return s.send(&protocol.Request{
		Cmd:  protocol.CmdSetVirtualSync,
		Args: []uint16{uint16(int16(line))},
	})
}

// PowerOffServer asks the server to shut down and returns its result.
func (s *Session) PowerOffServer(ctx context.Context) (int, error) {
	return s.result(ctx, &protocol.Request{Cmd: protocol.CmdServerPowerOff})
}

// TransferredSize returns the blit bytes sent since the previous call.
func (s *Session) TransferredSize() uint64 {
	return s.transferred.Swap(0)
}
