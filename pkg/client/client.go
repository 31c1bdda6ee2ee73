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

// Package client is the public API of the Arvid client. A Client holds at
// most one live session; every operation fails with ErrNotConnected
// outside Connect and Close.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/arvid-client/pkg/band"
	"github.com/ZaparooProject/arvid-client/pkg/config"
	"github.com/ZaparooProject/arvid-client/pkg/helpers/cpu"
	"github.com/ZaparooProject/arvid-client/pkg/helpers/syncutil"
	"github.com/ZaparooProject/arvid-client/pkg/protocol"
	"github.com/ZaparooProject/arvid-client/pkg/session"
	"github.com/ZaparooProject/arvid-client/pkg/transport"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type BlitType = session.BlitType

const (
	BlitBlocking    = session.BlitBlocking
	BlitNonBlocking = session.BlitNonBlocking
)

// VideoModeInfo is one entry of the server's video mode table.
type VideoModeInfo = protocol.VideoModeInfo

// Options configures a Client. The zero value detects cores, uses the
// native byte order and talks UDP on the default port.
type Options struct {
	Clock         clockwork.Clock
	Dial          transport.DialFunc
	NewCompressor band.NewCompressorFunc
	ByteOrder     string
	// CoreMap pins task n to processor CoreMap[n]; see cpu.NewLimitedLayout.
	CoreMap []int
	// Cores fixes the task count instead of detecting it.
	Cores            int
	CoreLimit        int
	FirstCore        int
	Port             int
	CompressionLevel int
	SettleTime       time.Duration
	StartupTimeout   time.Duration
	UpdatePacketRate float64
	BlitType         BlitType
	PinThreads       bool
}

// OptionsFromConfig builds Options from the user config.
func OptionsFromConfig(cfg *config.Instance) Options {
	opts := Options{
		ByteOrder:        cfg.ByteOrder(),
		CoreMap:          cfg.CoreMap(),
		CoreLimit:        cfg.CoreLimit(),
		FirstCore:        cfg.FirstCoreIndex(),
		Port:             cfg.ServerPort(),
		CompressionLevel: cfg.CompressionLevel(),
		SettleTime:       cfg.SettleTime(),
		StartupTimeout:   cfg.StartupTimeout(),
		UpdatePacketRate: cfg.UpdatePacketRate(),
		PinThreads:       cfg.PinThreads(),
	}
	if cfg.BlitType() == config.BlitTypeNonBlocking {
		opts.BlitType = BlitNonBlocking
	}
	return opts
}

type Client struct {
	session *session.Session
	opts    Options
	mu      syncutil.Mutex
}

//nolint:gocritic // options struct copied for immutability
func New(opts Options) *Client {
	return &Client{opts: opts}
}

func (c *Client) sessionOptions() (session.Options, error) {
	order, err := protocol.ParseByteOrder(c.opts.ByteOrder)
	if err != nil {
		return session.Options{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	var cores, available int
	if c.opts.Cores > 0 {
		cores = cpu.UsableCores(c.opts.Cores, c.opts.CoreLimit)
		available = cpu.LimitedCores(c.opts.Cores, c.opts.CoreLimit)
	} else {
		cores, available = cpu.DetectCores(c.opts.CoreLimit)
	}

	newCompressor := c.opts.NewCompressor
	if newCompressor == nil && c.opts.CompressionLevel != 0 {
		newCompressor = band.DeflaterFactory(c.opts.CompressionLevel)
	}

	return session.Options{
		Clock:            c.opts.Clock,
		Dial:             c.opts.Dial,
		NewCompressor:    newCompressor,
		Codec:            protocol.NewCodec(order),
		Layout:           cpu.NewLimitedLayout(cores, available, c.opts.FirstCore, c.opts.CoreMap),
		Port:             c.opts.Port,
		SettleTime:       c.opts.SettleTime,
		StartupTimeout:   c.opts.StartupTimeout,
		UpdatePacketRate: c.opts.UpdatePacketRate,
		PinThreads:       c.opts.PinThreads,
	}, nil
}

// Connect opens a session to the server at address, a host or host:port.
func (c *Client) Connect(ctx context.Context, address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return ErrAlreadyConnected
	}
	opts, err := c.sessionOptions()
	if err != nil {
		return err
	}
	s, err := session.Connect(ctx, address, opts)
	if err != nil {
		return err
	}
	c.session = s

	if c.opts.BlitType != BlitBlocking {
		if err := s.SetBlitType(c.opts.BlitType); err != nil {
			log.Warn().Err(err).Msg("keeping blocking blit")
		}
	}
	return nil
}

// Connected reports whether a session is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Close ends the session and returns the server's result. The session is
// released even when the server does not answer.
func (c *Client) Close(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return 0, ErrNotConnected
	}
	s := c.session
	c.session = nil
	return s.Close(ctx)
}

func (c *Client) with(fn func(s *session.Session) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ErrNotConnected
	}
	return fn(c.session)
}

func (c *Client) SetBlitType(t BlitType) error {
	return c.with(func(s *session.Session) error {
		return s.SetBlitType(t)
	})
}

// Blit sends a 16-bit framebuffer. Stride is the row pitch in pixels. In
// non-blocking mode pixels must stay untouched until WaitForVsync returns.
func (c *Client) Blit(pixels []uint16, width, height, stride int) error {
	return c.with(func(s *session.Session) error {
		return s.Blit(band.Frame{Pixels: pixels, Width: width, Height: height, Stride: stride})
	})
}

func (c *Client) FrameNumber(ctx context.Context) (uint32, error) {
	var n uint32
	err := c.with(func(s *session.Session) (err error) {
		n, err = s.FrameNumber(ctx)
		return err
	})
	return n, err
}

// WaitForVsync finishes a pending non-blocking blit and waits for the
// next vsync, returning the frame number.
func (c *Client) WaitForVsync(ctx context.Context) (uint32, error) {
	var n uint32
	err := c.with(func(s *session.Session) (err error) {
		n, err = s.WaitForVsync(ctx)
		return err
	})
	return n, err
}

// Buttons returns the button bitmask seen at the last vsync.
func (c *Client) Buttons() (uint32, error) {
	var b uint32
	err := c.with(func(s *session.Session) (err error) {
		b, err = s.Buttons()
		return err
	})
	return b, err
}

func (c *Client) SetVideoMode(ctx context.Context, mode, lines int) (int, error) {
	var r int
	err := c.with(func(s *session.Session) (err error) {
		r, err = s.SetVideoMode(ctx, mode, lines)
		return err
	})
	return r, err
}

func (c *Client) VideoModeLines(ctx context.Context, mode int, frequency float64) (int, error) {
	var r int
	err := c.with(func(s *session.Session) (err error) {
		r, err = s.VideoModeLines(ctx, mode, frequency)
		return err
	})
	return r, err
}

func (c *Client) VideoModeRefreshRate(ctx context.Context, mode, lines int) (float64, error) {
	var r float64
	err := c.with(func(s *session.Session) (err error) {
		r, err = s.VideoModeRefreshRate(ctx, mode, lines)
		return err
	})
	return r, err
}

// EnumVideoModes fills dst with the server's modes. dst is left untouched
// if the table does not fit.
func (c *Client) EnumVideoModes(ctx context.Context, dst []VideoModeInfo) (int, error) {
	var n int
	err := c.with(func(s *session.Session) (err error) {
		n, err = s.EnumVideoModes(ctx, dst)
		return err
	})
	return n, err
}

func (c *Client) Width(ctx context.Context) (int, error) {
	var r int
	err := c.with(func(s *session.Session) (err error) {
		r, err = s.Width(ctx)
		return err
	})
	return r, err
}

func (c *Client) Height(ctx context.Context) (int, error) {
	var r int
	err := c.with(func(s *session.Session) (err error) {
		r, err = s.Height(ctx)
		return err
	})
	return r, err
}

// TransferredSize returns the blit bytes sent since the previous call.
func (c *Client) TransferredSize() (uint64, error) {
	var n uint64
	err := c.with(func(s *session.Session) error {
		n = s.TransferredSize()
		return nil
	})
	return n, err
}

func (c *Client) SetLinePosMod(mod int16) error {
	return c.with(func(s *session.Session) error {
		return s.SetLinePosMod(mod)
	})
}

func (c *Client) LinePosMod(ctx context.Context) (int, error) {
	var r int
	err := c.with(func(s *session.Session) (err error) {
		r, err = s.LinePosMod(ctx)
		return err
	})
	return r, err
}

// SetVirtualVsync sets the virtual vsync line, -1 to disable it.
func (c *Client) SetVirtualVsync(line int) error {
	return c.with(func(s *session.Session) error {
		return s.SetVirtualVsync(line)
	})
}

func (c *Client) UpdateServer(ctx context.Context, data []byte) error {
	return c.with(func(s *session.Session) error {
		return s.UpdateServer(ctx, data)
	})
}

func (c *Client) PowerOffServer(ctx context.Context) (int, error) {
	var r int
	err := c.with(func(s *session.Session) (err error) {
		r, err = s.PowerOffServer(ctx)
		return err
	})
	return r, err
}
