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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ZaparooProject/arvid-client/pkg/cli"
	"github.com/ZaparooProject/arvid-client/pkg/client"
	"github.com/ZaparooProject/arvid-client/pkg/config"
	"github.com/ZaparooProject/arvid-client/pkg/protocol"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const statsInterval = 5 * time.Second

func main() {
	cli.Exit(run())
}

func run() error {
	flags := cli.SetupFlags()
	flags.Pre("arvid-demo")

	cfg := flags.Setup(config.BaseDefaults, []io.Writer{os.Stderr})
	addr, err := flags.ServerAddress(cfg)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	_, _ = fmt.Printf("connecting to %s ...\n", addr)
	c, err := cli.Connect(ctx, cfg, addr)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if _, err := c.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("error closing session")
		}
	}()
	_, _ = fmt.Println("connected!")

	lines, err := c.VideoModeLines(ctx, protocol.Mode320, 60)
	if err != nil {
		return &cli.ExitError{Op: "get video mode lines", Err: err}
	}
	if _, err := c.SetVideoMode(ctx, protocol.Mode320, lines); err != nil {
		return &cli.ExitError{Op: "set video mode", Err: err}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return animate(ctx, c, newScene())
	})
	g.Go(func() error {
		return reportStats(ctx, c, clockwork.NewRealClock())
	})
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// animate clears both buffers on screen, then renders until ctx is done.
func animate(ctx context.Context, c *client.Client, s *scene) error {
	for range 2 {
		if _, err := c.WaitForVsync(ctx); err != nil {
			return &cli.ExitError{Op: "vsync", Err: err}
		}
		if err := c.Blit(s.clear(), screenWidth, totalHeight, screenWidth); err != nil {
			return &cli.ExitError{Op: "blit", Err: err}
		}
	}

	for {
		buf, height := s.render()
		if _, err := c.WaitForVsync(ctx); err != nil {
			return &cli.ExitError{Op: "vsync", Err: err}
		}
		if err := c.Blit(buf, screenWidth, height, screenWidth); err != nil {
			return &cli.ExitError{Op: "blit", Err: err}
		}
	}
}

func reportStats(ctx context.Context, c *client.Client, clock clockwork.Clock) error {
	ticker := clock.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			n, err := c.TransferredSize()
			if err != nil {
				return err
			}
			log.Info().
				Uint64("bytes", n).
				Float64("kib_per_sec", float64(n)/1024/statsInterval.Seconds()).
				Msg("blit throughput")
		}
	}
}
