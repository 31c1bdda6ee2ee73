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

// Command arvid-fwupload sends a firmware archive to an Arvid server. The
// server stores it and unpacks it on the next power cycle.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ZaparooProject/arvid-client/pkg/cli"
	"github.com/ZaparooProject/arvid-client/pkg/config"
	"github.com/ZaparooProject/arvid-client/pkg/protocol"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	maxFirmwareSize = 0x200000

	coinPolls    = 20
	coinInterval = 500 * time.Millisecond
)

var (
	ErrEmptyFirmware    = errors.New("firmware file is empty")
	ErrFirmwareTooLarge = errors.New("firmware file too large")
	ErrCoinTimeout      = errors.New("timed out waiting for the coin button")
)

func main() {
	cli.Exit(run())
}

func run() error {
	flags := cli.SetupFlags()
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "usage: arvid-fwupload [flags] firmware.tgz\n")
		flag.PrintDefaults()
	}
	flags.Pre("arvid-fwupload")
	if flag.NArg() < 1 {
		flag.Usage()
		return errors.New("no firmware file given")
	}

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

	data, err := readFirmware(afero.NewOsFs(), flag.Arg(0))
	if err != nil {
		return err
	}
	_, _ = fmt.Printf("uploading %d bytes\n", len(data))

	_, _ = fmt.Println("Press and hold Coin button to start...")
	if err := waitForCoin(ctx, c, clockwork.NewRealClock()); err != nil {
		return err
	}

	if err := c.UpdateServer(ctx, data); err != nil {
		return &cli.ExitError{Op: "firmware upload", Err: err}
	}
	_, _ = fmt.Println("Done. Now power-cycle Arvid.")
	return nil
}

// readFirmware reads the archive at path, which may not exceed
// maxFirmwareSize bytes.
func readFirmware(fs afero.Fs, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open firmware file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing firmware file")
		}
	}()

	data, err := io.ReadAll(io.LimitReader(f, maxFirmwareSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read firmware file: %w", err)
	}
	if len(data) > maxFirmwareSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFirmwareTooLarge, maxFirmwareSize)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFirmware
	}
	return data, nil
}

type buttonReader interface {
	WaitForVsync(ctx context.Context) (uint32, error)
	Buttons() (uint32, error)
}

// waitForCoin polls the buttons once per vsync, pausing between polls,
// until coin is held.
func waitForCoin(ctx context.Context, c buttonReader, clock clockwork.Clock) error {
	for range coinPolls {
		if _, err := c.WaitForVsync(ctx); err != nil {
			return &cli.ExitError{Op: "vsync", Err: err}
		}
		buttons, err := c.Buttons()
		if err != nil {
			return &cli.ExitError{Op: "buttons", Err: err}
		}
		if buttons&protocol.CoinButton != 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(coinInterval):
		}
	}
	return ErrCoinTimeout
}
