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

// Command arvid-poweroff asks an Arvid server to shut down.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ZaparooProject/arvid-client/pkg/cli"
	"github.com/ZaparooProject/arvid-client/pkg/config"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// settleDelay lets the server finish setting up the session first.
const settleDelay = 500 * time.Millisecond

func main() {
	cli.Exit(run())
}

func run() error {
	flags := cli.SetupFlags()
	flags.Pre("arvid-poweroff")

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
	_, _ = fmt.Println("connected!")

	select {
	case <-ctx.Done():
		_, _ = c.Close(context.Background())
		return ctx.Err()
	case <-clockwork.NewRealClock().After(settleDelay):
	}

	result, err := c.PowerOffServer(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("no reply to power off")
	}
	_, _ = fmt.Printf("Done. result code=%d.\n", result)
	return nil
}
