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

// Package cli holds the flag handling and environment setup shared by the
// Arvid command line tools.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZaparooProject/arvid-client/pkg/client"
	"github.com/ZaparooProject/arvid-client/pkg/config"
	"github.com/ZaparooProject/arvid-client/pkg/helpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrNoServerAddress = errors.New("no server address given")

type Flags struct {
	Addr    *string
	Version *bool
	Debug   *bool
}

// SetupFlags defines the flags common to every tool.
func SetupFlags() *Flags {
	return &Flags{
		Addr: flag.String(
			"addr",
			"",
			"address of the Arvid server, overrides the config file",
		),
		Version: flag.Bool(
			"version",
			false,
			"print version and exit",
		),
		Debug: flag.Bool(
			"debug",
			false,
			"enable debug logging",
		),
	}
}

// Pre runs flag parsing and actions any immediate flags that don't
// require environment setup. Add any custom flags before running this.
func (f *Flags) Pre(tool string) {
	flag.Parse()

	if *f.Version {
		_, _ = fmt.Printf("%s v%s\n", tool, config.AppVersion)
		os.Exit(0)
	}
}

// Setup initializes logging and the user config. Returns a user config
// object.
//
//nolint:gocritic // config struct copied for immutability
func (f *Flags) Setup(defaultConfig config.Values, writers []io.Writer) *config.Instance {
	err := helpers.InitLogging(helpers.LogDir(), writers)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.NewConfig(config.DefaultDir(), defaultConfig)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg.DebugLogging() || *f.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return cfg
}

// ServerAddress picks the server address from the flag, falling back to
// the config file and its environment override.
func (f *Flags) ServerAddress(cfg *config.Instance) (string, error) {
	if f.Addr != nil && *f.Addr != "" {
		return *f.Addr, nil
	}
	if addr := cfg.ServerAddress(); addr != "" {
		return addr, nil
	}
	return "", fmt.Errorf("%w: use -addr or set %s", ErrNoServerAddress, config.ServerEnv)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Connect opens a client to address configured from cfg.
func Connect(ctx context.Context, cfg *config.Instance, address string) (*client.Client, error) {
	c := client.New(client.OptionsFromConfig(cfg))
	log.Info().Str("address", address).Msg("connecting to server")
	if err := c.Connect(ctx, address); err != nil {
		return nil, &ExitError{Op: "connect", Err: err}
	}
	return c, nil
}

// ExitError carries the client status code out of a tool as its exit code.
type ExitError struct {
	Err error
	Op  string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %v", e.Op, client.Status(e.Err), e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for an error returned by a tool.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if code := client.Status(exitErr.Err); code != 0 {
			if code < 0 {
				return -code
			}
			return code
		}
	}
	return 1
}

// Exit logs err and terminates the process with its exit code.
func Exit(err error) {
	if err == nil {
		os.Exit(0)
	}
	log.Error().Err(err).Msg("exiting with error")
	_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitCode(err))
}
