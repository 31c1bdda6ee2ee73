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

// Package transport carries protocol datagrams between the client and the
// Arvid server.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ErrNoData is returned by Poll when no datagram is waiting.
var ErrNoData = errors.New("no datagram available")

// Conn is a datagram link to one server. Send may be called from several
// goroutines at once; Receive and Poll are only called by one.
type Conn interface {
	Send(p []byte) error
	// Receive blocks until a datagram arrives or ctx is done.
	Receive(ctx context.Context, buf []byte) (int, error)
	// Poll makes a single non-blocking receive attempt.
	Poll(buf []byte) (int, error)
	Close() error
}

// DialFunc opens a Conn to address, a host or host:port.
type DialFunc func(ctx context.Context, address string, defaultPort int) (Conn, error)

// UDPConn is a Conn over a connected UDP socket.
type UDPConn struct {
	conn *net.UDPConn
}

// DialUDP opens a UDP socket bound to the server at address. No packet is
// sent; a UDP dial only fixes the peer.
func DialUDP(ctx context.Context, address string, defaultPort int) (Conn, error) {
	addr := address
	if _, _, err := net.SplitHostPort(address); err != nil {
		addr = net.JoinHostPort(address, strconv.Itoa(defaultPort))
	}

	var d net.Dialer
	c, err := d.DialContext(ctx, "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket to %s: %w", addr, err)
	}
	udp, ok := c.(*net.UDPConn)
	if !ok {
		_ = c.Close()
		return nil, fmt.Errorf("unexpected connection type %T", c)
	}
	return &UDPConn{conn: udp}, nil
}

func (c *UDPConn) Send(p []byte) error {
	if _, err := c.conn.Write(p); err != nil {
		return fmt.Errorf("failed to send datagram: %w", err)
	}
	return nil
}

func (c *UDPConn) Receive(ctx context.Context, buf []byte) (int, error) {
	deadline, _ := ctx.Deadline()
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, fmt.Errorf("failed to set read deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	n, err := c.conn.Read(buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("failed to receive datagram: %w", err)
	}
	return n, nil
}

func (c *UDPConn) Poll(buf []byte) (int, error) {
	// A deadline left behind by a cancelled Receive would fail the read
	// before the socket is even looked at.
	if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
		return 0, fmt.Errorf("failed to clear read deadline: %w", err)
	}
	n, err := c.poll(buf)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return 0, ErrNoData
		}
		return 0, fmt.Errorf("failed to poll datagram: %w", err)
	}
	return n, nil
}

func (c *UDPConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *UDPConn) Close() error {
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close socket: %w", err)
	}
	return nil
}
