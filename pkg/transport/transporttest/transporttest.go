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

// Package transporttest provides an in-memory transport.Conn for tests.
package transporttest

import (
	"context"
	"errors"
	"sync"

	"github.com/ZaparooProject/arvid-client/pkg/protocol"
	"github.com/ZaparooProject/arvid-client/pkg/transport"
)

var ErrClosed = errors.New("connection closed")

// Responder returns the datagrams the fake server sends back after
// receiving pkt. It is called with the connection lock released.
type Responder func(pkt []byte) [][]byte

// Conn records every datagram sent and queues scripted replies.
type Conn struct {
	sendErr   error
	responder Responder
	inbox     chan []byte
	sent      [][]byte
	mu        sync.Mutex
	closed    bool
}

func NewConn(responder Responder) *Conn {
	return &Conn{
		responder: responder,
		inbox:     make(chan []byte, 4096),
	}
}

// Dialer returns a transport.DialFunc that always hands out c.
func (c *Conn) Dialer() transport.DialFunc {
	return func(context.Context, string, int) (transport.Conn, error) {
		return c, nil
	}
}

// FailSends makes every later Send return err.
func (c *Conn) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *Conn) Send(p []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.sendErr != nil {
		err := c.sendErr
		c.mu.Unlock()
		return err
	}
	pkt := append([]byte(nil), p...)
	c.sent = append(c.sent, pkt)
	responder := c.responder
	c.mu.Unlock()

	if responder != nil {
		for _, r := range responder(pkt) {
			c.Deliver(r)
		}
	}
	return nil
}

// Deliver queues a datagram for Receive or Poll.
func (c *Conn) Deliver(p []byte) {
	c.inbox <- append([]byte(nil), p...)
}

func (c *Conn) Receive(ctx context.Context, buf []byte) (int, error) {
	select {
	case p := <-c.inbox:
		return copy(buf, p), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (c *Conn) Poll(buf []byte) (int, error) {
	select {
	case p := <-c.inbox:
		return copy(buf, p), nil
	default:
		return 0, transport.ErrNoData
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Sent returns a copy of every datagram sent so far.
func (c *Conn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// Reset forgets the sent datagrams.
func (c *Conn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

// Commands returns the command of every sent datagram that decodes as a
// request, in send order. Blit packets are included as protocol.CmdBlit.
func Commands(codec protocol.Codec, sent [][]byte) []protocol.Command {
	out := make([]protocol.Command, 0, len(sent))
	for _, p := range sent {
		if len(p) < 2 {
			continue
		}
		out = append(out, protocol.Command(codec.Word(p)))
	}
	return out
}

// Response encodes a server reply with the given sequence id and result,
// followed by extra payload bytes.
func Response(codec protocol.Codec, seq uint16, value uint32, extra ...byte) []byte {
	b := make([]byte, protocol.ResponseSize, protocol.ResponseSize+len(extra))
	codec.PutWord(b, seq)
	codec.PutLong(b[2:], value)
	return append(b, extra...)
}
