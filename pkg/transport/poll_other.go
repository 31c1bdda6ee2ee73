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

//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package transport

import (
	"errors"
	"os"
	"time"
)

// pollWindow is how long poll waits for an already queued datagram. A
// deadline of now expires before the read is attempted.
const pollWindow = time.Millisecond

func (c *UDPConn) poll(buf []byte) (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, err
	}
	defer func() {
		_ = c.conn.SetReadDeadline(time.Time{})
	}()
	n, err := c.conn.Read(buf)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return 0, ErrNoData
	}
	return n, err
}
