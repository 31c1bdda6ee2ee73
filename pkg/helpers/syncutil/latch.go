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

package syncutil

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrLatchTimeout = errors.New("latch wait timed out")

// Latch is a countdown latch. Done is closed once CountDown has been called
// n times.
type Latch struct {
	done      chan struct{}
	remaining int
	mu        Mutex
}

func NewLatch(n int) *Latch {
	l := &Latch{
		remaining: n,
		done:      make(chan struct{}),
	}
	if n <= 0 {
		close(l.done)
	}
	return l
}

func (l *Latch) CountDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.remaining <= 0 {
		return
	}
	l.remaining--
	if l.remaining == 0 {
		close(l.done)
	}
}

// Remaining returns how many counts are still outstanding.
func (l *Latch) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// WaitTimeout blocks until the latch opens or timeout elapses on clock.
func (l *Latch) WaitTimeout(clock clockwork.Clock, timeout time.Duration) error {
	select {
	case <-l.done:
		return nil
	default:
	}
	timer := clock.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-l.done:
		return nil
	case <-timer.Chan():
		return ErrLatchTimeout
	}
}
