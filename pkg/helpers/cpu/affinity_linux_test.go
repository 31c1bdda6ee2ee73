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

//go:build linux

package cpu

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestPinCallerRestoresAffinity(t *testing.T) {
	t.Parallel()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var before unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &before))
	target := -1
	for i := range 1024 {
		if before.IsSet(i) {
			target = i
			break
		}
	}
	require.GreaterOrEqual(t, target, 0)

	l := NewLayout(1, target, nil)
	release, err := l.PinCaller(0)
	require.NoError(t, err)

	var pinned unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &pinned))
	assert.Equal(t, 1, pinned.Count())
	assert.True(t, pinned.IsSet(target))

	release()

	var after unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &after))
	assert.Equal(t, before, after)
}

func TestPinCallerInvalidCPU(t *testing.T) {
	t.Parallel()

	l := NewLayout(1, -5, nil)
	release, err := l.PinCaller(0)
	require.Error(t, err)
	assert.NotPanics(t, release)
}
