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
	"testing"
	"time"

	"github.com/ZaparooProject/arvid-client/pkg/cli"
	"github.com/ZaparooProject/arvid-client/pkg/client"
	"github.com/ZaparooProject/arvid-client/pkg/protocol"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockButtons struct {
	mock.Mock
}

func (m *mockButtons) WaitForVsync(ctx context.Context) (uint32, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint32), args.Error(1)
}

func (m *mockButtons) Buttons() (uint32, error) {
	args := m.Called()
	return args.Get(0).(uint32), args.Error(1)
}

func TestWaitForCoinImmediate(t *testing.T) {
	t.Parallel()

	b := &mockButtons{}
	b.On("WaitForVsync", mock.Anything).Return(uint32(1), nil).Once()
	b.On("Buttons").Return(protocol.CoinButton|protocol.P1Up, nil).Once()

	require.NoError(t, waitForCoin(context.Background(), b, clockwork.NewFakeClock()))
	b.AssertExpectations(t)
}

func TestWaitForCoinAfterPolls(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	b := &mockButtons{}
	b.On("WaitForVsync", mock.Anything).Return(uint32(1), nil).Times(3)
	b.On("Buttons").Return(uint32(0), nil).Once()
	b.On("Buttons").Return(protocol.StartButton, nil).Once()
	b.On("Buttons").Return(protocol.CoinButton, nil).Once()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- waitForCoin(ctx, b, clock) }()

	for range 2 {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(coinInterval)
	}
	require.NoError(t, <-done)
	b.AssertExpectations(t)
}

func TestWaitForCoinTimeout(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	b := &mockButtons{}
	b.On("WaitForVsync", mock.Anything).Return(uint32(1), nil).Times(coinPolls)
	b.On("Buttons").Return(protocol.StartButton, nil).Times(coinPolls)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- waitForCoin(ctx, b, clock) }()

	for range coinPolls {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(coinInterval)
	}
	require.ErrorIs(t, <-done, ErrCoinTimeout)
	b.AssertExpectations(t)
}

func TestWaitForCoinVsyncError(t *testing.T) {
	t.Parallel()

	b := &mockButtons{}
	b.On("WaitForVsync", mock.Anything).Return(uint32(0), client.ErrNotConnected).Once()

	err := waitForCoin(context.Background(), b, clockwork.NewFakeClock())

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, "vsync", exitErr.Op)
	b.AssertNotCalled(t, "Buttons")
}

func TestReadFirmware(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/fw.tgz", []byte{1, 2, 3}, 0o600))
	require.NoError(t, afero.WriteFile(fs, "/empty.tgz", nil, 0o600))
	require.NoError(t, afero.WriteFile(fs, "/max.tgz", make([]byte, maxFirmwareSize), 0o600))
	require.NoError(t, afero.WriteFile(fs, "/big.tgz", make([]byte, maxFirmwareSize+1), 0o600))

	data, err := readFirmware(fs, "/fw.tgz")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = readFirmware(fs, "/empty.tgz")
	require.ErrorIs(t, err, ErrEmptyFirmware)

	data, err = readFirmware(fs, "/max.tgz")
	require.NoError(t, err)
	assert.Len(t, data, maxFirmwareSize)

	_, err = readFirmware(fs, "/big.tgz")
	require.ErrorIs(t, err, ErrFirmwareTooLarge)

	_, err = readFirmware(fs, "/missing.tgz")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyFirmware)
}
