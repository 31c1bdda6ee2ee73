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

package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected       = errors.New("not connected")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrBlitTypeDowngraded = errors.New("non-blocking blit needs more than one core, using blocking")
	ErrBlitInFlight       = errors.New("non-blocking blit still in flight, wait for vsync first")
	ErrSocket             = errors.New("failed to open socket")
	ErrTaskPool           = errors.New("failed to create compression tasks")
	ErrNoInitResponse     = errors.New("server did not answer INIT")
	ErrVideoModeCapacity  = errors.New("video mode table does not fit")
)

// UpdatePhase names the firmware update exchange that failed.
type UpdatePhase string

const (
	UpdatePhaseStart UpdatePhase = "start"
	UpdatePhaseEnd   UpdatePhase = "end"
)

// UpdateError reports a non-zero server result during a firmware update.
type UpdateError struct {
	Phase  UpdatePhase
	Result int
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("firmware update rejected at %s: result %d", e.Phase, e.Result)
}
