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

package client

import (
	"errors"

	"github.com/ZaparooProject/arvid-client/pkg/session"
)

// Numeric status codes, for callers that report results as numbers.
const (
	StatusOK                 = 0
	StatusNotConnected       = -1
	StatusInvalidArgument    = -2
	StatusBlitTypeDowngraded = -3
	StatusBlitInFlight       = -4
	StatusSocket             = -100
	StatusTaskPool           = -101
	StatusNoInitResponse     = -102
	// StatusUpdateEndRejected is returned when the server refuses the
	// firmware checksum. A refused start returns the server's own result.
	StatusUpdateEndRejected = 4
)

var (
	ErrNotConnected       = session.ErrNotConnected
	ErrAlreadyConnected   = errors.New("already connected")
	ErrInvalidArgument    = session.ErrInvalidArgument
	ErrBlitTypeDowngraded = session.ErrBlitTypeDowngraded
	ErrBlitInFlight       = session.ErrBlitInFlight
	ErrSocket             = session.ErrSocket
	ErrTaskPool           = session.ErrTaskPool
	ErrNoInitResponse     = session.ErrNoInitResponse
	ErrVideoModeCapacity  = session.ErrVideoModeCapacity
)

// Status maps an error returned by Client to its numeric status code.
// Errors without a dedicated code map to StatusNotConnected, the generic
// failure code.
func Status(err error) int {
	if err == nil {
		return StatusOK
	}

	var updErr *session.UpdateError
	if errors.As(err, &updErr) {
		if updErr.Phase == session.UpdatePhaseStart {
			return updErr.Result
		}
		return StatusUpdateEndRejected
	}

	switch {
	case errors.Is(err, ErrInvalidArgument):
		return StatusInvalidArgument
	case errors.Is(err, ErrBlitTypeDowngraded):
		return StatusBlitTypeDowngraded
	case errors.Is(err, ErrBlitInFlight):
		return StatusBlitInFlight
	case errors.Is(err, ErrSocket):
		return StatusSocket
	case errors.Is(err, ErrTaskPool):
		return StatusTaskPool
	case errors.Is(err, ErrNoInitResponse):
		return StatusNoInitResponse
	default:
		return StatusNotConnected
	}
}
