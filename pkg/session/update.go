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
	"context"
	"fmt"

	"github.com/ZaparooProject/arvid-client/pkg/protocol"
)

// UpdateServer uploads a firmware image. The server must accept the
// announced size before any block is sent and must accept the checksum
// after the last one; otherwise an *UpdateError is returned.
func (s *Session) UpdateServer(ctx context.Context, data []byte) error {
	if err := s.connected(); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty firmware image", ErrInvalidArgument)
	}

	result, err := s.result(ctx, protocol.UpdateStartRequest(len(data)))
	if err != nil {
		return err
	}
	if result != 0 {
		s.log.Error().Int("result", result).Msg("server rejected firmware update")
		return &UpdateError{Phase: UpdatePhaseStart, Result: result}
	}

	blocks := protocol.SplitUpdate(data)
	for _, block := range blocks {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("firmware upload interrupted at block %d: %w", block.Index, err)
		}
		if err := s.send(protocol.UpdatePacketRequest(block)); err != nil {
			return err
		}
	}

	crc := protocol.Checksum(data)
	s.log.Info().
		Int("size", len(data)).
		Int("blocks", len(blocks)).
		Str("crc", fmt.Sprintf("0x%08x", crc)).
		Msg("firmware sent")

	result, err = s.result(ctx, protocol.UpdateEndRequest(crc))
	if err != nil {
		return err
	}
	if result != 0 {
		s.log.Error().Int("result", result).Msg("server rejected firmware checksum")
		return &UpdateError{Phase: UpdatePhaseEnd, Result: result}
	}
	return nil
}
