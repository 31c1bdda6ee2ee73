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

package band

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ZaparooProject/arvid-client/pkg/protocol"
	"github.com/rs/zerolog/log"
)

// Sender transmits one datagram to the server. Tasks share a sender and
// call it concurrently.
type Sender interface {
	Send(p []byte) error
}

// TaskConfig holds what every task of a pool shares.
type TaskConfig struct {
	Sender        Sender
	NewCompressor NewCompressorFunc
	// Transferred, if set, accumulates the bytes of every packet sent.
	Transferred *atomic.Uint64
	Codec       protocol.Codec
}

// Task compresses bands and sends them. Its buffers are owned by the task
// alone, so tasks never contend with each other.
type Task struct {
	compressor  Compressor
	sender      Sender
	transferred *atomic.Uint64
	packet      []byte
	raw         []byte
	codec       protocol.Codec
	index       int
}

// NewTask creates task index with a fresh compressor. A compressor that
// fails to initialise makes the task unusable.
func NewTask(index int, cfg TaskConfig) (*Task, error) {
	if cfg.Sender == nil {
		return nil, errors.New("task sender is nil")
	}
	newCompressor := cfg.NewCompressor
	if newCompressor == nil {
		newCompressor = DeflaterFactory(DefaultLevel)
	}
	c, err := newCompressor()
	if err != nil {
		return nil, fmt.Errorf("task %d: %w", index, err)
	}
	return &Task{
		index:       index,
		compressor:  c,
		sender:      cfg.Sender,
		codec:       cfg.Codec,
		transferred: cfg.Transferred,
		packet:      make([]byte, protocol.BlitHeaderSize+protocol.MaxBlitPayload),
	}, nil
}

func (t *Task) Index() int {
	return t.index
}

// Run sends band b as one packet per sub-band, each stamped with seq and
// the sub-band's origin row. A sub-band that fails to compress or send is
// logged and skipped; the first such error is returned after the band is
// done.
func (t *Task) Run(b *Band, seq uint16) error {
	var firstErr error
	for _, sb := range b.SubBands() {
		if err := t.sendSubBand(b, sb, seq); err != nil {
			log.Error().Err(err).
				Int("task", t.index).
				Int("row", sb.Row).
				Msg("failed to send sub-band")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (t *Task) sendSubBand(b *Band, sb Span, seq uint16) error {
	pixels := b.rows(sb.Row-b.Row, sb.Lines)
	need := len(pixels) * 2
	if cap(t.raw) < need {
		t.raw = make([]byte, need)
	}
	raw := t.raw[:need]
	t.codec.PutPixels(raw, pixels)

	n, err := t.compressor.Compress(t.packet[protocol.BlitHeaderSize:], raw)
	if err != nil {
		return fmt.Errorf("compress rows %d-%d: %w", sb.Row, sb.Row+sb.Lines-1, err)
	}

	t.codec.PutBlitHeader(t.packet, seq, n, sb.Row)
	pkt := t.packet[:protocol.BlitHeaderSize+n]
	if err := t.sender.Send(pkt); err != nil {
		return fmt.Errorf("send rows %d-%d: %w", sb.Row, sb.Row+sb.Lines-1, err)
	}
	if t.transferred != nil {
		t.transferred.Add(uint64(len(pkt)))
	}
	return nil
}
