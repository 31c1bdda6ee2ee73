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

package protocol

// UpdateBlock is one UPDATE_PACKET worth of firmware.
type UpdateBlock struct {
	Data  []byte
	Index uint16
}

// UpdateStartRequest announces the total firmware size, split low word
// first.
func UpdateStartRequest(size int) *Request {
	return &Request{
		Cmd:  CmdUpdateStart,
		Args: []uint16{uint16(size & 0xFFFF), uint16(size >> 16)},
	}
}

// SplitUpdate cuts a firmware image into blocks of at most
// UpdateBlockSize bytes, indexed from zero.
func SplitUpdate(data []byte) []UpdateBlock {
	blocks := make([]UpdateBlock, 0, (len(data)+UpdateBlockSize-1)/UpdateBlockSize)
	for i := 0; len(data) > 0; i++ {
		n := min(len(data), UpdateBlockSize)
		blocks = append(blocks, UpdateBlock{Index: uint16(i), Data: data[:n]})
		data = data[n:]
	}
	return blocks
}

// UpdatePacketRequest wraps one block. The data is padded to a whole
// number of words plus one trailing zero word, which the server expects
// after every block.
func UpdatePacketRequest(block UpdateBlock) *Request {
	padded := make([]byte, 2*((len(block.Data)+1)/2)+2)
	copy(padded, block.Data)
	return &Request{
		Cmd:     CmdUpdatePacket,
		Args:    []uint16{block.Index, uint16(len(block.Data))},
		Payload: padded,
	}
}

// UpdateEndRequest carries the image checksum, low word first.
func UpdateEndRequest(crc uint32) *Request {
	return &Request{
		Cmd:  CmdUpdateEnd,
		Args: []uint16{uint16(crc & 0xFFFF), uint16(crc >> 16)},
	}
}
