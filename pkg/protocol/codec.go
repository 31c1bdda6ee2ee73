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

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Byte order names accepted by ParseByteOrder.
const (
	OrderNative = "native"
	OrderLittle = "little"
	OrderBig    = "big"
)

var (
	ErrShortPacket      = errors.New("packet too short")
	ErrUnknownByteOrder = errors.New("unknown byte order")
)

var hostOrder = detectHostOrder()

func detectHostOrder() binary.ByteOrder {
	if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// HostOrder returns the byte order of the machine the client runs on.
func HostOrder() binary.ByteOrder {
	return hostOrder
}

// ParseByteOrder resolves a configured byte order name. An empty name
// means native.
func ParseByteOrder(name string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", OrderNative:
		return hostOrder, nil
	case OrderLittle:
		return binary.LittleEndian, nil
	case OrderBig:
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownByteOrder, name)
	}
}

// Codec reads and writes protocol words in a fixed byte order. Every word
// on the wire, pixels included, uses the same order.
type Codec struct {
	order binary.ByteOrder
}

// NewCodec returns a codec for the given order, or the host order if nil.
func NewCodec(order binary.ByteOrder) Codec {
	if order == nil {
		order = hostOrder
	}
	return Codec{order: order}
}

func (c Codec) Order() binary.ByteOrder {
	if c.order == nil {
		return hostOrder
	}
	return c.order
}

func (c Codec) PutWord(b []byte, v uint16) {
	c.Order().PutUint16(b, v)
}

func (c Codec) Word(b []byte) uint16 {
	return c.Order().Uint16(b)
}

func (c Codec) PutLong(b []byte, v uint32) {
	c.Order().PutUint32(b, v)
}

func (c Codec) Long(b []byte) uint32 {
	return c.Order().Uint32(b)
}

// PutPixels writes 16-bit pixels into dst, which must hold 2*len(src) bytes.
func (c Codec) PutPixels(dst []byte, src []uint16) {
	order := c.Order()
	for i, p := range src {
		order.PutUint16(dst[i*2:], p)
	}
}

// Pixels decodes 16-bit pixels from raw bytes.
func (c Codec) Pixels(src []byte) []uint16 {
	order := c.Order()
	out := make([]uint16, len(src)/2)
	for i := range out {
		out[i] = order.Uint16(src[i*2:])
	}
	return out
}
