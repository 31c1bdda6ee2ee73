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

import "fmt"

// Request is an outgoing command. Args are the words that follow the
// command code and sequence id; Payload is appended after them.
type Request struct {
	Payload []byte
	Args    []uint16
	Cmd     Command
}

// Size returns the encoded length of the request.
func (r *Request) Size() int {
	return CommandHeaderSize + 2*len(r.Args) + len(r.Payload)
}

// AppendRequest encodes req stamped with seq onto dst.
func (c Codec) AppendRequest(dst []byte, req *Request, seq uint16) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, req.Size())...)
	b := dst[start:]
	c.PutWord(b[0:], uint16(req.Cmd))
	c.PutWord(b[2:], seq)
	off := CommandHeaderSize
	for _, a := range req.Args {
		c.PutWord(b[off:], a)
		off += 2
	}
	copy(b[off:], req.Payload)
	return dst
}

// PutBlitHeader writes the blit packet header into the first
// BlitHeaderSize bytes of dst. The compressed band follows it.
func (c Codec) PutBlitHeader(dst []byte, seq uint16, size int, row int) {
	c.PutWord(dst[0:], uint16(CmdBlit))
	c.PutWord(dst[2:], seq)
	c.PutWord(dst[4:], uint16(size))
	c.PutWord(dst[6:], uint16(row))
	c.PutWord(dst[8:], 0)
}

// BlitHeader is the decoded header of a blit packet.
type BlitHeader struct {
	Seq  uint16
	Size uint16
	Row  uint16
}

// DecodeBlitHeader parses a blit packet and returns its header and
// compressed payload.
func (c Codec) DecodeBlitHeader(b []byte) (BlitHeader, []byte, error) {
	if len(b) < BlitHeaderSize {
		return BlitHeader{}, nil, ErrShortPacket
	}
	if cmd := Command(c.Word(b)); cmd != CmdBlit {
		return BlitHeader{}, nil, fmt.Errorf("not a blit packet: %s", cmd)
	}
	h := BlitHeader{
		Seq:  c.Word(b[2:]),
		Size: c.Word(b[4:]),
		Row:  c.Word(b[6:]),
	}
	payload := b[BlitHeaderSize:]
	if int(h.Size) > len(payload) {
		return h, nil, ErrShortPacket
	}
	return h, payload[:h.Size], nil
}

// Response is the fixed part of every server reply.
type Response struct {
	Seq   uint16
	Value uint32
}

// Result returns the response value as the signed result code.
func (r Response) Result() int {
	return int(int32(r.Value))
}

// DecodeResponse parses the [seq][result] reply header.
func (c Codec) DecodeResponse(b []byte) (Response, error) {
	if len(b) < ResponseSize {
		return Response{}, ErrShortPacket
	}
	return Response{
		Seq:   c.Word(b),
		Value: c.Long(b[2:]),
	}, nil
}

// DecodeButtons reads the button bitmask trailing a VSYNC reply.
func (c Codec) DecodeButtons(b []byte) (uint32, error) {
	if len(b) < VsyncResponseSize {
		return 0, ErrShortPacket
	}
	return c.Long(b[ResponseSize:]), nil
}

// VideoModeInfo is one entry of the server's video mode table.
type VideoModeInfo struct {
	Width uint16
	Mode  uint16
}

// DecodeVideoModes reads count mode entries following the reply header.
func (c Codec) DecodeVideoModes(b []byte, count int) ([]VideoModeInfo, error) {
	if count < 0 || count > MaxVideoModes {
		return nil, fmt.Errorf("invalid video mode count: %d", count)
	}
	if len(b) < ResponseSize+count*4 {
		return nil, ErrShortPacket
	}
	modes := make([]VideoModeInfo, count)
	off := ResponseSize
	for i := range modes {
		modes[i] = VideoModeInfo{
			Width: c.Word(b[off:]),
			Mode:  c.Word(b[off+2:]),
		}
		off += 4
	}
	return modes, nil
}
