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

// Package protocol implements the Arvid datagram wire format: command codes,
// packet layouts and the byte-order codec used to read and write them.
package protocol

// Command identifies a request sent to the Arvid server.
type Command uint16

const (
	CmdBlit              Command = 1
	CmdFrameNumber       Command = 2
	CmdVsync             Command = 3
	CmdSetVideoMode      Command = 4
	CmdGetVideoModeLines Command = 5
	CmdGetVideoModeFreq  Command = 6
	CmdGetWidth          Command = 7
	CmdGetHeight         Command = 8
	CmdEnumVideoModes    Command = 9
	CmdInit              Command = 11
	CmdClose             Command = 12

	CmdGetLineMod     Command = 32
	CmdSetLineMod     Command = 33
	CmdSetVirtualSync Command = 34

	CmdUpdateStart  Command = 40
	CmdUpdatePacket Command = 41
	CmdUpdateEnd    Command = 42

	CmdServerPowerOff Command = 50
)

func (c Command) String() string {
	switch c {
	case CmdBlit:
		return "BLIT"
	case CmdFrameNumber:
		return "FRAME_NUMBER"
	case CmdVsync:
		return "VSYNC"
	case CmdSetVideoMode:
		return "SET_VIDEO_MODE"
	case CmdGetVideoModeLines:
		return "GET_VIDEO_MODE_LINES"
	case CmdGetVideoModeFreq:
		return "GET_VIDEO_MODE_FREQ"
	case CmdGetWidth:
		return "GET_WIDTH"
	case CmdGetHeight:
		return "GET_HEIGHT"
	case CmdEnumVideoModes:
		return "ENUM_VIDEO_MODES"
	case CmdInit:
		return "INIT"
	case CmdClose:
		return "CLOSE"
	case CmdGetLineMod:
		return "GET_LINE_MOD"
	case CmdSetLineMod:
		return "SET_LINE_MOD"
	case CmdSetVirtualSync:
		return "SET_VIRT_VSYNC"
	case CmdUpdateStart:
		return "UPDATE_START"
	case CmdUpdatePacket:
		return "UPDATE_PACKET"
	case CmdUpdateEnd:
		return "UPDATE_END"
	case CmdServerPowerOff:
		return "SERVER_POWEROFF"
	default:
		return "UNKNOWN"
	}
}

// DefaultPort is the UDP port the Arvid server listens on.
const DefaultPort = 32100

// Packet sizes in bytes.
const (
	// CommandHeaderSize covers the command code and sequence id words.
	CommandHeaderSize = 4

	// BlitHeaderSize: [cmd][seq][compressed size][origin row][reserved].
	BlitHeaderSize = 10

	// MaxBlitPayload is the compressed-size ceiling of one blit packet.
	MaxBlitPayload = 32 * 1024

	// ResponseSize: [u16 seq][u32 result].
	ResponseSize = 6

	// VsyncResponseSize adds the u32 button bitmask at offset 6.
	VsyncResponseSize = 10

	// MaxVideoModes is how many mode entries fit in an enum response.
	MaxVideoModes = 30

	// VideoModeResponseSize is the enum response: header plus the mode table.
	VideoModeResponseSize = ResponseSize + MaxVideoModes*4

	// UpdateBlockSize is the firmware payload carried by one UPDATE_PACKET.
	UpdateBlockSize = 1024

	// UpdateHeaderSize: [cmd][seq][block index][block length].
	UpdateHeaderSize = 8

	// MaxResponseSize is large enough for every response the server sends.
	MaxResponseSize = 256
)

// Video mode identifiers understood by the server.
const (
	Mode320 = 0
	Mode256 = 1
	Mode288 = 2
	Mode384 = 3
	Mode240 = 4
	Mode392 = 5
	Mode400 = 6
	Mode292 = 7
	Mode336 = 8
	Mode416 = 9
	Mode448 = 10
	Mode512 = 11
	Mode640 = 12
)

// Button and switch bits of the state bitmask returned with VSYNC.
const (
	TateSwitch    uint32 = 1 << 19
	TestSwitch    uint32 = 1 << 24
	ServiceSwitch uint32 = 1 << 20
	TiltSwitch    uint32 = 1 << 14

	P1Coin  uint32 = 1 << 17
	P1Start uint32 = 1 << 21
	P1Up    uint32 = 1 << 7
	P1Down  uint32 = 1 << 25
	P1Left  uint32 = 1 << 3
	P1Right uint32 = 1 << 2
	P1B1    uint32 = 1 << 5
	P1B2    uint32 = 1 << 4
	P1B3    uint32 = 1 << 31
	P1B4    uint32 = 1 << 30

	P2Coin  uint32 = 1 << 16
	P2Start uint32 = 1 << 15
	P2Up    uint32 = 1 << 8
	P2Down  uint32 = 1 << 9
	P2Left  uint32 = 1 << 10
	P2Right uint32 = 1 << 11
	P2B1    uint32 = 1 << 22
	P2B2    uint32 = 1 << 27
	P2B3    uint32 = 1 << 26
	P2B4    uint32 = 1 << 23

	// CoinButton and StartButton are the legacy names for player 1.
	CoinButton  = P1Coin
	StartButton = P1Start
)
