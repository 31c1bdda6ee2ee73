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

const (
	screenWidth  = 320
	screenHeight = 240
	// topMargin rows sit above the visible area so the frame can be moved
	// with a virtual vsync.
	topMargin   = 32
	totalHeight = screenHeight + topMargin

	squareSize  = 32
	background  = 0x432
	squareColor = 0xFFF
)

// scene is a square bouncing around the screen, drawn into one of two
// framebuffers so a non-blocking blit of the other can still be in flight.
type scene struct {
	bufs   [2][]uint16
	x, y   int
	dx, dy int
	top    int
	back   int
}

func newScene() *scene {
	return &scene{
		bufs: [2][]uint16{
			make([]uint16, screenWidth*totalHeight),
			make([]uint16, screenWidth*totalHeight),
		},
		x:   100,
		y:   100,
		dx:  2,
		dy:  2,
		top: topMargin,
	}
}

func fillRect(buf []uint16, x, y, w, h int, color uint16) {
	for row := y; row < y+h; row++ {
		line := buf[row*screenWidth+x : row*screenWidth+x+w]
		for i := range line {
			line[i] = color
		}
	}
}

// clear returns a blank frame covering the whole buffer, margin included.
func (s *scene) clear() []uint16 {
	buf := s.bufs[s.back]
	fillRect(buf, 0, 0, screenWidth, totalHeight, 0)
	s.back ^= 1
	return buf
}

// step moves the square, bouncing off the edges.
func (s *scene) step() {
	s.x += s.dx
	if s.x < 0 || s.x > screenWidth-squareSize {
		s.dx = -s.dx
		s.x += s.dx * 2
	}
	s.y += s.dy
	if s.y < 0 || s.y > screenHeight-squareSize {
		s.dy = -s.dy
		s.y += s.dy * 2
	}
}

// render draws the next frame into the back buffer and returns it along
// with the number of rows to blit.
func (s *scene) render() ([]uint16, int) {
	s.step()
	buf := s.bufs[s.back]
	fillRect(buf, 0, s.top, screenWidth, screenHeight, background)
	fillRect(buf, s.x, s.y+s.top, squareSize, squareSize, squareColor)
	s.back ^= 1
	return buf, screenHeight + s.top
}
