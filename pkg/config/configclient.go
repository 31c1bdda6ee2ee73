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

package config

import (
	"slices"
	"time"
)

func (c *Instance) ServerAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.env.address != nil {
		return *c.env.address
	}
	return c.vals.Server.Address
}

func (c *Instance) SetServerAddress(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Server.Address = address
	c.env.address = nil
}

func (c *Instance) ServerPort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Server.Port
}

func (c *Instance) ByteOrder() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Server.ByteOrder
}

func (c *Instance) SettleTime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Server.SettleTime, time.Second)
}

func (c *Instance) BlitType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Blit.Type
}

func (c *Instance) SetBlitType(blitType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Blit.Type = blitType
}

func (c *Instance) CompressionLevel() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Blit.CompressionLevel
}

// CoreLimit returns the task count cap, 0 meaning none.
func (c *Instance) CoreLimit() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return applyOverrides(c.vals, c.env).Cores.Limit
}

func (c *Instance) FirstCoreIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.env.firstIndex != nil {
		return *c.env.firstIndex
	}
	return c.vals.Cores.FirstIndex
}

// CoreMap returns the task to processor map, or nil if none is set.
func (c *Instance) CoreMap() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.env.coreMap != nil {
		return slices.Clone(c.env.coreMap)
	}
	return slices.Clone(c.vals.Cores.Map)
}

func (c *Instance) PinThreads() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Cores.PinThreads
}

func (c *Instance) StartupTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseDuration(c.vals.Cores.StartupTimeout, time.Second)
}

func (c *Instance) UpdatePacketRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Update.PacketRate
}
