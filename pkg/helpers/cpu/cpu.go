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

// Package cpu decides how many compression workers the client runs and
// which processor each of them is pinned to.
package cpu

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"
)

// MaxCores is the hard limit on concurrent compression tasks.
const MaxCores = 8

var ErrAffinityUnsupported = errors.New("thread affinity not supported on this platform")

// OnlineCores returns the number of logical processors currently online.
func OnlineCores() (int, error) {
	n, err := cpu.Counts(true)
	if err != nil {
		return 0, fmt.Errorf("failed to count cpu cores: %w", err)
	}
	if n < 1 {
		n = runtime.NumCPU()
	}
	return n, nil
}

// LimitedCores applies the configured limit to the online count. A limit
// of zero or less means no limit. The result is not capped at MaxCores.
func LimitedCores(online, limit int) int {
	if limit > 0 && limit < online {
		return limit
	}
	return online
}

// UsableCores is LimitedCores bounded to the task pool size. Counts outside
// 1..MaxCores fall back to MaxCores, so an undetectable machine still gets
// the full pool.
func UsableCores(online, limit int) int {
	cores := LimitedCores(online, limit)
	if cores < 1 || cores > MaxCores {
		cores = MaxCores
	}
	return cores
}

// DetectCores returns the usable task count for limit along with the
// limited processor count it was derived from. Detection failures are
// logged and fall back to MaxCores tasks.
func DetectCores(limit int) (usable, available int) {
	online, err := OnlineCores()
	if err != nil {
		log.Warn().Err(err).Msg("core detection failed")
	}
	usable = UsableCores(online, limit)
	available = LimitedCores(online, limit)
	log.Debug().
		Int("online", online).
		Int("limit", limit).
		Int("cores", usable).
		Msg("usable cores")
	return usable, available
}

// Layout maps task indexes to processor indexes.
type Layout struct {
	coreMap    []int
	first      int
	cores      int
	mapEnabled bool
}

// NewLayout builds the task to processor mapping for a machine whose
// limited processor count equals the task count.
func NewLayout(cores, first int, coreMap []int) Layout {
	return NewLimitedLayout(cores, cores, first, coreMap)
}

// NewLimitedLayout builds the task to processor mapping. coreMap holds one
// entry per task index, with negative values meaning unset. The map is
// only used when its valid entries match available, the processor count
// after the user limit but before the MaxCores cap; otherwise tasks are
// placed sequentially starting at first.
func NewLimitedLayout(cores, available, first int, coreMap []int) Layout {
	l := Layout{cores: cores, first: first}
	valid := 0
	for _, c := range coreMap {
		if c >= 0 && c < MaxCores {
			valid++
		}
	}
	if len(coreMap) > 0 && valid == available {
		l.coreMap = append([]int(nil), coreMap...)
		l.mapEnabled = true
		log.Debug().Ints("map", l.coreMap).Msg("core map enabled")
	}
	return l
}

func (l Layout) Cores() int {
	return l.cores
}

func (l Layout) MapEnabled() bool {
	return l.mapEnabled
}

// CPU returns the processor index for task.
func (l Layout) CPU(task int) int {
	if l.mapEnabled && task < len(l.coreMap) {
		return l.coreMap[task]
	}
	return task + l.first
}

// PinTask locks the calling goroutine to its OS thread and pins that
// thread to the processor for task. The goroutine stays locked; a worker
// that exits takes its thread with it.
func (l Layout) PinTask(task int) error {
	runtime.LockOSThread()
	cpuIndex := l.CPU(task)
	if _, err := setAffinity(cpuIndex); err != nil {
		return fmt.Errorf("failed to pin task %d to cpu %d: %w", task, cpuIndex, err)
	}
	return nil
}

// PinCaller pins the calling goroutine's thread to the processor for task
// until release is called. Release restores the previous affinity and
// unlocks the thread. Release is safe to call when pinning failed.
func (l Layout) PinCaller(task int) (release func(), err error) {
	runtime.LockOSThread()
	cpuIndex := l.CPU(task)
	restore, err := setAffinity(cpuIndex)
	if err != nil {
		runtime.UnlockOSThread()
		return func() {}, fmt.Errorf("failed to pin task %d to cpu %d: %w", task, cpuIndex, err)
	}
	return func() {
		restore()
		runtime.UnlockOSThread()
	}, nil
}
