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

// Package taskpool runs the compression tasks of one connection. Task 0
// runs inline on the caller's goroutine; tasks 1..N-1 are long-lived
// workers that each take one band per frame.
package taskpool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/arvid-client/pkg/band"
	"github.com/ZaparooProject/arvid-client/pkg/helpers/cpu"
	"github.com/ZaparooProject/arvid-client/pkg/helpers/syncutil"
	"github.com/ZaparooProject/arvid-client/pkg/protocol"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultStartupTimeout bounds how long New waits for workers to come up.
const DefaultStartupTimeout = time.Second

var (
	ErrStartup = errors.New("compression tasks failed to start")
	ErrClosed  = errors.New("task pool closed")
	ErrBusy    = errors.New("previous frame still in flight")
)

// State is the lifecycle state of a background worker.
type State int32

const (
	StateStarting State = iota
	StateIdle
	StateRunning
	StateStopping
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures a Pool.
type Options struct {
	Clock         clockwork.Clock
	Sender        band.Sender
	NewCompressor band.NewCompressorFunc
	// Transferred accumulates the bytes of every blit packet sent.
	Transferred    *atomic.Uint64
	Codec          protocol.Codec
	Layout         cpu.Layout
	StartupTimeout time.Duration
	// PinThreads pins every worker to the processor chosen by Layout. The
	// foreground task is pinned for the duration of each inline run, on
	// whichever goroutine calls Dispatch.
	PinThreads bool
}

type job struct {
	band band.Band
	seq  uint16
}

type worker struct {
	err   error
	start chan job
	done  *syncutil.Signal
	index int
	state atomic.Int32
}

func (w *worker) setState(s State) {
	w.state.Store(int32(s))
}

// Pool owns the tasks of one connection. It is driven from a single
// goroutine; only the workers themselves run concurrently.
type Pool struct {
	foreground *band.Task
	workers    []*worker
	pending    []*worker
	layout     cpu.Layout
	wg         sync.WaitGroup
	closed     bool
	pin        bool
}

// New creates a pool of layout.Cores() tasks and waits until every
// background worker has started. A worker whose compressor fails to
// initialise never reports in, so New fails with ErrStartup once the
// startup timeout has passed.
func New(opts Options) (*Pool, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = DefaultStartupTimeout
	}
	cores := opts.Layout.Cores()
	if cores < 1 || cores > cpu.MaxCores {
		return nil, fmt.Errorf("%w: invalid core count %d", ErrStartup, cores)
	}

	cfg := band.TaskConfig{
		Sender:        opts.Sender,
		NewCompressor: opts.NewCompressor,
		Transferred:   opts.Transferred,
		Codec:         opts.Codec,
	}

	fg, err := band.NewTask(0, cfg)
	if err != nil {
		log.Error().Err(err).Msg("foreground compression task failed to start")
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}

	p := &Pool{
		foreground: fg,
		workers:    make([]*worker, 0, cores-1),
		layout:     opts.Layout,
		pin:        opts.PinThreads,
	}
	started := syncutil.NewLatch(cores - 1)
	for i := 1; i < cores; i++ {
		w := &worker{
			index: i,
			start: make(chan job, 1),
			done:  syncutil.NewSignal(),
		}
		p.workers = append(p.workers, w)
		p.wg.Add(1)
		go p.serve(w, cfg, opts, started)
	}

	if err := started.WaitTimeout(opts.Clock, opts.StartupTimeout); err != nil {
		log.Error().
			Int("missing", started.Remaining()).
			Dur("timeout", opts.StartupTimeout).
			Msg("compression tasks did not start")
		p.Close()
		return nil, fmt.Errorf("%w: %d of %d workers missing", ErrStartup, started.Remaining(), cores-1)
	}

	log.Debug().Int("tasks", cores).Msg("compression tasks started")
	return p, nil
}

func (p *Pool) serve(w *worker, cfg band.TaskConfig, opts Options, started *syncutil.Latch) {
	defer p.wg.Done()
	defer w.setState(StateTerminated)

	if opts.PinThreads {
		if err := opts.Layout.PinTask(w.index); err != nil {
			log.Warn().Err(err).Int("task", w.index).Msg("failed to pin task")
		}
	}
	task, err := band.NewTask(w.index, cfg)
	if err != nil {
		log.Error().Err(err).Int("task", w.index).Msg("compression task failed to start")
		return
	}
	w.setState(StateIdle)
	started.CountDown()

	for j := range w.start {
		w.setState(StateRunning)
		w.err = task.Run(&j.band, j.seq)
		w.setState(StateIdle)
		w.done.Notify()
	}
	w.setState(StateStopping)
	log.Debug().Int("task", w.index).Msg("compression task stopped")
}

// Size returns the number of tasks, the foreground one included.
func (p *Pool) Size() int {
	return len(p.workers) + 1
}

// WorkerState returns the state of background task index (1..Size()-1).
func (p *Pool) WorkerState(index int) State {
	if index < 1 || index > len(p.workers) {
		return StateTerminated
	}
	return State(p.workers[index-1].state.Load())
}

// Busy reports whether a frame dispatched without waiting is still
// outstanding.
func (p *Pool) Busy() bool {
	return len(p.pending) > 0
}

// Dispatch splits frame into bands and hands one to each task. When wait
// is set every task, the foreground one included, takes part and Dispatch
// returns once the frame is sent. Otherwise only the background workers
// take part and Dispatch returns at once; the frame must then be drained
// with Wait before the next Dispatch. A pool with no background workers
// always runs the frame inline.
//
// Send and compression failures are returned joined but never stop the
// rest of the frame.
func (p *Pool) Dispatch(frame band.Frame, seq uint16, wait bool) error {
	if p.closed {
		return ErrClosed
	}
	if p.Busy() {
		return ErrBusy
	}
	if err := frame.Validate(); err != nil {
		return err
	}
	if len(p.workers) == 0 {
		wait = true
	}

	taskStart := 0
	if !wait {
		taskStart = 1
	}
	spans := band.Partition(frame.Height, p.Size()-taskStart)

	var fgErr error
	var fgSpan *band.Span
	for i, span := range spans {
		idx := taskStart + i
		if idx == 0 {
			fgSpan = &spans[i]
			continue
		}
		w := p.workers[idx-1]
		w.start <- job{band: frame.Band(span), seq: seq}
		p.pending = append(p.pending, w)
	}

	if !wait {
		return nil
	}
	if fgSpan != nil {
		b := frame.Band(*fgSpan)
		fgErr = p.runForeground(&b, seq)
	}
	return errors.Join(fgErr, p.Wait())
}

// runForeground runs task 0 inline, pinned to its processor only while it
// runs so the caller's goroutine is left unlocked afterwards.
func (p *Pool) runForeground(b *band.Band, seq uint16) error {
	if p.pin {
		release, err := p.layout.PinCaller(0)
		if err != nil {
			log.Warn().Err(err).Msg("failed to pin foreground task")
		}
		defer release()
	}
	return p.foreground.Run(b, seq)
}

// Wait blocks until every outstanding band has been sent.
func (p *Pool) Wait() error {
	errs := make([]error, 0, len(p.pending))
	for _, w := range p.pending {
		w.done.Wait()
		errs = append(errs, w.err)
	}
	p.pending = p.pending[:0]
	return errors.Join(errs...)
}

// Close stops every worker and waits for them to exit. A band still in
// flight is finished first.
func (p *Pool) Close() {
	if p.closed {
		return
	}
	p.closed = true
	for _, w := range p.workers {
		close(w.start)
	}
	p.wg.Wait()
	p.pending = nil
}
