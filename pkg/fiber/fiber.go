// Copyright 2024 The Loom Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package fiber

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	cerror "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/instrument"
	"github.com/loomkit/loom/pkg/workerpool"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// State is a fiber lifecycle state.
type State int

// Fiber states. A fiber moves NEW -> RUNNABLE -> (RUNNING <-> SUSPENDED)*
// -> TERMINATED and reaches TERMINATED exactly once.
const (
	StateNew State = iota
	StateRunnable
	StateRunning
	StateSuspended
	StateTerminated
)

var nextFiberID atomic.Uint64

// SpawnConfig configures a new fiber. Body is required and must have been
// instrumented with instrument.Make; Pool is required, there is no
// ambient default pool.
type SpawnConfig struct {
	// Name is an optional label used in logs.
	Name string
	// Pool schedules the fiber.
	Pool *workerpool.Pool
	// StackSizeHint is advisory; goroutine stacks grow on demand, so it
	// is recorded but has no effect on execution.
	StackSizeHint int
	// Body is the suspendable procedure the fiber runs.
	Body instrument.Proc
	// Clock drives join timeouts; defaults to the wall clock.
	Clock clock.Clock
}

// Fiber is a cooperatively scheduled unit of execution multiplexed onto a
// worker pool. The body runs on its own goroutine, but makes progress only
// while a worker is dispatching it; at suspension points the fiber hands
// the worker back and is re-submitted on resume.
type Fiber struct {
	id            uint64
	name          string
	pool          *workerpool.Pool
	stackSizeHint int
	body          instrument.Proc
	baseCtx       context.Context
	clk           clock.Clock

	mu      sync.Mutex
	state   State
	permit  bool
	started bool
	joiners []*joinWaiter

	// gate hands a worker to the fiber; yield hands it back. Both are
	// unbuffered so the ownership transfer is a strict rendezvous.
	gate  chan struct{}
	yield chan struct{}

	workerHint  atomic.Int32
	interrupted atomic.Bool

	result interface{}
	err    error
	done   chan struct{}

	// onTerminate callbacks run once, after the state turns TERMINATED
	// and before joiners wake. Registered only before Start.
	onTerminate []func(result interface{}, err error)
}

type joinWaiter struct {
	s        Strand
	timedOut bool
}

// New creates a fiber in the NEW state without scheduling it. Most
// callers want Go; New exists so that a creator can finish wiring (for
// example, linking a freshly spawned actor) before the body can run.
func New(ctx context.Context, cfg SpawnConfig) (*Fiber, error) {
	if !cfg.Body.Valid() || !instrument.IsSuspendable(cfg.Body) {
		return nil, cerror.ErrNotSuspendable.GenWithStackByArgs()
	}
	if cfg.Pool == nil {
		return nil, cerror.ErrPoolRequired.GenWithStackByArgs()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	f := &Fiber{
		id:            nextFiberID.Add(1),
		name:          cfg.Name,
		pool:          cfg.Pool,
		stackSizeHint: cfg.StackSizeHint,
		body:          cfg.Body,
		baseCtx:       ctx,
		clk:           clk,
		state:         StateNew,
		gate:          make(chan struct{}),
		yield:         make(chan struct{}),
		done:          make(chan struct{}),
	}
	f.workerHint.Store(int32(workerpool.NoHint))
	return f, nil
}

// Go creates a fiber and schedules it immediately.
func Go(ctx context.Context, cfg SpawnConfig) (*Fiber, error) {
	f, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	f.Start()
	return f, nil
}

// Start schedules a NEW fiber. Calling Start more than once is a no-op.
func (f *Fiber) Start() {
	f.mu.Lock()
	if f.state != StateNew {
		f.mu.Unlock()
		return
	}
	f.state = StateRunnable
	f.mu.Unlock()
	f.pool.Submit(f, workerpool.NoHint)
}

// ID returns the fiber's process-unique ID.
func (f *Fiber) ID() uint64 { return f.id }

// Name returns the optional name.
func (f *Fiber) Name() string { return f.name }

// Kind implements Strand.
func (f *Fiber) Kind() Kind { return KindFiber }

// State returns the current lifecycle state.
func (f *Fiber) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Done is closed when the fiber terminates.
func (f *Fiber) Done() <-chan struct{} { return f.done }

// OnTerminate registers a callback invoked once at termination with the
// fiber's result and error. It must be called before Start.
func (f *Fiber) OnTerminate(fn func(result interface{}, err error)) {
	f.onTerminate = append(f.onTerminate, fn)
}

// Dispatch implements workerpool.Task: it lends the calling worker to the
// fiber until the fiber suspends or terminates.
func (f *Fiber) Dispatch(workerID int) {
	f.workerHint.Store(int32(workerID))
	f.mu.Lock()
	if f.state == StateTerminated {
		f.mu.Unlock()
		return
	}
	f.state = StateRunning
	first := !f.started
	f.started = true
	f.mu.Unlock()

	if first {
		go f.run()
	}
	f.gate <- struct{}{}
	<-f.yield
}

// run is the fiber goroutine. It waits for the first dispatch, executes
// the body, and hands the worker back exactly once per dispatch.
func (f *Fiber) run() {
	<-f.gate
	ctx := WithStrand(f.baseCtx, f)

	var res interface{}
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("fiber body panicked",
					zap.Uint64("fiberID", f.id),
					zap.String("name", f.name),
					zap.Any("panic", r),
					zap.Stack("stack"))
				err = cerror.ErrFiberPanic.GenWithStackByArgs(r)
			}
		}()
		res, err = f.body.Call(ctx)
	}()

	f.mu.Lock()
	f.state = StateTerminated
	f.result, f.err = res, err
	joiners := f.joiners
	f.joiners = nil
	f.mu.Unlock()

	for _, cb := range f.onTerminate {
		cb(res, err)
	}
	close(f.done)
	for _, w := range joiners {
		w.s.Unpark()
	}
	f.yield <- struct{}{}
}

// park blocks the fiber at a suspension point, returning the worker to
// the pool. It returns immediately when a permit is pending. Must be
// called from the fiber's own goroutine.
func (f *Fiber) park() {
	f.mu.Lock()
	if f.permit {
		f.permit = false
		f.mu.Unlock()
		return
	}
	f.state = StateSuspended
	f.mu.Unlock()

	f.yield <- struct{}{}
	<-f.gate
}

// Park implements Strand.
func (f *Fiber) Park() { f.park() }

// Unpark implements Strand. See Resume.
func (f *Fiber) Unpark() { f.Resume() }

// Resume makes a SUSPENDED fiber runnable again, re-submitting it with
// its last worker as the locality hint. Resuming a fiber that is not
// suspended leaves a one-shot permit consumed by its next park, so a
// wake-up racing the sleeper is never lost; resuming a TERMINATED fiber
// is a no-op.
func (f *Fiber) Resume() {
	f.mu.Lock()
	switch f.state {
	case StateSuspended:
		f.state = StateRunnable
		f.mu.Unlock()
		f.pool.Submit(f, int(f.workerHint.Load()))
	case StateTerminated:
		f.mu.Unlock()
	default:
		// NEW, RUNNABLE or RUNNING: the fiber is not sleeping yet. Leave a
		// one-shot permit so a wake-up racing the next park is never lost.
		f.permit = true
		f.mu.Unlock()
	}
}

// Interrupt wakes the fiber from any blocking wait with an interruption
// failure. It does not stop running computation.
func (f *Fiber) Interrupt() {
	f.interrupted.Store(true)
	f.Resume()
}

// Interrupted implements Strand.
func (f *Fiber) Interrupted() bool {
	return f.interrupted.Load()
}

// ClearInterrupt implements Strand.
func (f *Fiber) ClearInterrupt() bool {
	return f.interrupted.Swap(false)
}
