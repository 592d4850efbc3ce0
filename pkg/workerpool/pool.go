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

package workerpool

import (
	"context"
	"runtime"
	"sync"

	cerror "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/syncutil"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Task is a unit of runnable work. Dispatch is called on a worker
// goroutine and returns when the task either completes or yields the
// worker. workerID identifies the dispatching worker and may be passed
// back to Submit as a locality hint.
type Task interface {
	Dispatch(workerID int)
}

// NoHint tells Submit to pick a worker round-robin.
const NoHint = -1

// Pool runs tasks on a fixed set of workers with work stealing: each
// worker owns a run queue and pops from its front; a worker whose queue
// is empty steals from the back of a victim's queue. The pool size is
// fixed at construction; a full pool never rejects a Submit, it only
// delays execution.
type Pool struct {
	name    string
	workers []*worker

	// mu guards the idle condition. Queue contents are guarded by
	// per-worker locks; Broadcast is always issued under mu so a worker
	// that checked all queues under mu cannot miss a wake-up.
	mu   sync.Mutex
	cond *syncutil.Cond

	nextWorkerIdx atomic.Int64
	closed        atomic.Bool
}

// NewPool creates a pool of size workers.
func NewPool(name string, size int) (*Pool, error) {
	if size <= 0 {
		return nil, cerror.ErrWorkerPoolInvalidSize.GenWithStackByArgs(size)
	}
	p := &Pool{name: name}
	p.cond = syncutil.NewCond(&p.mu)
	for i := 0; i < size; i++ {
		p.workers = append(p.workers, newWorker(i))
	}
	totalWorkers.WithLabelValues(name).Add(float64(size))
	return p, nil
}

// NewDefaultPool creates a pool sized to the available parallelism.
func NewDefaultPool(name string) *Pool {
	p, err := NewPool(name, runtime.GOMAXPROCS(0))
	if err != nil {
		// GOMAXPROCS is always positive.
		panic(err)
	}
	return p
}

// Size returns the fixed number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Run executes tasks until ctx is canceled.
func (p *Pool) Run(ctx context.Context) error {
	defer p.closed.Store(true)
	errg, ctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		errg.Go(func() error {
			return w.run(ctx, p)
		})
	}
	return errg.Wait()
}

// Submit enqueues task for execution. workerHint targets a specific
// worker's queue (use the dispatching worker's ID for cache locality when
// re-submitting resumed work); NoHint distributes round-robin.
//
// Submit never blocks and never fails; tasks submitted after the pool
// stopped are dropped.
func (p *Pool) Submit(task Task, workerHint int) {
	if p.closed.Load() {
		return
	}
	idx := workerHint
	if idx < 0 || idx >= len(p.workers) {
		idx = int((p.nextWorkerIdx.Add(1) - 1) % int64(len(p.workers)))
	}
	p.workers[idx].push(task)
	submittedTasks.WithLabelValues(p.name).Inc()

	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// queuedAny reports whether any worker has pending tasks.
// Callers must hold p.mu.
func (p *Pool) queuedAny() bool {
	for _, w := range p.workers {
		if w.length() > 0 {
			return true
		}
	}
	return false
}

// steal takes one task from the back of another worker's queue.
func (p *Pool) steal(thiefID int) (Task, bool) {
	n := len(p.workers)
	for i := 1; i < n; i++ {
		victim := p.workers[(thiefID+i)%n]
		if t, ok := victim.stealBack(); ok {
			stolenTasks.WithLabelValues(p.name).Inc()
			return t, true
		}
	}
	return nil, false
}
