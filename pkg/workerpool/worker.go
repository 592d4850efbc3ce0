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
	"sync"

	"github.com/loomkit/loom/pkg/deque"
	"github.com/pingcap/errors"
)

type worker struct {
	id int

	mu sync.Mutex
	q  *deque.Deque[Task]
}

func newWorker(id int) *worker {
	return &worker{
		id: id,
		q:  deque.NewDequeDefault[Task](),
	}
}

func (w *worker) push(t Task) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.q.PushBack(t)
}

// popFront takes the oldest local task. Only the owning worker calls it.
func (w *worker) popFront() (Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.q.PopFront()
}

// stealBack takes the newest task from the victim's queue.
func (w *worker) stealBack() (Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.q.PopBack()
}

func (w *worker) length() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.q.Length()
}

func (w *worker) run(ctx context.Context, p *Pool) error {
	for {
		task, ok := w.popFront()
		if !ok {
			task, ok = p.steal(w.id)
		}
		if !ok {
			p.mu.Lock()
			if p.queuedAny() {
				p.mu.Unlock()
				continue
			}
			// WaitWithContext releases p.mu; it is not re-locked on
			// cancellation.
			if err := p.cond.WaitWithContext(ctx); err != nil {
				return errors.Trace(err)
			}
			p.mu.Unlock()
			continue
		}

		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		busyWorkers.WithLabelValues(p.name).Inc()
		task.Dispatch(w.id)
		busyWorkers.WithLabelValues(p.name).Dec()
	}
}
