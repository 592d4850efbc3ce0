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
	"time"

	"github.com/benbjohnson/clock"
	cerror "github.com/loomkit/loom/pkg/errors"
	"github.com/pingcap/errors"
)

// Join blocks the calling strand until f terminates, then returns f's
// result and error. A fiber caller suspends; a plain goroutine blocks.
// Join fails with ErrInterruptedWait if the caller is interrupted and
// with the context error if ctx ends first.
func (f *Fiber) Join(ctx context.Context) (interface{}, error) {
	return f.join(ctx, 0)
}

// JoinTimeout is Join with a bound: if f has not terminated within d it
// returns ErrJoinTimeout, which callers treat as a normal "not yet
// terminated" outcome via errors.Is.
func (f *Fiber) JoinTimeout(ctx context.Context, d time.Duration) (interface{}, error) {
	return f.join(ctx, d)
}

func (f *Fiber) join(ctx context.Context, d time.Duration) (interface{}, error) {
	cur := Acquire(ctx)

	f.mu.Lock()
	if f.state == StateTerminated {
		defer f.mu.Unlock()
		return f.result, f.err
	}
	w := &joinWaiter{s: cur}
	f.joiners = append(f.joiners, w)
	f.mu.Unlock()

	var timer *clock.Timer
	if d > 0 {
		timer = f.clk.AfterFunc(d, func() {
			f.mu.Lock()
			w.timedOut = true
			f.mu.Unlock()
			cur.Unpark()
		})
		defer timer.Stop()
	}
	stop := context.AfterFunc(ctx, func() {
		cur.Unpark()
	})
	defer stop()

	for {
		cur.Park()
		f.mu.Lock()
		if f.state == StateTerminated {
			defer f.mu.Unlock()
			return f.result, f.err
		}
		if w.timedOut {
			f.removeJoinerLocked(w)
			f.mu.Unlock()
			return nil, cerror.ErrJoinTimeout.GenWithStackByArgs()
		}
		if cur.Interrupted() {
			cur.ClearInterrupt()
			f.removeJoinerLocked(w)
			f.mu.Unlock()
			return nil, cerror.ErrInterruptedWait.GenWithStackByArgs()
		}
		if err := ctx.Err(); err != nil {
			f.removeJoinerLocked(w)
			f.mu.Unlock()
			return nil, errors.Trace(err)
		}
		// Spurious wake-up from a leftover permit.
		f.mu.Unlock()
	}
}

func (f *Fiber) removeJoinerLocked(w *joinWaiter) {
	for i, j := range f.joiners {
		if j == w {
			f.joiners = append(f.joiners[:i], f.joiners[i+1:]...)
			return
		}
	}
}
