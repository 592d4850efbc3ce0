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
	"testing"
	"time"

	cerror "github.com/loomkit/loom/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type funcTask func(workerID int)

func (f funcTask) Dispatch(workerID int) { f(workerID) }

// startPool runs a pool until the test ends. The returned pool must be
// idle before cleanup, which every test here guarantees by waiting for
// its tasks.
func startPool(t *testing.T, size int) *Pool {
	pool, err := NewPool(t.Name(), size)
	require.Nil(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- pool.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		require.ErrorIs(t, <-errCh, context.Canceled)
	})
	return pool
}

func TestInvalidSize(t *testing.T) {
	t.Parallel()
	_, err := NewPool("invalid", 0)
	require.True(t, cerror.ErrWorkerPoolInvalidSize.Equal(err))
	_, err = NewPool("invalid", -4)
	require.True(t, cerror.ErrWorkerPoolInvalidSize.Equal(err))
}

func TestRunsAllTasks(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 4)

	const n = 1000
	var wg sync.WaitGroup
	var count, badID atomic.Int64
	wg.Add(n)
	for i := 0; i < n; i++ {
		pool.Submit(funcTask(func(workerID int) {
			if workerID < 0 || workerID >= pool.Size() {
				badID.Add(1)
			}
			count.Add(1)
			wg.Done()
		}), NoHint)
	}
	wg.Wait()
	require.Equal(t, int64(n), count.Load())
	require.Equal(t, int64(0), badID.Load())
}

func TestWorkerHint(t *testing.T) {
	t.Parallel()
	pool, err := NewPool(t.Name(), 4)
	require.Nil(t, err)

	// Before Run there is nothing to steal, so hinted tasks stay on the
	// hinted worker's queue.
	for i := 0; i < 10; i++ {
		pool.Submit(funcTask(func(int) {}), 2)
	}
	require.Equal(t, 10, pool.workers[2].length())
	require.Equal(t, 0, pool.workers[0].length())

	// An out-of-range hint falls back to round-robin.
	for i := 0; i < 4; i++ {
		pool.Submit(funcTask(func(int) {}), 99)
	}
	for _, w := range pool.workers {
		require.GreaterOrEqual(t, w.length(), 1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = pool.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return !pool.queuedAny()
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestStealing(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 4)

	// Occupy worker 0 with a task that blocks until every other task has
	// run; the rest were queued behind it, so they can only run stolen.
	release := make(chan struct{})
	var rest sync.WaitGroup
	var onZero atomic.Int64

	blocker := funcTask(func(workerID int) {
		<-release
	})
	pool.workers[0].push(blocker)
	const n = 50
	rest.Add(n)
	for i := 0; i < n; i++ {
		pool.workers[0].push(funcTask(func(workerID int) {
			if workerID == 0 {
				onZero.Add(1)
			}
			rest.Done()
		}))
	}
	pool.mu.Lock()
	pool.cond.Broadcast()
	pool.mu.Unlock()

	rest.Wait()
	close(release)
	require.Equal(t, int64(0), onZero.Load())
}

func TestSubmitAfterStop(t *testing.T) {
	t.Parallel()
	pool, err := NewPool(t.Name(), 2)
	require.Nil(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = pool.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	// Dropped, not executed and not queued.
	pool.Submit(funcTask(func(int) {
		t.Error("task ran after pool stopped")
	}), NoHint)
	pool.mu.Lock()
	queued := pool.queuedAny()
	pool.mu.Unlock()
	require.False(t, queued)
}

func TestRunReturnsOnCancel(t *testing.T) {
	t.Parallel()
	pool, err := NewPool(t.Name(), 2)
	require.Nil(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- pool.Run(ctx)
	}()
	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}
}
