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
	"testing"
	"time"

	cerror "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/instrument"
	"github.com/loomkit/loom/pkg/workerpool"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func startPool(t *testing.T, size int) *workerpool.Pool {
	pool, err := workerpool.NewPool(t.Name(), size)
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

func proc(f func(ctx context.Context) (interface{}, error)) instrument.Proc {
	return instrument.MustMake(f)
}

func TestSpawnValidation(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 1)

	_, err := New(context.Background(), SpawnConfig{Pool: pool})
	require.True(t, cerror.ErrNotSuspendable.Equal(err))

	_, err = New(context.Background(), SpawnConfig{
		Body: proc(func(ctx context.Context) (interface{}, error) { return nil, nil }),
	})
	require.True(t, cerror.ErrPoolRequired.Equal(err))
}

func TestJoinResult(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 2)

	f, err := Go(context.Background(), SpawnConfig{
		Name: "answer",
		Pool: pool,
		Body: proc(func(ctx context.Context) (interface{}, error) {
			return 42, nil
		}),
	})
	require.Nil(t, err)

	res, err := f.Join(context.Background())
	require.Nil(t, err)
	require.Equal(t, 42, res)
	require.Equal(t, StateTerminated, f.State())

	// Joining a terminated fiber returns immediately with the same result.
	res, err = f.Join(context.Background())
	require.Nil(t, err)
	require.Equal(t, 42, res)
}

func TestJoinError(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 2)

	boom := errors.New("boom")
	f, err := Go(context.Background(), SpawnConfig{
		Pool: pool,
		Body: proc(func(ctx context.Context) (interface{}, error) {
			return nil, boom
		}),
	})
	require.Nil(t, err)

	_, err = f.Join(context.Background())
	require.True(t, errors.ErrorEqual(err, boom))
}

func TestBodyPanic(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 2)

	f, err := Go(context.Background(), SpawnConfig{
		Pool: pool,
		Body: proc(func(ctx context.Context) (interface{}, error) {
			panic("kaboom")
		}),
	})
	require.Nil(t, err)

	_, err = f.Join(context.Background())
	require.True(t, cerror.ErrFiberPanic.Equal(err))
	require.Equal(t, StateTerminated, f.State())
}

func TestSuspendResume(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 2)

	f, err := Go(context.Background(), SpawnConfig{
		Pool: pool,
		Body: proc(func(ctx context.Context) (interface{}, error) {
			self := Acquire(ctx)
			self.Park()
			return "resumed", nil
		}),
	})
	require.Nil(t, err)

	require.Eventually(t, func() bool {
		return f.State() == StateSuspended
	}, 5*time.Second, time.Millisecond)

	f.Resume()
	res, err := f.Join(context.Background())
	require.Nil(t, err)
	require.Equal(t, "resumed", res)

	// Resuming a terminated fiber is a no-op.
	f.Resume()
	require.Equal(t, StateTerminated, f.State())
}

func TestResumeBeforeParkLeavesPermit(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 2)

	entered := make(chan struct{})
	f, err := Go(context.Background(), SpawnConfig{
		Pool: pool,
		Body: proc(func(ctx context.Context) (interface{}, error) {
			close(entered)
			// The resume below may land before this park; the permit
			// guarantees it is not lost either way.
			Acquire(ctx).Park()
			return nil, nil
		}),
	})
	require.Nil(t, err)

	<-entered
	f.Resume()
	_, err = f.Join(context.Background())
	require.Nil(t, err)
}

func TestJoinTimeout(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 2)

	f, err := Go(context.Background(), SpawnConfig{
		Pool: pool,
		Body: proc(func(ctx context.Context) (interface{}, error) {
			Acquire(ctx).Park()
			return "done", nil
		}),
	})
	require.Nil(t, err)

	_, err = f.JoinTimeout(context.Background(), 20*time.Millisecond)
	require.True(t, cerror.ErrJoinTimeout.Equal(err))

	require.Eventually(t, func() bool {
		return f.State() == StateSuspended
	}, 5*time.Second, time.Millisecond)
	f.Resume()
	res, err := f.Join(context.Background())
	require.Nil(t, err)
	require.Equal(t, "done", res)
}

func TestJoinContextCancel(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 2)

	f, err := Go(context.Background(), SpawnConfig{
		Pool: pool,
		Body: proc(func(ctx context.Context) (interface{}, error) {
			Acquire(ctx).Park()
			return nil, nil
		}),
	})
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = f.Join(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Eventually(t, func() bool {
		return f.State() == StateSuspended
	}, 5*time.Second, time.Millisecond)
	f.Resume()
	_, err = f.Join(context.Background())
	require.Nil(t, err)
}

func TestInterruptWakesParked(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 2)

	f, err := Go(context.Background(), SpawnConfig{
		Pool: pool,
		Body: proc(func(ctx context.Context) (interface{}, error) {
			self := Acquire(ctx)
			for {
				self.Park()
				if self.ClearInterrupt() {
					return nil, cerror.ErrInterruptedWait.GenWithStackByArgs()
				}
			}
		}),
	})
	require.Nil(t, err)

	require.Eventually(t, func() bool {
		return f.State() == StateSuspended
	}, 5*time.Second, time.Millisecond)

	f.Interrupt()
	_, err = f.Join(context.Background())
	require.True(t, cerror.ErrInterruptedWait.Equal(err))
	require.False(t, f.Interrupted())
}

func TestStartIdempotent(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 2)

	var runs atomic.Int64
	f, err := New(context.Background(), SpawnConfig{
		Pool: pool,
		Body: proc(func(ctx context.Context) (interface{}, error) {
			runs.Add(1)
			return nil, nil
		}),
	})
	require.Nil(t, err)
	require.Equal(t, StateNew, f.State())

	f.Start()
	f.Start()
	_, err = f.Join(context.Background())
	require.Nil(t, err)
	require.Equal(t, int64(1), runs.Load())
}

func TestManyFibersFewWorkers(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 2)

	const n = 100
	var parked atomic.Int64
	fibers := make([]*Fiber, 0, n)
	for i := 0; i < n; i++ {
		i := i
		f, err := Go(context.Background(), SpawnConfig{
			Pool: pool,
			Body: proc(func(ctx context.Context) (interface{}, error) {
				parked.Add(1)
				Acquire(ctx).Park()
				return i, nil
			}),
		})
		require.Nil(t, err)
		fibers = append(fibers, f)
	}

	// All bodies reach their suspension point despite only two workers.
	require.Eventually(t, func() bool {
		return parked.Load() == int64(n)
	}, 5*time.Second, time.Millisecond)

	for _, f := range fibers {
		f.Resume()
	}
	for i, f := range fibers {
		res, err := f.Join(context.Background())
		require.Nil(t, err)
		require.Equal(t, i, res)
	}
}

func TestOnTerminate(t *testing.T) {
	t.Parallel()
	pool := startPool(t, 2)

	got := make(chan interface{}, 1)
	f, err := New(context.Background(), SpawnConfig{
		Pool: pool,
		Body: proc(func(ctx context.Context) (interface{}, error) {
			return "bye", nil
		}),
	})
	require.Nil(t, err)
	f.OnTerminate(func(result interface{}, err error) {
		got <- result
	})
	f.Start()

	_, err = f.Join(context.Background())
	require.Nil(t, err)
	require.Equal(t, "bye", <-got)
}

func TestThreadStrandPermit(t *testing.T) {
	t.Parallel()
	s := NewThreadStrand("plain")
	require.Equal(t, KindThread, s.Kind())

	// Unpark before Park leaves a permit, extra unparks collapse into it.
	s.Unpark()
	s.Unpark()
	s.Park()

	s.Interrupt()
	s.Park()
	require.True(t, s.Interrupted())
	require.True(t, s.ClearInterrupt())
	require.False(t, s.Interrupted())
}

func TestAcquire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, ok := FromContext(ctx)
	require.False(t, ok)

	s := NewThreadStrand("me")
	ctx = WithStrand(ctx, s)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, s, got)
	require.Equal(t, s, Acquire(ctx))
}
