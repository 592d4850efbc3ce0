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

// Package channel provides typed blocking transfer queues between
// strands. A Chann may be unbounded, bounded, or a zero-capacity
// rendezvous; senders and receivers block by parking their strand, so a
// fiber waiting on a channel holds no pool worker.
package channel

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/loomkit/loom/pkg/deque"
	cerror "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/fiber"
	"github.com/loomkit/loom/pkg/list"
	"github.com/pingcap/errors"
)

// Opt configures a channel at construction.
type Opt func(*config)

type config struct {
	cap int
	clk clock.Clock
}

// Cap configures the capacity: a negative value makes the channel
// unbounded, zero makes it a rendezvous channel with no buffer, and a
// positive n bounds the buffer to n messages.
func Cap(n int) Opt {
	return func(c *config) {
		if n < 0 {
			n = -1
		}
		c.cap = n
	}
}

// WithClock substitutes the clock driving timeout waits.
func WithClock(clk clock.Clock) Opt {
	return func(c *config) {
		c.clk = clk
	}
}

// waiter is one blocked producer or consumer. All fields are guarded by
// the channel mutex; the strand is parked outside it.
type waiter[T any] struct {
	s fiber.Strand
	// val carries the message: out of a blocked sender, into a blocked
	// receiver.
	val T
	// delivered means the transfer completed; it and aborted are
	// mutually exclusive and each is set at most once.
	delivered bool
	aborted   bool
	reason    error
}

// Chann is a typed FIFO transfer queue between strands.
//
// The consumer side binds to a strand on the first Receive call;
// concurrent multi-consumer receive is not a supported configuration.
// Messages from a single producer are observed in send order; across
// producers, order is arrival order at the channel lock.
type Chann[T any] struct {
	mu     sync.Mutex
	cap    int
	buf    *deque.Deque[T]
	sendq  *list.List[*waiter[T]]
	recvq  *list.List[*waiter[T]]
	closed bool

	// consumer is bound on first receive. Binding is only enforced for
	// callers whose context carries a strand; anonymous goroutines have
	// no stable identity to check.
	consumer fiber.Strand

	clk clock.Clock
}

// New creates a channel. Without options it is unbounded, matching the
// default actor mailbox.
func New[T any](opts ...Opt) *Chann[T] {
	cfg := &config{cap: -1, clk: clock.New()}
	for _, o := range opts {
		o(cfg)
	}
	return &Chann[T]{
		cap:   cfg.cap,
		buf:   deque.NewDequeDefault[T](),
		sendq: list.NewList[*waiter[T]](),
		recvq: list.NewList[*waiter[T]](),
		clk:   cfg.clk,
	}
}

// Cap returns the configured capacity (-1 unbounded, 0 rendezvous).
func (ch *Chann[T]) Cap() int {
	return ch.cap
}

// Len returns the number of buffered messages.
func (ch *Chann[T]) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.buf.Length()
}

// Send enqueues v, blocking while the channel is full (bounded) or until
// a receiver takes v (rendezvous). Unbounded sends never block.
func (ch *Chann[T]) Send(ctx context.Context, v T) error {
	return ch.send(ctx, v, 0)
}

// SendTimeout is Send with a bounded wait; it fails with ErrChannTimeout
// once d elapses.
func (ch *Chann[T]) SendTimeout(ctx context.Context, v T, d time.Duration) error {
	return ch.send(ctx, v, d)
}

func (ch *Chann[T]) send(ctx context.Context, v T, d time.Duration) error {
	cur := fiber.Acquire(ctx)

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return cerror.ErrChannClosed.GenWithStackByArgs()
	}

	// A waiting receiver exists only when the buffer is empty, so direct
	// hand-off keeps FIFO intact.
	if rw := ch.popRecvLocked(); rw != nil {
		rw.val = v
		rw.delivered = true
		ch.mu.Unlock()
		rw.s.Unpark()
		return nil
	}
	if ch.cap != 0 && (ch.cap < 0 || ch.buf.Length() < ch.cap) {
		ch.buf.PushBack(v)
		ch.mu.Unlock()
		return nil
	}

	// Bounded channel full, or rendezvous with no waiting receiver.
	w := &waiter[T]{s: cur, val: v}
	elem := ch.sendq.PushBack(w)
	ch.mu.Unlock()

	cleanup := ch.armCancel(ctx, w, elem, ch.sendq, d)
	defer cleanup()

	for {
		cur.Park()
		ch.mu.Lock()
		if w.delivered {
			ch.mu.Unlock()
			return nil
		}
		if w.aborted {
			err := w.reason
			ch.mu.Unlock()
			return err
		}
		if cur.Interrupted() {
			cur.ClearInterrupt()
			ch.sendq.Remove(elem)
			ch.mu.Unlock()
			return cerror.ErrInterruptedWait.GenWithStackByArgs()
		}
		// Spurious wake-up from a leftover permit.
		ch.mu.Unlock()
	}
}

// Receive dequeues the next message, blocking while the channel is
// empty. Receiving from a closed channel drains the buffer first, then
// fails with ErrChannClosed.
func (ch *Chann[T]) Receive(ctx context.Context) (T, error) {
	return ch.receive(ctx, 0)
}

// ReceiveTimeout is Receive with a bounded wait; it fails with
// ErrChannTimeout once d elapses, which callers treat as a normal "no
// message" outcome via errors.Is.
func (ch *Chann[T]) ReceiveTimeout(ctx context.Context, d time.Duration) (T, error) {
	return ch.receive(ctx, d)
}

func (ch *Chann[T]) receive(ctx context.Context, d time.Duration) (T, error) {
	var zero T
	cur := fiber.Acquire(ctx)

	ch.mu.Lock()
	if err := ch.bindConsumerLocked(ctx, cur); err != nil {
		ch.mu.Unlock()
		return zero, err
	}

	if v, ok := ch.takeLocked(); ok {
		ch.mu.Unlock()
		return v, nil
	}
	if ch.closed {
		ch.mu.Unlock()
		return zero, cerror.ErrChannClosed.GenWithStackByArgs()
	}

	w := &waiter[T]{s: cur}
	elem := ch.recvq.PushBack(w)
	ch.mu.Unlock()

	cleanup := ch.armCancel(ctx, w, elem, ch.recvq, d)
	defer cleanup()

	for {
		cur.Park()
		ch.mu.Lock()
		if w.delivered {
			v := w.val
			ch.mu.Unlock()
			return v, nil
		}
		if w.aborted {
			err := w.reason
			ch.mu.Unlock()
			return zero, err
		}
		if cur.Interrupted() {
			cur.ClearInterrupt()
			ch.recvq.Remove(elem)
			ch.mu.Unlock()
			return zero, cerror.ErrInterruptedWait.GenWithStackByArgs()
		}
		ch.mu.Unlock()
	}
}

// takeLocked removes the next available message: from the buffer,
// promoting the head blocked sender into the freed slot, or directly
// from a blocked rendezvous sender.
func (ch *Chann[T]) takeLocked() (T, bool) {
	if v, ok := ch.buf.PopFront(); ok {
		if sw := ch.popSendLocked(); sw != nil {
			ch.buf.PushBack(sw.val)
			sw.delivered = true
			sw.s.Unpark()
		}
		return v, true
	}
	if sw := ch.popSendLocked(); sw != nil {
		v := sw.val
		sw.delivered = true
		sw.s.Unpark()
		return v, true
	}
	var zero T
	return zero, false
}

func (ch *Chann[T]) popSendLocked() *waiter[T] {
	e := ch.sendq.Front()
	if e == nil {
		return nil
	}
	return ch.sendq.Remove(e)
}

func (ch *Chann[T]) popRecvLocked() *waiter[T] {
	e := ch.recvq.Front()
	if e == nil {
		return nil
	}
	return ch.recvq.Remove(e)
}

// bindConsumerLocked enforces attach-on-first-use of the consumer side.
func (ch *Chann[T]) bindConsumerLocked(ctx context.Context, cur fiber.Strand) error {
	if _, identifiable := fiber.FromContext(ctx); !identifiable {
		return nil
	}
	if ch.consumer == nil {
		ch.consumer = cur
		return nil
	}
	if ch.consumer != cur {
		return cerror.ErrChannConsumerBound.GenWithStackByArgs()
	}
	return nil
}

// armCancel installs the timeout and context hooks for a blocked waiter
// and returns their teardown.
func (ch *Chann[T]) armCancel(ctx context.Context, w *waiter[T], elem *list.Element[*waiter[T]], q *list.List[*waiter[T]], d time.Duration) func() {
	var timer *clock.Timer
	if d > 0 {
		timer = ch.clk.AfterFunc(d, func() {
			ch.abort(w, elem, q, cerror.ErrChannTimeout.GenWithStackByArgs())
		})
	}
	stop := context.AfterFunc(ctx, func() {
		ch.abort(w, elem, q, errors.Trace(ctx.Err()))
	})
	return func() {
		if timer != nil {
			timer.Stop()
		}
		stop()
	}
}

// abort wakes a blocked waiter with a failure unless the transfer
// already completed.
func (ch *Chann[T]) abort(w *waiter[T], elem *list.Element[*waiter[T]], q *list.List[*waiter[T]], reason error) {
	ch.mu.Lock()
	if w.delivered || w.aborted {
		ch.mu.Unlock()
		return
	}
	w.aborted = true
	w.reason = reason
	q.Remove(elem)
	ch.mu.Unlock()
	w.s.Unpark()
}

// Close tears the channel down: blocked senders and receivers fail with
// ErrChannClosed, further sends fail, and receives drain what remains in
// the buffer before failing. Close is idempotent.
func (ch *Chann[T]) Close() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	var woken []fiber.Strand
	for e := ch.sendq.Front(); e != nil; e = e.Next() {
		w := e.Value
		w.aborted = true
		w.reason = cerror.ErrChannClosed.GenWithStackByArgs()
		woken = append(woken, w.s)
	}
	for e := ch.recvq.Front(); e != nil; e = e.Next() {
		w := e.Value
		w.aborted = true
		w.reason = cerror.ErrChannClosed.GenWithStackByArgs()
		woken = append(woken, w.s)
	}
	ch.sendq = list.NewList[*waiter[T]]()
	ch.recvq = list.NewList[*waiter[T]]()
	ch.mu.Unlock()

	for _, s := range woken {
		s.Unpark()
	}
}
