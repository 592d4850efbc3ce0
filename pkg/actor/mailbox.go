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

package actor

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/loomkit/loom/pkg/actor/message"
	cerror "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/fiber"
	"github.com/loomkit/loom/pkg/list"
)

// ackToken lets SendSync block until its message is consumed.
type ackToken struct {
	s       fiber.Strand
	done    bool
	aborted bool
	reason  error
}

// entry is one queued mailbox message.
type entry struct {
	msg message.Message
	ack *ackToken
}

// producer is a sender blocked on a full bounded mailbox.
type producer struct {
	s        fiber.Strand
	ent      entry
	accepted bool
	aborted  bool
	reason   error
}

// mailbox is an actor's inbound queue. Selective receive needs an ordered
// sequence with removal at any position, not a strict FIFO pop: messages
// that fail every pattern stay queued in their original relative order.
// The queue is a linked list for that reason; the common case (everything
// matches) still behaves like a queue.
//
// The consumer is always the owning actor's strand, so there is at most
// one blocked receive at a time. Producers may block only when the
// mailbox is bounded, and wake in FIFO order.
type mailbox struct {
	mu sync.Mutex
	// capacity < 0 means unbounded.
	capacity int
	q        *list.List[entry]
	sendq    *list.List[*producer]
	closed   bool
	clk      clock.Clock

	consumer *consumerWait
}

type consumerWait struct {
	s        fiber.Strand
	timedOut bool
}

func newMailbox(capacity int, clk clock.Clock) *mailbox {
	if capacity <= 0 {
		capacity = -1
	}
	return &mailbox{
		capacity: capacity,
		q:        list.NewList[entry](),
		sendq:    list.NewList[*producer](),
		clk:      clk,
	}
}

func (mb *mailbox) len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.q.Len()
}

// push appends without blocking; a full bounded mailbox rejects with
// ErrMailboxFull.
func (mb *mailbox) push(ent entry) error {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return cerror.ErrActorStopped.GenWithStackByArgs()
	}
	if mb.capacity > 0 && mb.q.Len() >= mb.capacity {
		mb.mu.Unlock()
		return cerror.ErrMailboxFull.GenWithStackByArgs()
	}
	mb.appendLocked(ent)
	return nil
}

// pushSystem appends regardless of capacity. Exit signals and monitor
// notifications must never be lost to backpressure.
func (mb *mailbox) pushSystem(ent entry) error {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return cerror.ErrActorStopped.GenWithStackByArgs()
	}
	mb.appendLocked(ent)
	return nil
}

// appendLocked enqueues ent and wakes the blocked consumer, releasing
// the mailbox lock.
func (mb *mailbox) appendLocked(ent entry) {
	mb.q.PushBack(ent)
	w := mb.consumer
	mb.mu.Unlock()
	if w != nil {
		w.s.Unpark()
	}
}

// pushB appends, blocking while a bounded mailbox is full. Blocked
// producers are admitted in FIFO order as the consumer drains.
func (mb *mailbox) pushB(ctx context.Context, ent entry) error {
	cur := fiber.Acquire(ctx)

	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return cerror.ErrActorStopped.GenWithStackByArgs()
	}
	if mb.capacity < 0 || (mb.q.Len() < mb.capacity && mb.sendq.Len() == 0) {
		mb.appendLocked(ent)
		return nil
	}

	p := &producer{s: cur, ent: ent}
	elem := mb.sendq.PushBack(p)
	mb.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		mb.mu.Lock()
		if !p.accepted && !p.aborted {
			p.aborted = true
			p.reason = ctx.Err()
			mb.sendq.Remove(elem)
		}
		mb.mu.Unlock()
		cur.Unpark()
	})
	defer stop()

	for {
		cur.Park()
		mb.mu.Lock()
		if p.accepted {
			mb.mu.Unlock()
			return nil
		}
		if p.aborted {
			err := p.reason
			mb.mu.Unlock()
			return err
		}
		if cur.Interrupted() {
			cur.ClearInterrupt()
			mb.sendq.Remove(elem)
			mb.mu.Unlock()
			return cerror.ErrInterruptedWait.GenWithStackByArgs()
		}
		mb.mu.Unlock()
	}
}

// consumeLocked removes e from the queue, settles its ack, and promotes
// the head blocked producer into the freed slot. It returns the strands
// to unpark after the lock is released.
func (mb *mailbox) consumeLocked(e *list.Element[entry]) []fiber.Strand {
	var woken []fiber.Strand
	ent := mb.q.Remove(e)
	if ent.ack != nil {
		ent.ack.done = true
		woken = append(woken, ent.ack.s)
	}
	if pe := mb.sendq.Front(); pe != nil {
		p := mb.sendq.Remove(pe)
		p.accepted = true
		mb.q.PushBack(p.ent)
		woken = append(woken, p.s)
	}
	return woken
}

// matchLocked finds the first queued message, in arrival order, that
// matches one of the patterns (pattern order decides within a message);
// with no patterns it returns the head of the queue.
func (mb *mailbox) matchLocked(from *list.Element[entry], patterns []Pattern) (*list.Element[entry], *Pattern) {
	e := from
	if e == nil {
		e = mb.q.Front()
	} else {
		e = e.Next()
	}
	for ; e != nil; e = e.Next() {
		if len(patterns) == 0 {
			return e, nil
		}
		for i := range patterns {
			p := &patterns[i]
			if p.match != nil && p.match(e.Value.msg) {
				return e, p
			}
		}
	}
	return nil, nil
}

// receive implements plain and selective receive for the owning actor.
// d == 0 means no timeout. The returned pattern is nil for a plain
// receive and for a timeout settled by an AfterTimeout pattern the
// message is the zero Message.
func (mb *mailbox) receive(ctx context.Context, d time.Duration, patterns []Pattern) (message.Message, *Pattern, error) {
	var zero message.Message
	cur := fiber.Acquire(ctx)

	mb.mu.Lock()
	if e, p := mb.matchLocked(nil, patterns); e != nil {
		msg := e.Value.msg
		woken := mb.consumeLocked(e)
		mb.mu.Unlock()
		unparkAll(woken)
		return msg, p, nil
	}
	if mb.closed {
		mb.mu.Unlock()
		return zero, nil, cerror.ErrActorStopped.GenWithStackByArgs()
	}

	// Nothing matched: retain everything scanned and wait for arrivals.
	// Only new messages need testing on each wake-up.
	cursor := mb.q.Back()
	w := &consumerWait{s: cur}
	mb.consumer = w
	mb.mu.Unlock()

	var timer *clock.Timer
	if d > 0 {
		timer = mb.clk.AfterFunc(d, func() {
			mb.mu.Lock()
			w.timedOut = true
			mb.mu.Unlock()
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
		mb.mu.Lock()
		if e, p := mb.matchLocked(cursor, patterns); e != nil {
			msg := e.Value.msg
			woken := mb.consumeLocked(e)
			mb.consumer = nil
			mb.mu.Unlock()
			unparkAll(woken)
			return msg, p, nil
		}
		cursor = mb.q.Back()
		if w.timedOut {
			mb.consumer = nil
			mb.mu.Unlock()
			return zero, nil, cerror.ErrReceiveTimeout.GenWithStackByArgs()
		}
		if cur.Interrupted() {
			cur.ClearInterrupt()
			mb.consumer = nil
			mb.mu.Unlock()
			return zero, nil, cerror.ErrInterruptedWait.GenWithStackByArgs()
		}
		if err := ctx.Err(); err != nil {
			mb.consumer = nil
			mb.mu.Unlock()
			return zero, nil, err
		}
		if mb.closed {
			mb.consumer = nil
			mb.mu.Unlock()
			return zero, nil, cerror.ErrActorStopped.GenWithStackByArgs()
		}
		mb.mu.Unlock()
	}
}

// close tears the mailbox down: blocked producers and pending SendSync
// acks fail, and the blocked consumer, if any, wakes to observe closure.
func (mb *mailbox) close() {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return
	}
	mb.closed = true
	var woken []fiber.Strand
	for e := mb.sendq.Front(); e != nil; e = e.Next() {
		p := e.Value
		p.aborted = true
		p.reason = cerror.ErrActorStopped.GenWithStackByArgs()
		woken = append(woken, p.s)
	}
	mb.sendq = list.NewList[*producer]()
	for e := mb.q.Front(); e != nil; e = e.Next() {
		if ack := e.Value.ack; ack != nil && !ack.done {
			ack.aborted = true
			ack.reason = cerror.ErrActorStopped.GenWithStackByArgs()
			woken = append(woken, ack.s)
		}
	}
	if mb.consumer != nil {
		woken = append(woken, mb.consumer.s)
	}
	mb.mu.Unlock()
	unparkAll(woken)
}

func unparkAll(strands []fiber.Strand) {
	for _, s := range strands {
		s.Unpark()
	}
}
