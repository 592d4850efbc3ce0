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

	"github.com/google/uuid"
	"github.com/loomkit/loom/pkg/actor/message"
	cerror "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/fiber"
)

// ID is ID for actors.
type ID uint64

// Pattern is one (predicate, handler) pair of a selective receive.
// Patterns are tested in the order given; the first one whose match
// accepts a message consumes it.
type Pattern struct {
	match func(message.Message) bool
	apply func(ctx context.Context, msg message.Message) (interface{}, error)
	// afterTimeout marks the pattern that settles a timed-out receive.
	afterTimeout bool
}

// When builds a pattern from a predicate and a handler.
func When(match func(message.Message) bool, apply func(ctx context.Context, msg message.Message) (interface{}, error)) Pattern {
	return Pattern{match: match, apply: apply}
}

// Any is the catch-all pattern: it matches every message.
func Any(apply func(ctx context.Context, msg message.Message) (interface{}, error)) Pattern {
	return Pattern{match: func(message.Message) bool { return true }, apply: apply}
}

// AfterTimeout builds the pattern invoked when a bounded receive elapses
// without a match; its handler sees the zero Message. Without one, a
// timed-out receive fails with ErrReceiveTimeout.
func AfterTimeout(apply func(ctx context.Context, msg message.Message) (interface{}, error)) Pattern {
	return Pattern{apply: apply, afterTimeout: true}
}

// Ref is the handle to a spawned actor.
type Ref struct {
	id     ID
	name   string
	sys    *System
	fib    *fiber.Fiber
	mb     *mailbox
	trap   bool
	trapMu sync.Mutex

	// relMu guards links, monitors, the exit-reason freeze and the
	// terminated flag. No lock spans two actors except the ID-ordered
	// pairwise locking in Link/Unlink.
	relMu      sync.Mutex
	links      map[ID]*Ref
	monitors   map[uuid.UUID]*Ref
	terminated bool
	exitReason message.Reason

	// pendingExit, once set, overrides the body outcome as the exit
	// reason: it carries kills and untrapped link signals.
	pendingMu   sync.Mutex
	pendingExit *message.Reason
}

// ID returns the actor's ID.
func (r *Ref) ID() ID { return r.id }

// Name returns the optional name.
func (r *Ref) Name() string { return r.name }

// Fiber returns the actor's underlying fiber.
func (r *Ref) Fiber() *fiber.Fiber { return r.fib }

// MailboxLen returns the number of pending mailbox messages.
func (r *Ref) MailboxLen() int { return r.mb.len() }

// SetTrapExit toggles conversion of exit signals into ordinary TypeExit
// mailbox messages. A trapping actor survives linked peers' deaths.
func (r *Ref) SetTrapExit(trap bool) {
	r.trapMu.Lock()
	r.trap = trap
	r.trapMu.Unlock()
}

func (r *Ref) trapping() bool {
	r.trapMu.Lock()
	defer r.trapMu.Unlock()
	return r.trap
}

// ExitReason returns the terminal exit reason; ok is false until the
// actor has terminated.
func (r *Ref) ExitReason() (message.Reason, bool) {
	r.relMu.Lock()
	defer r.relMu.Unlock()
	return r.exitReason, r.terminated
}

// Send is the fire-and-forget enqueue. On a bounded mailbox it fails
// with ErrMailboxFull instead of blocking.
func (r *Ref) Send(v interface{}) error {
	return r.mb.push(entry{msg: message.ValueMessage(v)})
}

// SendB sends v, blocking while a bounded mailbox is full.
func (r *Ref) SendB(ctx context.Context, v interface{}) error {
	return r.mb.pushB(ctx, entry{msg: message.ValueMessage(v)})
}

// SendSync sends v and blocks the calling strand until the actor has
// consumed it (dequeued by a plain receive or matched by a selective
// one), not merely enqueued it.
func (r *Ref) SendSync(ctx context.Context, v interface{}) error {
	cur := fiber.Acquire(ctx)
	ack := &ackToken{s: cur}
	if err := r.mb.pushB(ctx, entry{msg: message.ValueMessage(v), ack: ack}); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		cur.Unpark()
	})
	defer stop()

	for {
		cur.Park()
		r.mb.mu.Lock()
		if ack.done {
			r.mb.mu.Unlock()
			return nil
		}
		if ack.aborted {
			err := ack.reason
			r.mb.mu.Unlock()
			return err
		}
		if cur.Interrupted() {
			cur.ClearInterrupt()
			r.mb.mu.Unlock()
			return cerror.ErrInterruptedWait.GenWithStackByArgs()
		}
		if err := ctx.Err(); err != nil {
			r.mb.mu.Unlock()
			return err
		}
		r.mb.mu.Unlock()
	}
}

// Kill terminates the actor from outside with the killed reason. The
// actor is woken from any blocking wait; running computation is not
// forcibly stopped and the kill takes effect at the next suspension
// point or receive call.
func (r *Ref) Kill() {
	r.requestExit(message.Reason{Kind: message.ReasonKilled})
}

// requestExit records the first external exit request and wakes the
// actor so it observes it.
func (r *Ref) requestExit(reason message.Reason) {
	r.pendingMu.Lock()
	if r.pendingExit == nil {
		r.pendingExit = &reason
	}
	r.pendingMu.Unlock()
	r.fib.Interrupt()
}

func (r *Ref) pendingExitReason() *message.Reason {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	return r.pendingExit
}

// exitError is the error a receive surfaces for a pending exit request,
// keeping the error identity consistent with the reason kind.
func exitError(reason *message.Reason) error {
	if reason.Kind == message.ReasonLinkedDown && reason.Err != nil {
		return reason.Err
	}
	return cerror.ErrActorKilled.GenWithStackByArgs()
}

// Join blocks until the actor terminates, returning its body result.
func (r *Ref) Join(ctx context.Context) (interface{}, error) {
	return r.fib.Join(ctx)
}

// JoinTimeout is Join bounded by d; see fiber.JoinTimeout.
func (r *Ref) JoinTimeout(ctx context.Context, d time.Duration) (interface{}, error) {
	return r.fib.JoinTimeout(ctx, d)
}

type selfCtxKey struct{}

func withSelf(ctx context.Context, r *Ref) context.Context {
	return context.WithValue(ctx, selfCtxKey{}, r)
}

// Self returns the actor whose body is executing, if ctx belongs to one.
func Self(ctx context.Context) (*Ref, bool) {
	r, ok := ctx.Value(selfCtxKey{}).(*Ref)
	return r, ok
}

// Receive dequeues the next mailbox message in arrival order, blocking
// while the mailbox is empty. Only the actor's own body may call it.
func Receive(ctx context.Context) (message.Message, error) {
	r, ok := Self(ctx)
	if !ok {
		return message.Message{}, cerror.ErrNotActorContext.GenWithStackByArgs()
	}
	if reason := r.pendingExitReason(); reason != nil {
		return message.Message{}, exitError(reason)
	}
	msg, _, err := r.mb.receive(ctx, 0, nil)
	if err != nil && cerror.ErrInterruptedWait.Equal(err) {
		if reason := r.pendingExitReason(); reason != nil {
			return message.Message{}, exitError(reason)
		}
	}
	return msg, err
}

// ReceiveMatch performs selective receive: the oldest pending message
// matching one of the patterns is consumed and its handler's result
// returned; messages matching no pattern are retained in their original
// order for later receives. With no pending match the call blocks until
// a matching message arrives. A call with no catch-all pattern and no
// timeout blocks indefinitely; supplying one is the caller's job.
func ReceiveMatch(ctx context.Context, patterns ...Pattern) (interface{}, error) {
	return receiveMatch(ctx, 0, patterns)
}

// ReceiveMatchTimeout is ReceiveMatch bounded by d. On timeout an
// AfterTimeout pattern, when supplied, settles the call; otherwise it
// fails with ErrReceiveTimeout.
func ReceiveMatchTimeout(ctx context.Context, d time.Duration, patterns ...Pattern) (interface{}, error) {
	return receiveMatch(ctx, d, patterns)
}

func receiveMatch(ctx context.Context, d time.Duration, patterns []Pattern) (interface{}, error) {
	r, ok := Self(ctx)
	if !ok {
		return nil, cerror.ErrNotActorContext.GenWithStackByArgs()
	}
	if reason := r.pendingExitReason(); reason != nil {
		return nil, exitError(reason)
	}

	matchable := patterns[:0:0]
	var after *Pattern
	for i := range patterns {
		if patterns[i].afterTimeout {
			after = &patterns[i]
			continue
		}
		matchable = append(matchable, patterns[i])
	}
	if len(matchable) == 0 && after != nil {
		// Pure timed wait: consume nothing, fire the timeout handler.
		matchable = []Pattern{{match: func(message.Message) bool { return false }}}
	}

	msg, p, err := r.mb.receive(ctx, d, matchable)
	if err != nil {
		if after != nil && cerror.ErrReceiveTimeout.Equal(err) {
			return after.apply(ctx, message.Message{})
		}
		if cerror.ErrInterruptedWait.Equal(err) {
			if reason := r.pendingExitReason(); reason != nil {
				return nil, exitError(reason)
			}
		}
		return nil, err
	}
	if p == nil || p.apply == nil {
		return msg, nil
	}
	return p.apply(ctx, msg)
}
