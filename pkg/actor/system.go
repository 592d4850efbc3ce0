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

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/loomkit/loom/pkg/actor/message"
	cerror "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/fiber"
	"github.com/loomkit/loom/pkg/instrument"
	"github.com/loomkit/loom/pkg/retry"
	"github.com/loomkit/loom/pkg/workerpool"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// SystemOpt configures a System.
type SystemOpt func(*System)

// WithClock substitutes the clock driving receive and join timeouts.
func WithClock(clk clock.Clock) SystemOpt {
	return func(s *System) {
		s.clk = clk
	}
}

// System spawns actors onto a worker pool and propagates exit signals
// through their link and monitor relations. Cross-actor coordination
// happens only through mailbox messages and exit signals; the system
// holds no lock spanning two actors beyond ID-ordered pairwise locking.
type System struct {
	name string
	pool *workerpool.Pool
	clk  clock.Clock

	mu     sync.RWMutex
	actors map[ID]*Ref

	nextID atomic.Uint64
}

// NewSystem creates an actor system scheduling on pool. There is no
// ambient default pool; the caller owns the pool's lifecycle and must
// keep it running until all actors have terminated.
func NewSystem(name string, pool *workerpool.Pool, opts ...SystemOpt) *System {
	s := &System{
		name:   name,
		pool:   pool,
		clk:    clock.New(),
		actors: make(map[ID]*Ref),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SpawnConfig configures a new actor.
type SpawnConfig struct {
	// Name is an optional label.
	Name string
	// Body is the suspendable procedure the actor runs.
	Body instrument.Proc
	// MailboxCapacity bounds the mailbox; zero or negative means
	// unbounded, the default.
	MailboxCapacity int
	// StackSizeHint is advisory, forwarded to the fiber.
	StackSizeHint int
	// LinkToCaller links the new actor to the spawning actor before it
	// becomes runnable, so the new actor cannot terminate before the
	// link exists. The caller must itself be an actor.
	LinkToCaller bool
}

// Spawn creates an actor and schedules it.
func (s *System) Spawn(ctx context.Context, cfg SpawnConfig) (*Ref, error) {
	ref, err := s.prepare(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.LinkToCaller {
		caller, ok := Self(ctx)
		if !ok {
			s.unregister(ref)
			return nil, cerror.ErrNotActorContext.GenWithStackByArgs()
		}
		if err := Link(caller, ref); err != nil {
			s.unregister(ref)
			return nil, err
		}
	}
	ref.fib.Start()
	return ref, nil
}

// SpawnMonitored is Spawn with a monitor established from the caller
// before the new actor becomes runnable; it returns the monitor token.
func (s *System) SpawnMonitored(ctx context.Context, cfg SpawnConfig) (*Ref, uuid.UUID, error) {
	caller, ok := Self(ctx)
	if !ok {
		return nil, uuid.Nil, cerror.ErrNotActorContext.GenWithStackByArgs()
	}
	ref, err := s.prepare(ctx, cfg)
	if err != nil {
		return nil, uuid.Nil, err
	}
	token, err := Monitor(caller, ref)
	if err != nil {
		s.unregister(ref)
		return nil, uuid.Nil, err
	}
	ref.fib.Start()
	return ref, token, nil
}

// prepare builds and registers an actor without starting it.
func (s *System) prepare(ctx context.Context, cfg SpawnConfig) (*Ref, error) {
	if !cfg.Body.Valid() {
		return nil, cerror.ErrNotSuspendable.GenWithStackByArgs()
	}
	ref := &Ref{
		id:       ID(s.nextID.Add(1)),
		name:     cfg.Name,
		sys:      s,
		mb:       newMailbox(cfg.MailboxCapacity, s.clk),
		links:    make(map[ID]*Ref),
		monitors: make(map[uuid.UUID]*Ref),
	}

	body := cfg.Body
	wrapped := instrument.MustMake(func(fctx context.Context) (interface{}, error) {
		fctx = withSelf(fctx, ref)
		if reason := ref.pendingExitReason(); reason != nil {
			// Exit requested before the body ever ran.
			return nil, exitError(reason)
		}
		return body.Call(fctx)
	})

	fib, err := fiber.New(ctx, fiber.SpawnConfig{
		Name:          cfg.Name,
		Pool:          s.pool,
		StackSizeHint: cfg.StackSizeHint,
		Body:          wrapped,
		Clock:         s.clk,
	})
	if err != nil {
		return nil, err
	}
	ref.fib = fib
	fib.OnTerminate(func(result interface{}, err error) {
		s.handleTermination(ref, err)
	})

	s.mu.Lock()
	s.actors[ref.id] = ref
	s.mu.Unlock()
	actorCount.WithLabelValues(s.name).Inc()
	spawnedActors.WithLabelValues(s.name).Inc()
	return ref, nil
}

func (s *System) unregister(ref *Ref) {
	s.mu.Lock()
	if _, ok := s.actors[ref.id]; ok {
		delete(s.actors, ref.id)
		actorCount.WithLabelValues(s.name).Dec()
	}
	s.mu.Unlock()
}

// Actor looks up a live actor by ID.
func (s *System) Actor(id ID) (*Ref, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.actors[id]
	return r, ok
}

// Send routes v to the actor registered under id. It fails with
// ErrActorNotFound once the actor has terminated and with ErrMailboxFull
// when a bounded mailbox has no room.
func (s *System) Send(id ID, v interface{}) error {
	r, ok := s.Actor(id)
	if !ok {
		return cerror.ErrActorNotFound.GenWithStackByArgs(uint64(id))
	}
	return r.Send(v)
}

// SendRetry is Send with backoff while the target mailbox is full. Any
// other failure is returned immediately.
func (s *System) SendRetry(ctx context.Context, id ID, v interface{}, opts ...retry.Option) error {
	allOpts := append([]retry.Option{
		retry.WithBackoffBaseDelay(5),
		retry.WithBackoffMaxDelay(100),
		retry.WithIsRetryableErr(cerror.ErrMailboxFull.Equal),
	}, opts...)
	return retry.Do(ctx, func() error {
		return s.Send(id, v)
	}, allOpts...)
}

// Close kills every live actor and waits for each to terminate.
func (s *System) Close(ctx context.Context) error {
	s.mu.RLock()
	refs := make([]*Ref, 0, len(s.actors))
	for _, r := range s.actors {
		refs = append(refs, r)
	}
	s.mu.RUnlock()

	for _, r := range refs {
		r.Kill()
	}
	for _, r := range refs {
		if _, err := r.Join(ctx); err != nil && ctx.Err() != nil {
			return err
		}
	}
	return nil
}

// handleTermination runs exactly once per actor, from the fiber's
// termination hook: it freezes the exit reason and walks the snapshot of
// link and monitor relations, delivering one signal or notification to
// each peer registered at the instant of termination.
func (s *System) handleTermination(ref *Ref, bodyErr error) {
	reason := message.Reason{Kind: message.ReasonNormal}
	if bodyErr != nil {
		if pending := ref.pendingExitReason(); pending != nil {
			reason = *pending
		} else {
			reason = message.Reason{Kind: message.ReasonError, Err: bodyErr}
		}
	}

	ref.relMu.Lock()
	if ref.terminated {
		ref.relMu.Unlock()
		return
	}
	ref.terminated = true
	ref.exitReason = reason
	links := ref.links
	monitors := ref.monitors
	ref.links = nil
	ref.monitors = nil
	ref.relMu.Unlock()

	ref.mb.close()
	s.unregister(ref)

	if reason.Normal() {
		log.Debug("actor terminated",
			zap.String("system", s.name),
			zap.Uint64("actorID", uint64(ref.id)),
			zap.String("name", ref.name))
	} else {
		log.Warn("actor terminated abnormally",
			zap.String("system", s.name),
			zap.Uint64("actorID", uint64(ref.id)),
			zap.String("name", ref.name),
			zap.String("reason", reason.String()))
	}

	for _, peer := range links {
		peer.relMu.Lock()
		delete(peer.links, ref.id)
		dead := peer.terminated
		peer.relMu.Unlock()
		if dead {
			continue
		}
		deliverExitSignal(peer, ref.id, reason)
	}
	for token, observer := range monitors {
		// The observer may already be gone; a stopped mailbox is fine.
		_ = observer.mb.pushSystem(entry{
			msg: message.DownMessage(uint64(ref.id), reason, token),
		})
	}
}

// deliverExitSignal delivers one exit signal from a terminated actor to
// a live linked peer: a trapping peer receives it as an ordinary mailbox
// message, any other peer is terminated with the linked-actor-died
// reason.
func deliverExitSignal(peer *Ref, from ID, reason message.Reason) {
	if peer.trapping() {
		_ = peer.mb.pushSystem(entry{msg: message.ExitMessage(uint64(from), reason)})
		return
	}
	peer.requestExit(message.Reason{
		Kind: message.ReasonLinkedDown,
		Err:  cerror.ErrLinkedActorDied.GenWithStackByArgs(uint64(from), reason.String()),
		Peer: uint64(from),
	})
}

// Link adds a and b to each other's link set. Linking is symmetric and
// idempotent. Linking to an already-terminated actor delivers the exit
// signal to the live side immediately, so the relation is never silently
// lost to a spawn/terminate race.
func Link(a, b *Ref) error {
	if a == nil || b == nil || a.id == b.id {
		return nil
	}
	first, second := a, b
	if second.id < first.id {
		first, second = second, first
	}
	first.relMu.Lock()
	second.relMu.Lock()
	aDead, bDead := a.terminated, b.terminated
	aReason, bReason := a.exitReason, b.exitReason
	if !aDead && !bDead {
		a.links[b.id] = b
		b.links[a.id] = a
	}
	second.relMu.Unlock()
	first.relMu.Unlock()

	if aDead && !bDead {
		deliverExitSignal(b, a.id, aReason)
	}
	if bDead && !aDead {
		deliverExitSignal(a, b.id, bReason)
	}
	return nil
}

// Unlink removes both sides of the link between a and b. Unlinking
// actors that are not linked is a no-op.
func Unlink(a, b *Ref) {
	if a == nil || b == nil || a.id == b.id {
		return
	}
	first, second := a, b
	if second.id < first.id {
		first, second = second, first
	}
	first.relMu.Lock()
	second.relMu.Lock()
	if a.links != nil {
		delete(a.links, b.id)
	}
	if b.links != nil {
		delete(b.links, a.id)
	}
	second.relMu.Unlock()
	first.relMu.Unlock()
}

// Monitor registers observer to be notified of observed's termination
// and returns the token identifying this relation. Monitoring an
// already-terminated actor delivers the notification immediately.
// Multiple monitors between the same pair coexist, one per token.
func Monitor(observer, observed *Ref) (uuid.UUID, error) {
	token := uuid.New()
	observed.relMu.Lock()
	if observed.terminated {
		reason := observed.exitReason
		observed.relMu.Unlock()
		_ = observer.mb.pushSystem(entry{
			msg: message.DownMessage(uint64(observed.id), reason, token),
		})
		return token, nil
	}
	observed.monitors[token] = observer
	observed.relMu.Unlock()
	return token, nil
}

// Demonitor removes exactly the monitor relation identified by token,
// leaving any other relations between the same pair untouched.
func Demonitor(observer, observed *Ref, token uuid.UUID) error {
	observed.relMu.Lock()
	defer observed.relMu.Unlock()
	if observed.monitors == nil {
		return cerror.ErrMonitorNotFound.GenWithStackByArgs()
	}
	if obs, ok := observed.monitors[token]; !ok || obs != observer {
		return cerror.ErrMonitorNotFound.GenWithStackByArgs()
	}
	delete(observed.monitors, token)
	return nil
}
