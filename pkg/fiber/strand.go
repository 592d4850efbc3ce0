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

	"go.uber.org/atomic"
)

// Kind tells whether a strand is backed by a fiber or a plain goroutine.
type Kind int

// Strand kinds.
const (
	KindThread Kind = iota
	KindFiber
)

// Strand is the uniform handle for "whatever is currently executing":
// either a fiber or a plain goroutine. Blocking primitives (channels,
// mailboxes, joins) park and unpark strands without caring which kind
// they hold, which is what lets a fiber give its worker back while a
// goroutine simply blocks.
//
// Park must only be called from the strand's own execution; Unpark and
// Interrupt may be called from anywhere. Park may return spuriously;
// callers re-check their wait condition in a loop.
type Strand interface {
	Name() string
	Kind() Kind

	// Park blocks the strand until Unpark. An Unpark that arrives while
	// the strand is not parked leaves a one-shot permit consumed by the
	// next Park, so a wake-up racing the sleeper is never lost.
	Park()
	// Unpark wakes the strand if parked, otherwise leaves a permit.
	Unpark()

	// Interrupt wakes the strand from any blocking wait; wait sites
	// observe the flag and fail with ErrInterruptedWait. It does not
	// stop running computation.
	Interrupt()
	// Interrupted reports a pending interrupt without consuming it.
	Interrupted() bool
	// ClearInterrupt consumes a pending interrupt, reporting whether one
	// was pending.
	ClearInterrupt() bool
}

type strandCtxKey struct{}

// WithStrand attaches s as the current strand of ctx.
func WithStrand(ctx context.Context, s Strand) context.Context {
	return context.WithValue(ctx, strandCtxKey{}, s)
}

// FromContext returns the strand carried by ctx, if any.
func FromContext(ctx context.Context) (Strand, bool) {
	s, ok := ctx.Value(strandCtxKey{}).(Strand)
	return s, ok
}

// Acquire returns the strand carried by ctx, or a fresh thread-backed
// strand for callers running outside any fiber.
func Acquire(ctx context.Context) Strand {
	if s, ok := FromContext(ctx); ok {
		return s
	}
	return NewThreadStrand("")
}

// threadStrand adapts a plain goroutine to the Strand interface using a
// one-permit semaphore.
type threadStrand struct {
	name        string
	permit      chan struct{}
	interrupted atomic.Bool
}

// NewThreadStrand creates a thread-backed strand. Callers that block on
// loom primitives from outside a fiber may attach one to their context
// with WithStrand to get a stable identity across calls.
func NewThreadStrand(name string) Strand {
	return &threadStrand{
		name:   name,
		permit: make(chan struct{}, 1),
	}
}

func (t *threadStrand) Name() string { return t.name }

func (t *threadStrand) Kind() Kind { return KindThread }

func (t *threadStrand) Park() {
	<-t.permit
}

func (t *threadStrand) Unpark() {
	select {
	case t.permit <- struct{}{}:
	default:
	}
}

func (t *threadStrand) Interrupt() {
	t.interrupted.Store(true)
	t.Unpark()
}

func (t *threadStrand) Interrupted() bool {
	return t.interrupted.Load()
}

func (t *threadStrand) ClearInterrupt() bool {
	return t.interrupted.Swap(false)
}
