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

// Package instrument marks procedures as safe to suspend inside a fiber.
//
// A Proc is the only callable the fiber and actor spawn surfaces accept.
// The capability is attached at construction time: Make is the single
// producer of Proc values, so a plain function can never sneak into a
// fiber body without passing through it. Failure to instrument is a
// construction-time error, never a runtime one.
package instrument

import (
	"context"

	cerror "github.com/loomkit/loom/pkg/errors"
)

// Fn is the raw shape of a fiber body before instrumentation.
type Fn func(ctx context.Context) (interface{}, error)

// Proc is a suspendable procedure. The zero Proc is not suspendable.
type Proc struct {
	fn Fn
}

// Make instruments fn as a suspendable procedure.
func Make(fn Fn) (Proc, error) {
	if fn == nil {
		return Proc{}, cerror.ErrNotSuspendable.GenWithStackByArgs()
	}
	return Proc{fn: fn}, nil
}

// MustMake is Make for bodies known to be non-nil at the call site.
func MustMake(fn Fn) Proc {
	p, err := Make(fn)
	if err != nil {
		panic(err)
	}
	return p
}

// IsSuspendable reports whether v may run as a fiber body.
// Only Proc values produced by Make (or composed from them) qualify.
func IsSuspendable(v interface{}) bool {
	p, ok := v.(Proc)
	return ok && p.fn != nil
}

// Valid reports whether p was produced by Make.
func (p Proc) Valid() bool {
	return p.fn != nil
}

// Call invokes the instrumented procedure.
func (p Proc) Call(ctx context.Context) (interface{}, error) {
	return p.fn(ctx)
}

// Then composes p with next: next runs on p's result. Composition of
// suspendable procedures is itself suspendable.
func (p Proc) Then(next func(ctx context.Context, v interface{}) (interface{}, error)) Proc {
	prev := p.fn
	return Proc{fn: func(ctx context.Context) (interface{}, error) {
		v, err := prev(ctx)
		if err != nil {
			return nil, err
		}
		return next(ctx, v)
	}}
}
