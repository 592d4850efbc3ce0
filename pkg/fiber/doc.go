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

// Package fiber implements cooperatively scheduled fibers multiplexed
// many-to-few onto a workerpool.Pool.
//
// Every fiber owns a goroutine for its body, but the body only makes
// progress while a pool worker is dispatching it. The worker and the
// fiber exchange control through two unbuffered channels:
//
//	worker                 fiber goroutine
//	  gate <- struct{}{} ----> <-gate        (worker lends itself)
//	  <-yield           <---- yield <- ...   (fiber suspends or terminates)
//
// A fiber that blocks on a channel, a mailbox, or a join parks: it
// marks itself SUSPENDED, completes the yield handshake, and waits on the
// gate until some strand resumes it. Resume re-submits the fiber to the
// pool with its last worker as the locality hint. A resume that races the
// sleeper leaves a one-shot permit, so the wake-up is never lost; a
// resume of a TERMINATED fiber is a no-op.
//
// Suspension is voluntary: only loom's blocking primitives park. Any
// other blocking call made from a fiber body holds its worker for the
// duration and starves other fibers, the usual rule for M:N schedulers.
//
// The pool must keep running until every fiber scheduled on it has
// terminated; fibers resumed after the pool stopped are dropped.
package fiber
