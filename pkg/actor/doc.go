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

// Package actor builds Erlang-style actors on top of fibers: each actor
// is one fiber running a user body, one mailbox, and membership in link
// and monitor relations.
//
// The mailbox supports selective receive. ReceiveMatch scans pending
// messages in arrival order and consumes the first one accepted by a
// pattern; everything else stays queued in its original relative order,
// so a later receive with different patterns can still match it:
//
//	mailbox: [A, B, C]            patterns match only C
//	ReceiveMatch -> C             mailbox: [A, B]
//	Receive      -> A             mailbox: [B]
//
// Failure propagates structurally, never by unwinding across actors.
// When an actor terminates, its exit reason is frozen and every linked
// peer receives exactly one exit signal: trapping peers (SetTrapExit)
// see it as an ordinary TypeExit message, all others terminate with a
// linked-actor-died reason. Every monitor receives exactly one TypeDown
// notification carrying its token; monitors never terminate the
// observer. An actor with no links and no monitors fails silently;
// callers that need failure visibility must link or monitor.
package actor
