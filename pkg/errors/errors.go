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

package errors

import (
	"github.com/pingcap/errors"
)

// errors
var (
	// scheduler related errors
	ErrWorkerPoolInvalidSize = errors.Normalize(
		"worker pool size must be positive, got %d",
		errors.RFCCodeText("LOOM:ErrWorkerPoolInvalidSize"),
	)

	// fiber related errors
	ErrNotSuspendable = errors.Normalize(
		"body is not a suspendable procedure",
		errors.RFCCodeText("LOOM:ErrNotSuspendable"),
	)
	ErrPoolRequired = errors.Normalize(
		"spawn config requires a worker pool",
		errors.RFCCodeText("LOOM:ErrPoolRequired"),
	)
	ErrInterruptedWait = errors.Normalize(
		"blocking wait interrupted",
		errors.RFCCodeText("LOOM:ErrInterruptedWait"),
	)
	ErrJoinTimeout = errors.Normalize(
		"fiber did not terminate within the timeout",
		errors.RFCCodeText("LOOM:ErrJoinTimeout"),
	)
	ErrFiberPanic = errors.Normalize(
		"fiber body panic: %v",
		errors.RFCCodeText("LOOM:ErrFiberPanic"),
	)

	// channel related errors
	ErrChannClosed = errors.Normalize(
		"channel is closed",
		errors.RFCCodeText("LOOM:ErrChannClosed"),
	)
	ErrChannTimeout = errors.Normalize(
		"channel operation timed out",
		errors.RFCCodeText("LOOM:ErrChannTimeout"),
	)
	ErrChannConsumerBound = errors.Normalize(
		"channel consumer is already bound to another strand",
		errors.RFCCodeText("LOOM:ErrChannConsumerBound"),
	)

	// actor related errors
	ErrMailboxFull = errors.Normalize(
		"mailbox is full",
		errors.RFCCodeText("LOOM:ErrMailboxFull"),
	)
	ErrActorStopped = errors.Normalize(
		"actor is stopped",
		errors.RFCCodeText("LOOM:ErrActorStopped"),
	)
	ErrActorNotFound = errors.Normalize(
		"actor %d not found",
		errors.RFCCodeText("LOOM:ErrActorNotFound"),
	)
	ErrNotActorContext = errors.Normalize(
		"caller is not running inside an actor",
		errors.RFCCodeText("LOOM:ErrNotActorContext"),
	)
	ErrReceiveTimeout = errors.Normalize(
		"receive timed out before a message matched",
		errors.RFCCodeText("LOOM:ErrReceiveTimeout"),
	)
	ErrMonitorNotFound = errors.Normalize(
		"no monitor relation for the given token",
		errors.RFCCodeText("LOOM:ErrMonitorNotFound"),
	)
	ErrLinkedActorDied = errors.Normalize(
		"linked actor %d terminated: %s",
		errors.RFCCodeText("LOOM:ErrLinkedActorDied"),
	)
	ErrActorKilled = errors.Normalize(
		"actor killed",
		errors.RFCCodeText("LOOM:ErrActorKilled"),
	)

	// timeunit related errors
	ErrUnknownTimeUnit = errors.Normalize(
		"unknown time unit tag %q",
		errors.RFCCodeText("LOOM:ErrUnknownTimeUnit"),
	)
)
