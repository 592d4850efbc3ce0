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

// Package message defines the messages that flow through actor
// mailboxes. Message is a concrete struct instead of an interface so the
// common case avoids an extra allocation per send.
package message

import (
	"fmt"

	"github.com/google/uuid"
)

// Type is the type of a message.
type Type int

// Message types.
const (
	TypeUnknown Type = iota
	// TypeValue is an ordinary user payload.
	TypeValue
	// TypeExit is the exit signal delivered to a linked actor that traps
	// exits.
	TypeExit
	// TypeDown is the notification delivered to a monitoring actor.
	TypeDown
)

// ReasonKind classifies why an actor terminated.
type ReasonKind int

// Exit reason kinds.
const (
	// ReasonNormal means the body returned without error.
	ReasonNormal ReasonKind = iota
	// ReasonError means the body failed.
	ReasonError
	// ReasonKilled means the actor was killed from outside.
	ReasonKilled
	// ReasonLinkedDown means a linked peer terminated abnormally.
	ReasonLinkedDown
)

// Reason is an actor's terminal exit reason, recorded exactly once.
type Reason struct {
	Kind ReasonKind
	// Err carries the cause for ReasonError and ReasonLinkedDown.
	Err error
	// Peer is the actor whose termination caused a ReasonLinkedDown.
	Peer uint64
}

func (r Reason) String() string {
	switch r.Kind {
	case ReasonNormal:
		return "normal"
	case ReasonError:
		return fmt.Sprintf("error: %v", r.Err)
	case ReasonKilled:
		return "killed"
	case ReasonLinkedDown:
		return fmt.Sprintf("linked actor %d died: %v", r.Peer, r.Err)
	}
	return "unknown"
}

// Normal reports whether the termination was a plain completion.
func (r Reason) Normal() bool {
	return r.Kind == ReasonNormal
}

// Exit is the payload of a TypeExit signal.
type Exit struct {
	// From is the terminated actor's ID.
	From uint64
	// Reason is the terminated actor's exit reason.
	Reason Reason
}

// Down is the payload of a TypeDown notification.
type Down struct {
	// From is the terminated actor's ID.
	From uint64
	// Reason is the terminated actor's exit reason.
	Reason Reason
	// Token identifies the monitor relation this notification settles.
	Token uuid.UUID
}

// Message is a mailbox message.
type Message struct {
	Tp Type
	// Value is set for TypeValue.
	Value interface{}
	// Exit is set for TypeExit.
	Exit *Exit
	// Down is set for TypeDown.
	Down *Down
}

// ValueMessage creates a user payload message.
func ValueMessage(v interface{}) Message {
	return Message{Tp: TypeValue, Value: v}
}

// ExitMessage creates an exit signal.
func ExitMessage(from uint64, reason Reason) Message {
	return Message{Tp: TypeExit, Exit: &Exit{From: from, Reason: reason}}
}

// DownMessage creates a monitor notification.
func DownMessage(from uint64, reason Reason, token uuid.UUID) Message {
	return Message{Tp: TypeDown, Down: &Down{From: from, Reason: reason, Token: token}}
}
