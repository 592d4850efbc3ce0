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

// Package deque implements a double-ended queue over a linked chain of
// fixed-size blocks. It backs worker run queues (owner pops the front,
// thieves steal the back) and channel buffers.
package deque

import (
	"github.com/loomkit/loom/pkg/list"
)

// Deque is a double-ended queue of T. It is not safe for concurrent use;
// callers hold their own lock.
type Deque[T any] struct {
	blockLen int
	zero     T

	blocks *list.List[[]T]
	length int

	// front and back index the first and last occupied slot.
	front int
	back  int
}

// NewDequeDefault creates a deque with the default block size.
func NewDequeDefault[T any]() *Deque[T] {
	return NewDeque[T](64)
}

// NewDeque creates a deque whose storage grows in blocks of blockLen slots.
func NewDeque[T any](blockLen int) *Deque[T] {
	if blockLen < 2 {
		panic("deque: blockLen must be at least 2")
	}
	d := &Deque[T]{
		blockLen: blockLen,
		blocks:   list.NewList[[]T](),
	}
	d.blocks.PushBack(make([]T, blockLen))
	d.resetEmpty()
	return d
}

// Length returns the number of queued values.
func (d *Deque[T]) Length() int {
	return d.length
}

func (d *Deque[T]) resetEmpty() {
	d.front = d.blockLen / 2
	d.back = d.blockLen/2 - 1
}

// Front returns the first value without removing it.
func (d *Deque[T]) Front() (T, bool) {
	if d.length == 0 {
		return d.zero, false
	}
	return d.blocks.Front().Value[d.front], true
}

// Back returns the last value without removing it.
func (d *Deque[T]) Back() (T, bool) {
	if d.length == 0 {
		return d.zero, false
	}
	return d.blocks.Back().Value[d.back], true
}

// PushBack appends item at the back.
func (d *Deque[T]) PushBack(item T) {
	block := d.blocks.Back().Value
	if d.back == d.blockLen-1 {
		// the last block is full
		block = make([]T, d.blockLen)
		d.blocks.PushBack(block)
		d.back = -1
	}

	d.back++
	block[d.back] = item
	d.length++
}

// PopBack removes and returns the last value.
func (d *Deque[T]) PopBack() (T, bool) {
	if d.length == 0 {
		return d.zero, false
	}

	le := d.blocks.Back()
	block := le.Value
	item := block[d.back]
	block[d.back] = d.zero
	d.back--
	d.length--

	if d.back == -1 {
		// the current block is drained
		if d.length == 0 {
			d.resetEmpty()
		} else {
			d.blocks.Remove(le)
			d.back = d.blockLen - 1
		}
	}

	return item, true
}

// PushFront prepends item at the front.
func (d *Deque[T]) PushFront(item T) {
	block := d.blocks.Front().Value
	if d.front == 0 {
		// the first block is full
		block = make([]T, d.blockLen)
		d.blocks.PushFront(block)
		d.front = d.blockLen
	}

	d.front--
	block[d.front] = item
	d.length++
}

// PopFront removes and returns the first value.
func (d *Deque[T]) PopFront() (T, bool) {
	if d.length == 0 {
		return d.zero, false
	}

	le := d.blocks.Front()
	block := le.Value
	item := block[d.front]
	block[d.front] = d.zero
	d.front++
	d.length--

	if d.front == d.blockLen {
		// the current block is drained
		if d.length == 0 {
			d.resetEmpty()
		} else {
			d.blocks.Remove(le)
			d.front = 0
		}
	}

	return item, true
}
