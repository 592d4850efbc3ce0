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

// Package list provides a generic doubly linked list. Unlike container/list
// it carries typed values, which keeps hot paths free of interface boxing.
package list

// Element is a node of a List.
type Element[T any] struct {
	prev, next *Element[T]
	list       *List[T]

	// Value is the payload stored with this element.
	Value T
}

// Next returns the next element or nil.
func (e *Element[T]) Next() *Element[T] {
	if n := e.next; e.list != nil && n != &e.list.root {
		return n
	}
	return nil
}

// Prev returns the previous element or nil.
func (e *Element[T]) Prev() *Element[T] {
	if p := e.prev; e.list != nil && p != &e.list.root {
		return p
	}
	return nil
}

// List is a doubly linked list with a sentinel root element.
// The zero value is not usable; call NewList.
type List[T any] struct {
	root Element[T]
	size int
}

// NewList creates an empty list.
func NewList[T any]() *List[T] {
	l := &List[T]{}
	l.root.prev = &l.root
	l.root.next = &l.root
	return l
}

// Len returns the number of elements in the list.
func (l *List[T]) Len() int {
	return l.size
}

// Front returns the first element or nil if the list is empty.
func (l *List[T]) Front() *Element[T] {
	if l.size == 0 {
		return nil
	}
	return l.root.next
}

// Back returns the last element or nil if the list is empty.
func (l *List[T]) Back() *Element[T] {
	if l.size == 0 {
		return nil
	}
	return l.root.prev
}

// PushFront inserts a new element with value v at the front.
func (l *List[T]) PushFront(v T) *Element[T] {
	return l.insert(v, &l.root)
}

// PushBack inserts a new element with value v at the back.
func (l *List[T]) PushBack(v T) *Element[T] {
	return l.insert(v, l.root.prev)
}

// Remove unlinks e from the list and returns its value.
// e must be an element of this list.
func (l *List[T]) Remove(e *Element[T]) T {
	if e.list != l {
		return e.Value
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
	e.list = nil
	l.size--
	return e.Value
}

func (l *List[T]) insert(v T, at *Element[T]) *Element[T] {
	e := &Element[T]{Value: v, list: l}
	e.prev = at
	e.next = at.next
	e.prev.next = e
	e.next.prev = e
	l.size++
	return e
}
