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

package list

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPop(t *testing.T) {
	t.Parallel()
	l := NewList[int]()
	require.Equal(t, 0, l.Len())
	require.Nil(t, l.Front())
	require.Nil(t, l.Back())

	l.PushBack(1)
	l.PushBack(2)
	l.PushFront(0)
	require.Equal(t, 3, l.Len())
	require.Equal(t, 0, l.Front().Value)
	require.Equal(t, 2, l.Back().Value)

	var got []int
	for e := l.Front(); e != nil; e = e.Next() {
		got = append(got, e.Value)
	}
	require.Equal(t, []int{0, 1, 2}, got)
}

func TestRemoveMiddle(t *testing.T) {
	t.Parallel()
	l := NewList[string]()
	l.PushBack("a")
	b := l.PushBack("b")
	l.PushBack("c")

	require.Equal(t, "b", l.Remove(b))
	require.Equal(t, 2, l.Len())
	require.Equal(t, "a", l.Front().Value)
	require.Equal(t, "c", l.Front().Next().Value)

	// Removing a detached element is a no-op.
	l.Remove(b)
	require.Equal(t, 2, l.Len())
}

func TestIterateBackward(t *testing.T) {
	t.Parallel()
	l := NewList[int]()
	for i := 0; i < 5; i++ {
		l.PushBack(i)
	}
	var got []int
	for e := l.Back(); e != nil; e = e.Prev() {
		got = append(got, e.Value)
	}
	require.Equal(t, []int{4, 3, 2, 1, 0}, got)
}
