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

package deque

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFIFOAcrossBlocks(t *testing.T) {
	t.Parallel()
	d := NewDeque[int](4)
	const n = 100
	for i := 0; i < n; i++ {
		d.PushBack(i)
	}
	require.Equal(t, n, d.Length())
	for i := 0; i < n; i++ {
		v, ok := d.PopFront()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := d.PopFront()
	require.False(t, ok)
}

func TestBothEnds(t *testing.T) {
	t.Parallel()
	d := NewDequeDefault[string]()
	d.PushBack("b")
	d.PushFront("a")
	d.PushBack("c")

	v, ok := d.Front()
	require.True(t, ok)
	require.Equal(t, "a", v)
	v, ok = d.Back()
	require.True(t, ok)
	require.Equal(t, "c", v)

	v, _ = d.PopBack()
	require.Equal(t, "c", v)
	v, _ = d.PopFront()
	require.Equal(t, "a", v)
	v, _ = d.PopBack()
	require.Equal(t, "b", v)
	require.Equal(t, 0, d.Length())
}

func TestDrainAndRefill(t *testing.T) {
	t.Parallel()
	d := NewDeque[int](2)
	for round := 0; round < 3; round++ {
		for i := 0; i < 10; i++ {
			d.PushFront(i)
		}
		for i := 9; i >= 0; i-- {
			v, ok := d.PopFront()
			require.True(t, ok)
			require.Equal(t, i, v)
		}
	}
}
