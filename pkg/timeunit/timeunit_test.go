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

package timeunit

import (
	"testing"
	"time"

	cerror "github.com/loomkit/loom/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestIn(t *testing.T) {
	t.Parallel()
	require.Equal(t, 500*time.Millisecond, In(500, Milliseconds))
	require.Equal(t, 2*time.Minute, In(2, Minutes))
	require.Equal(t, 48*time.Hour, In(2, Days))
	require.Equal(t, time.Duration(7), In(7, Nanoseconds))
}

func TestParse(t *testing.T) {
	t.Parallel()
	for _, u := range []Unit{Nanoseconds, Microseconds, Milliseconds, Seconds, Minutes, Hours, Days} {
		got, err := Parse(u.String())
		require.Nil(t, err)
		require.Equal(t, u, got)
	}
	_, err := Parse("fortnights")
	require.True(t, cerror.ErrUnknownTimeUnit.Equal(err))
}
