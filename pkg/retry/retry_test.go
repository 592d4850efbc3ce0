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

package retry

import (
	"context"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestDoEventuallySucceeds(t *testing.T) {
	t.Parallel()
	var calls int
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithBackoffBaseDelay(1), WithBackoffMaxDelay(2), WithMaxTries(5))
	require.Nil(t, err)
	require.Equal(t, 3, calls)
}

func TestDoExhaustsTries(t *testing.T) {
	t.Parallel()
	var calls int
	err := Do(context.Background(), func() error {
		calls++
		return errors.New("always")
	}, WithBackoffBaseDelay(1), WithBackoffMaxDelay(2), WithMaxTries(3))
	require.NotNil(t, err)
	require.Equal(t, 3, calls)
}

func TestDoNotRetryable(t *testing.T) {
	t.Parallel()
	fatal := errors.New("fatal")
	var calls int
	err := Do(context.Background(), func() error {
		calls++
		return fatal
	}, WithMaxTries(5), WithIsRetryableErr(func(err error) bool {
		return !errors.ErrorEqual(err, fatal)
	}))
	require.NotNil(t, err)
	require.Equal(t, 1, calls)
}

func TestDoCanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, func() error {
		return errors.New("never reached")
	})
	require.ErrorIs(t, err, context.Canceled)
}
