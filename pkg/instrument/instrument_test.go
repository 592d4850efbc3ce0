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

package instrument

import (
	"context"
	"testing"

	cerror "github.com/loomkit/loom/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	t.Parallel()
	p, err := Make(func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})
	require.Nil(t, err)
	require.True(t, p.Valid())
	require.True(t, IsSuspendable(p))

	v, err := p.Call(context.Background())
	require.Nil(t, err)
	require.Equal(t, 42, v)
}

func TestMakeNil(t *testing.T) {
	t.Parallel()
	_, err := Make(nil)
	require.True(t, cerror.ErrNotSuspendable.Equal(err))

	var zero Proc
	require.False(t, zero.Valid())
	require.False(t, IsSuspendable(zero))
	require.False(t, IsSuspendable(func() {}))
}

func TestThen(t *testing.T) {
	t.Parallel()
	p := MustMake(func(ctx context.Context) (interface{}, error) {
		return 2, nil
	}).Then(func(ctx context.Context, v interface{}) (interface{}, error) {
		return v.(int) * 3, nil
	})
	require.True(t, IsSuspendable(p))

	v, err := p.Call(context.Background())
	require.Nil(t, err)
	require.Equal(t, 6, v)
}
