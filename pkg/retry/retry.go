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
	"math"
	"math/rand"
	"time"

	"github.com/pingcap/errors"
)

// Do runs operation with an exponential backoff between tries until it
// succeeds, the error is not retryable, tries are exhausted, or ctx ends.
func Do(ctx context.Context, operation func() error, opts ...Option) error {
	retryOption := newRetryOptions()
	for _, opt := range opts {
		opt(retryOption)
	}

	var err error
	for try := float64(0); try < retryOption.maxTries; try++ {
		if err = ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		err = operation()
		if err == nil {
			return nil
		}
		if !retryOption.isRetryable(err) {
			return errors.Trace(err)
		}
		if try == retryOption.maxTries-1 {
			break
		}
		backoff := getBackoffInMs(retryOption.backoffBase, retryOption.backoffCap, try)
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-time.After(time.Duration(backoff) * time.Millisecond):
		}
	}
	return errors.Trace(err)
}

// getBackoffInMs is a decorrelated-jitter backoff: random in
// [base, min(cap, base * 2^try)].
func getBackoffInMs(backoffBase, backoffCap, try float64) float64 {
	temp := math.Min(backoffCap, backoffBase*math.Exp2(try))
	if temp <= backoffBase {
		return backoffBase
	}
	return backoffBase + rand.Float64()*(temp-backoffBase)
}
