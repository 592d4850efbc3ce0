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

package channel

// Fixed-width numeric channels share the generic transfer contract with
// the payload type pinned, keeping hot numeric paths free of boxing.

// NewInt32 creates a channel of int32 values.
func NewInt32(opts ...Opt) *Chann[int32] { return New[int32](opts...) }

// NewInt64 creates a channel of int64 values.
func NewInt64(opts ...Opt) *Chann[int64] { return New[int64](opts...) }

// NewFloat32 creates a channel of float32 values.
func NewFloat32(opts ...Opt) *Chann[float32] { return New[float32](opts...) }

// NewFloat64 creates a channel of float64 values.
func NewFloat64(opts ...Opt) *Chann[float64] { return New[float64](opts...) }
