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

// Package timeunit maps symbolic duration unit tags to time.Duration.
// It is a pure lookup table with no other semantics.
package timeunit

import (
	"time"

	cerror "github.com/loomkit/loom/pkg/errors"
)

// Unit is a symbolic duration unit tag.
type Unit int

// Recognized unit tags.
const (
	Nanoseconds Unit = iota
	Microseconds
	Milliseconds
	Seconds
	Minutes
	Hours
	Days
)

var units = [...]time.Duration{
	Nanoseconds:  time.Nanosecond,
	Microseconds: time.Microsecond,
	Milliseconds: time.Millisecond,
	Seconds:      time.Second,
	Minutes:      time.Minute,
	Hours:        time.Hour,
	Days:         24 * time.Hour,
}

var names = [...]string{
	Nanoseconds:  "nanoseconds",
	Microseconds: "microseconds",
	Milliseconds: "milliseconds",
	Seconds:      "seconds",
	Minutes:      "minutes",
	Hours:        "hours",
	Days:         "days",
}

// Duration returns the base duration of one unit.
func (u Unit) Duration() time.Duration {
	return units[u]
}

// String returns the lowercase tag name.
func (u Unit) String() string {
	return names[u]
}

// In converts a magnitude in the given unit to a time.Duration.
func In(magnitude int64, u Unit) time.Duration {
	return time.Duration(magnitude) * units[u]
}

// Parse resolves a tag name to its Unit.
func Parse(tag string) (Unit, error) {
	for u, name := range names {
		if name == tag {
			return Unit(u), nil
		}
	}
	return 0, cerror.ErrUnknownTimeUnit.GenWithStackByArgs(tag)
}
