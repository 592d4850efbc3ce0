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

// Package logutil wires the global pingcap/log logger used across loom.
package logutil

import (
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Config holds the subset of logger settings loom cares about.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// File is the log file path; empty means stderr.
	File string
}

// InitLogger initializes the process-global logger. It is meant to be
// called once from main; library code only uses log.L()/log.Info etc.
func InitLogger(cfg *Config) error {
	logger, props, err := log.InitLogger(&log.Config{
		Level: cfg.Level,
		File:  log.FileLogConfig{Filename: cfg.File},
	})
	if err != nil {
		return errors.Trace(err)
	}
	log.ReplaceGlobals(logger, props)
	return nil
}

// WithComponent returns a child logger tagged with the component name.
func WithComponent(name string) *zap.Logger {
	return log.L().With(zap.String("component", name))
}
