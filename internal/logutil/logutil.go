// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package logutil wires the node's structured logger. The block producer
// takes a *zap.Logger scoped to its own name via Named, the same "one global
// root, everything else derives a named child" shape erigon-lib/log wraps
// around log15; the forking backend and the pruner take no logger.
package logutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the root logger's verbosity and encoding.
type Config struct {
	Level    string // "debug", "info", "warn", "error"
	JSON     bool
	Colorize bool
}

// DefaultConfig is human-readable console output at info level, the shape
// a developer running the node interactively wants.
func DefaultConfig() Config {
	return Config{Level: "info", JSON: false, Colorize: true}
}

// New builds the root logger from cfg. Callers derive scoped children with
// (*zap.Logger).Named rather than constructing additional roots.
func New(cfg Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if !cfg.JSON {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if !cfg.Colorize {
			zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zcfg.Build()
}

// Nop is a no-op logger for tests that don't care about log output.
func Nop() *zap.Logger { return zap.NewNop() }
