// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package blockproducer implements the block producer (C6): instant mode
// (one block per accepted transaction) and interval mode (batch until a
// timer or force-mine), both driving an opaque executor and handing its
// output to the commitment pipeline (C7). Grounded directly on
// original_source/crates/core/src/backend/mod.rs's Backend::do_mine_block
// and update_block_env.
package blockproducer

import (
	"sync"
	"time"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/types"
)

// CurrentStarknetVersion is stamped on every locally produced header
// (§4.6 "starknet_version = CURRENT").
const CurrentStarknetVersion = "0.13.5"

// GasOracle supplies the three resource prices a new block's header
// carries; it is a named, out-of-scope collaborator (§1).
type GasOracle interface {
	GasPrices() types.GasPrices
}

// StaticGasOracle always returns the same prices, useful for the dev
// chain and for tests.
type StaticGasOracle struct {
	Prices types.GasPrices
}

func (s StaticGasOracle) GasPrices() types.GasPrices { return s.Prices }

// BlockEnv is the mutable execution environment threaded through one
// block's worth of transaction execution (§4.6 "Block env generation").
type BlockEnv struct {
	Number           uint64
	Timestamp        uint64
	SequencerAddress felt.Felt
	StarknetVersion  string
	GasPrices        types.GasPrices
}

// BlockContextGenerator is the one process-wide piece of mutable state
// the producer owns besides the DB (§9 "Global mutable state"): the
// timestamp-offset/override knobs an admin RPC mutates. It is always
// accessed under its own lock, never copied.
type BlockContextGenerator struct {
	mu sync.RWMutex

	blockTimestampOffset int64
	nextBlockStartTime   uint64
}

// SetBlockTimestampOffset sets the wall-clock offset applied to every
// future block's timestamp (dev API).
func (g *BlockContextGenerator) SetBlockTimestampOffset(offset int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.blockTimestampOffset = offset
}

// SetNextBlockTimestamp sets a floor for the very next block's timestamp:
// that block gets the later of ts and wall clock + offset. The override is
// consumed (reset to 0) the next time a block advances, with
// the offset recomputed so later blocks stay consistent with it (§4.6
// "Timestamp offsets ... must survive restart-free across the lifetime of
// the producer").
func (g *BlockContextGenerator) SetNextBlockTimestamp(ts uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextBlockStartTime = ts
}

// nowFn is overridable in tests so timestamp advancement is deterministic;
// production always uses wall-clock time.
var nowFn = func() int64 { return time.Now().Unix() }

// advance mutates env in place for a new block: number increments, the
// timestamp is derived from the three-way rule (§4.6 "timestamp =
// max(wall_clock + offset, next_block_start_time)"), and the version is
// stamped to current. Gas prices are refreshed from oracle.
func (g *BlockContextGenerator) advance(env *BlockEnv, oracle GasOracle) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := nowFn()

	var timestamp uint64
	if g.nextBlockStartTime == 0 {
		timestamp = uint64(now + g.blockTimestampOffset)
	} else {
		timestamp = g.nextBlockStartTime
		if wall := now + g.blockTimestampOffset; wall > int64(timestamp) {
			timestamp = uint64(wall)
		}
		g.blockTimestampOffset = int64(timestamp) - now
		g.nextBlockStartTime = 0
	}

	env.Number++
	env.Timestamp = timestamp
	env.StarknetVersion = CurrentStarknetVersion
	env.GasPrices = oracle.GasPrices()
}
