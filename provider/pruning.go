// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package provider

import (
	"context"

	"github.com/starkdev/node/kv"
)

// PruningMode selects how much historical state the node retains (§6
// "Pruning mode"). archive (the default) never prunes; full:N retains only
// the last N blocks of historical-state tables.
type PruningMode struct {
	Archive    bool
	KeepBlocks uint64
}

// Archive is the default, history-retaining mode.
var Archive = PruningMode{Archive: true}

// Full returns a full:N pruning mode retaining only the last n blocks of
// historical state.
func Full(n uint64) PruningMode {
	return PruningMode{Archive: false, KeepBlocks: n}
}

// Pruner removes historical-state rows older than the retention window.
// Pruning only ever touches the historical-reconstruction tables
// (NonceChangeHistory, ClassChangeHistory, StorageChangeHistory, and the
// two changesets) — §6 "must never touch canonical chain tables" means
// Headers/Transactions/Receipts/Classes are never visited here.
type Pruner struct {
	db   kv.RwDB
	mode PruningMode
}

// NewPruner builds a Pruner for db under mode.
func NewPruner(db kv.RwDB, mode PruningMode) *Pruner {
	return &Pruner{db: db, mode: mode}
}

// PruneUpTo removes history rows belonging to blocks strictly older than
// the retention window ending at latest. A no-op in archive mode.
func (p *Pruner) PruneUpTo(ctx context.Context, latest uint64) error {
	if p.mode.Archive || latest < p.mode.KeepBlocks {
		return nil
	}
	cutoff := latest - p.mode.KeepBlocks

	return p.db.Update(ctx, func(tx kv.RwTx) error {
		for _, table := range []kv.Table{kv.NonceChangeHistory, kv.ClassChangeHistory, kv.StorageChangeHistory} {
			if err := pruneDupTableBefore(tx, table, cutoff); err != nil {
				return err
			}
		}
		return nil
	})
}

// pruneDupTableBefore deletes every key (block number, big-endian) less
// than cutoff from a block_num-keyed dup-sort table.
func pruneDupTableBefore(tx kv.RwTx, table kv.Table, cutoff uint64) error {
	c, err := tx.RwCursor(table)
	if err != nil {
		return err
	}
	defer c.Close()

	k, _, err := c.First()
	for k != nil && err == nil {
		if decodeU64(k) >= cutoff {
			break
		}
		if err := c.Delete(); err != nil {
			return err
		}
		k, _, err = c.Next()
	}
	return err
}
