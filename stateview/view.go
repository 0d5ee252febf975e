// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package stateview produces point-in-time read-only state views (C5):
// latest, historical-at-block, pending (executor-held) and forked-empty.
// Grounded on original_source/crates/rpc/rpc-server/src/starknet/mod.rs's
// use of katana_provider::api::state::StateProvider (one boxed provider
// per block-id, resolved once per call) and, for the historical read
// path, on core/state/history_reader_v3.go's GetAsOf pattern. State views
// are a closed tagged enum rather than an interface hierarchy, so the
// common fast path (Latest) never pays virtual-dispatch indirection (§9
// "Dynamic dispatch").
package stateview

import (
	"context"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/types"
)

// kind tags which variant a View holds.
type kind uint8

const (
	kindLatest kind = iota
	kindHistorical
	kindPending
	kindForked
)

// ExecutorState is the in-memory state an executor session accumulates
// while a block is being built in interval mode (§4.5 "Pending"). It is
// implemented by blockproducer's session state.
type ExecutorState interface {
	Nonce(addr felt.Felt) (felt.Felt, bool)
	Storage(addr, key felt.Felt) (felt.Felt, bool)
	ClassHashAt(addr felt.Felt) (felt.Felt, bool)
}

// View is the read-only capability the executor and RPC layer share
// (§4.5). It is a tagged union over {Latest, Historical, Pending, Forked}
// in one struct type: the forked variant holds the Latest View it wraps
// through the *View field inner, and the pending variant holds the
// executor's state behind the ExecutorState interface.
type View struct {
	kind kind

	latest *latestView
	block  uint64 // kindHistorical

	pending ExecutorState // kindPending; nil falls back to latest

	inner     *View        // kindForked: the Latest view it wraps
	fork      ForkedReader // kindForked: the forking backend, parameterized at forkBlock
	forkBlock uint64
}

// ForkedReader is the subset of the forking backend a Forked view falls
// through to on a local miss (§4.5 "Forked").
type ForkedReader interface {
	NonceAt(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error)
	StorageAt(ctx context.Context, addr, key felt.Felt, blockNum uint64) (felt.Felt, error)
	ClassHashAt(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error)
	ClassAt(ctx context.Context, classHash felt.Felt, blockNum uint64) (types.ContractClass, error)
}

// systemAddress reports whether addr is one of the two special addresses
// that never error "not found" (§4.5 "Special system addresses").
func systemAddress(addr felt.Felt) bool {
	return addr.Equal(felt.FromUint64(1)) || addr.Equal(felt.FromUint64(2))
}

// Nonce returns addr's nonce, or (_, false) if the contract has never been
// touched in this view.
func (v *View) Nonce(ctx context.Context, addr felt.Felt) (felt.Felt, bool, error) {
	switch v.kind {
	case kindLatest:
		return v.latest.nonce(ctx, addr)
	case kindHistorical:
		return v.latest.provider.NonceAtBlock(ctx, addr, v.block)
	case kindPending:
		if n, ok := v.pending.Nonce(addr); ok {
			return n, true, nil
		}
		return v.latest.nonce(ctx, addr)
	case kindForked:
		n, ok, err := v.inner.Nonce(ctx, addr)
		if err != nil || ok {
			return n, ok, err
		}
		n, err = v.fork.NonceAt(ctx, addr, v.forkBlock)
		if err != nil {
			if systemAddress(addr) {
				return felt.Zero, true, nil
			}
			return felt.Zero, false, err
		}
		return n, true, nil
	default:
		return felt.Zero, false, nil
	}
}

// Storage returns (addr,key)'s value. The Historical variant returns
// (_, false) when the key has no recorded write at or before its block; the
// Latest and Pending variants read an unwritten key as (Zero, true).
func (v *View) Storage(ctx context.Context, addr, key felt.Felt) (felt.Felt, bool, error) {
	switch v.kind {
	case kindLatest:
		return v.latest.storage(ctx, addr, key)
	case kindHistorical:
		return v.latest.provider.StorageAtBlock(ctx, addr, key, v.block)
	case kindPending:
		if val, ok := v.pending.Storage(addr, key); ok {
			return val, true, nil
		}
		return v.latest.storage(ctx, addr, key)
	case kindForked:
		val, ok, err := v.inner.Storage(ctx, addr, key)
		if err != nil || ok {
			return val, ok, err
		}
		val, err = v.fork.StorageAt(ctx, addr, key, v.forkBlock)
		if err != nil {
			return felt.Zero, false, err
		}
		return val, true, nil
	default:
		return felt.Zero, false, nil
	}
}

// ClassHashOfContract returns addr's class hash. Per §4.5 "Special system
// addresses", 0x1 and 0x2 always resolve to Felt::ZERO rather than an error.
func (v *View) ClassHashOfContract(ctx context.Context, addr felt.Felt) (felt.Felt, bool, error) {
	if systemAddress(addr) {
		return felt.Zero, true, nil
	}
	switch v.kind {
	case kindLatest:
		return v.latest.classHash(ctx, addr)
	case kindHistorical:
		return v.latest.provider.ClassHashAtBlock(ctx, addr, v.block)
	case kindPending:
		if ch, ok := v.pending.ClassHashAt(addr); ok {
			return ch, true, nil
		}
		return v.latest.classHash(ctx, addr)
	case kindForked:
		ch, ok, err := v.inner.ClassHashOfContract(ctx, addr)
		if err != nil || ok {
			return ch, ok, err
		}
		ch, err = v.fork.ClassHashAt(ctx, addr, v.forkBlock)
		if err != nil {
			return felt.Zero, false, err
		}
		return ch, true, nil
	default:
		return felt.Zero, false, nil
	}
}

// Class returns the contract class keyed by classHash. Class declarations
// are immutable once made, so every variant but Forked simply defers to
// the provider regardless of block.
func (v *View) Class(ctx context.Context, classHash felt.Felt) (types.ContractClass, bool, error) {
	switch v.kind {
	case kindForked:
		cls, ok, err := v.inner.Class(ctx, classHash)
		if err != nil || ok {
			return cls, ok, err
		}
		cls, err = v.fork.ClassAt(ctx, classHash, v.forkBlock)
		if err != nil {
			return types.ContractClass{}, false, err
		}
		return cls, true, nil
	default:
		base := v.baseLatest()
		return base.class(ctx, classHash)
	}
}

// CompiledClassHashOfClassHash returns the compiled hash Sierra classes
// carry; legacy classes have none.
func (v *View) CompiledClassHashOfClassHash(ctx context.Context, classHash felt.Felt) (felt.Felt, bool, error) {
	base := v.baseLatest()
	return base.compiledClassHash(ctx, classHash)
}

// baseLatest returns the Latest view backing any variant, since class
// lookups never vary by Historical/Pending and Forked already delegates
// through its inner Latest for the local half of a read.
func (v *View) baseLatest() *latestView {
	switch v.kind {
	case kindForked:
		return v.inner.baseLatest()
	default:
		return v.latest
	}
}
