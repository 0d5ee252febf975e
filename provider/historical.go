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

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/kv"
)

// NonceAtBlock resolves addr's nonce as of the end of block (§4.5
// "Historical"): walk the change-set bitmap downward to the largest
// entry <= block, then read that exact row out of NonceChangeHistory. A
// false second return means addr never had a nonce change at or before
// block, so the caller should treat it as absent rather than zero.
func (p *DbProvider) NonceAtBlock(ctx context.Context, addr felt.Felt, block uint64) (felt.Felt, bool, error) {
	var out felt.Felt
	var found bool
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		at, ok, err := nonceChangeBlockAtOrBelow(tx, addr, block)
		if err != nil || !ok {
			return err
		}
		dup, err := tx.CursorDupSort(kv.NonceChangeHistory)
		if err != nil {
			return err
		}
		defer dup.Close()
		a := addr.Bytes()
		v, err := dup.SeekBothRange(encodeU64(at), a[:])
		if err != nil {
			return err
		}
		if v == nil || !equalPrefix(v, a[:]) {
			return nil
		}
		out = decodeFelt(v[32:])
		found = true
		return nil
	})
	return out, found, err
}

// ClassHashAtBlock resolves addr's class hash as of the end of block,
// scanning ClassChangeHistory's duplicate rows at the resolved block for
// the one belonging to addr (entries are tagged deployed/replaced but
// either kind carries the class hash that applied as of that block).
func (p *DbProvider) ClassHashAtBlock(ctx context.Context, addr felt.Felt, block uint64) (felt.Felt, bool, error) {
	var out felt.Felt
	var found bool
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		at, ok, err := classChangeBlockAtOrBelow(tx, addr, block)
		if err != nil || !ok {
			return err
		}
		dup, err := tx.CursorDupSort(kv.ClassChangeHistory)
		if err != nil {
			return err
		}
		defer dup.Close()
		if _, _, err := dup.Seek(encodeU64(at)); err != nil {
			return err
		}
		a := addr.Bytes()
		for v, err := dup.FirstDup(); ; v, err = nextDupValue(dup) {
			if err != nil {
				return err
			}
			if v == nil {
				break
			}
			if !hasAddrPrefix(v, a[:]) {
				continue
			}
			out = decodeFelt(v[1+32 : 1+64])
			found = true
			return nil
		}
		return nil
	})
	return out, found, err
}

func nextDupValue(dup kv.CursorDupSort) ([]byte, error) {
	_, v, err := dup.NextDup()
	return v, err
}

func hasAddrPrefix(entry, addr []byte) bool {
	if len(entry) < 1+len(addr) {
		return false
	}
	return equalPrefix(entry[1:], addr)
}

// StorageAtBlock resolves (addr,key)'s value as of the end of block.
func (p *DbProvider) StorageAtBlock(ctx context.Context, addr, key felt.Felt, block uint64) (felt.Felt, bool, error) {
	var out felt.Felt
	var found bool
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		at, ok, err := storageChangeBlockAtOrBelow(tx, addr, key, block)
		if err != nil || !ok {
			return err
		}
		dup, err := tx.CursorDupSort(kv.StorageChangeHistory)
		if err != nil {
			return err
		}
		defer dup.Close()
		if _, _, err := dup.Seek(encodeU64(at)); err != nil {
			return err
		}
		a, kb := addr.Bytes(), key.Bytes()
		for v, err := dup.FirstDup(); ; v, err = nextDupValue(dup) {
			if err != nil {
				return err
			}
			if v == nil {
				break
			}
			if len(v) < 96 || !equalPrefix(v, a[:]) || !equalPrefix(v[32:], kb[:]) {
				continue
			}
			out = decodeFelt(v[64:96])
			found = true
			return nil
		}
		return nil
	})
	return out, found, err
}
