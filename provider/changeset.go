// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Historical reconstruction (§4.3, §4.5, §8 property 3) indexes which
// blocks touched a given (contract, field) pair with a roaring bitmap per
// key, mirroring Erigon's AccountsHistory/StorageHistory shard design
// (erigon-lib/kv/tables.go) but keeping one unsharded bitmap per key since
// this node's history depth is orders of magnitude smaller than mainnet
// Ethereum's.
package provider

import (
	"encoding/binary"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/kv"
)

func storageChangeSetKey(addr, key felt.Felt) []byte {
	a, k := addr.Bytes(), key.Bytes()
	out := make([]byte, 0, 64)
	out = append(out, a[:]...)
	out = append(out, k[:]...)
	return out
}

func loadBitmap(tx kv.Tx, table kv.Table, key []byte) (*roaring.Bitmap, error) {
	v, err := tx.Get(table, key)
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	if v == nil {
		return bm, nil
	}
	if err := bm.UnmarshalBinary(v); err != nil {
		return nil, err
	}
	return bm, nil
}

func storeBitmap(tx kv.RwTx, table kv.Table, key []byte, bm *roaring.Bitmap) error {
	v, err := bm.MarshalBinary()
	if err != nil {
		return err
	}
	return tx.Put(table, key, v)
}

// contractInfoChangeSet packs the two bitmaps (nonce-change blocks,
// class-change blocks) tracked per address into one ContractInfoChangeSet
// row, each length-prefixed.
func loadContractInfoChangeSet(tx kv.Tx, addr felt.Felt) (nonceBlocks, classBlocks *roaring.Bitmap, err error) {
	a := addr.Bytes()
	v, err := tx.Get(kv.ContractInfoChangeSet, a[:])
	if err != nil {
		return nil, nil, err
	}
	nonceBlocks, classBlocks = roaring.New(), roaring.New()
	if v == nil {
		return nonceBlocks, classBlocks, nil
	}
	nLen := binary.BigEndian.Uint32(v[:4])
	if err := nonceBlocks.UnmarshalBinary(v[4 : 4+nLen]); err != nil {
		return nil, nil, err
	}
	rest := v[4+nLen:]
	cLen := binary.BigEndian.Uint32(rest[:4])
	if err := classBlocks.UnmarshalBinary(rest[4 : 4+cLen]); err != nil {
		return nil, nil, err
	}
	return nonceBlocks, classBlocks, nil
}

func storeContractInfoChangeSet(tx kv.RwTx, addr felt.Felt, nonceBlocks, classBlocks *roaring.Bitmap) error {
	nb, err := nonceBlocks.MarshalBinary()
	if err != nil {
		return err
	}
	cb, err := classBlocks.MarshalBinary()
	if err != nil {
		return err
	}
	out := make([]byte, 0, 8+len(nb)+len(cb))
	out = binary.BigEndian.AppendUint32(out, uint32(len(nb)))
	out = append(out, nb...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(cb)))
	out = append(out, cb...)
	a := addr.Bytes()
	return tx.Put(kv.ContractInfoChangeSet, a[:], out)
}

// recordNonceChange marks block as a block at which addr's nonce changed.
func recordNonceChange(tx kv.RwTx, addr felt.Felt, block uint64) error {
	nonceBlocks, classBlocks, err := loadContractInfoChangeSet(tx, addr)
	if err != nil {
		return err
	}
	nonceBlocks.Add(uint32(block))
	return storeContractInfoChangeSet(tx, addr, nonceBlocks, classBlocks)
}

// recordClassChange marks block as a block at which addr's class changed.
func recordClassChange(tx kv.RwTx, addr felt.Felt, block uint64) error {
	nonceBlocks, classBlocks, err := loadContractInfoChangeSet(tx, addr)
	if err != nil {
		return err
	}
	classBlocks.Add(uint32(block))
	return storeContractInfoChangeSet(tx, addr, nonceBlocks, classBlocks)
}

// recordStorageChange marks block as a block at which (addr,key) changed.
func recordStorageChange(tx kv.RwTx, addr, key felt.Felt, block uint64) error {
	bm, err := loadBitmap(tx, kv.StorageChangeSet, storageChangeSetKey(addr, key))
	if err != nil {
		return err
	}
	bm.Add(uint32(block))
	return storeBitmap(tx, kv.StorageChangeSet, storageChangeSetKey(addr, key), bm)
}

// largestAtOrBelow returns the largest bitmap member <= block, and whether
// any member exists at all.
func largestAtOrBelow(bm *roaring.Bitmap, block uint64) (uint64, bool) {
	if bm.IsEmpty() {
		return 0, false
	}
	it := bm.ReverseIterator()
	for it.HasNext() {
		v := it.Next()
		if uint64(v) <= block {
			return uint64(v), true
		}
	}
	return 0, false
}

// nonceChangeBlockAtOrBelow resolves the largest block <= block at which
// addr's nonce changed (§4.5 "Historical" — binary search for largest
// entry <= block; the roaring bitmap's reverse iterator does this directly).
func nonceChangeBlockAtOrBelow(tx kv.Tx, addr felt.Felt, block uint64) (uint64, bool, error) {
	nonceBlocks, _, err := loadContractInfoChangeSet(tx, addr)
	if err != nil {
		return 0, false, err
	}
	b, ok := largestAtOrBelow(nonceBlocks, block)
	return b, ok, nil
}

func classChangeBlockAtOrBelow(tx kv.Tx, addr felt.Felt, block uint64) (uint64, bool, error) {
	_, classBlocks, err := loadContractInfoChangeSet(tx, addr)
	if err != nil {
		return 0, false, err
	}
	b, ok := largestAtOrBelow(classBlocks, block)
	return b, ok, nil
}

func storageChangeBlockAtOrBelow(tx kv.Tx, addr, key felt.Felt, block uint64) (uint64, bool, error) {
	bm, err := loadBitmap(tx, kv.StorageChangeSet, storageChangeSetKey(addr, key))
	if err != nil {
		return 0, false, err
	}
	b, ok := largestAtOrBelow(bm, block)
	return b, ok, nil
}
