// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package trie implements the Bonsai-style sparse Merkle tries over
// classes, contracts and per-contract storage (C2), and the Poseidon-based
// state-root composition built on top of them.
package trie

import (
	"sort"

	"github.com/google/btree"

	"github.com/starkdev/node/felt"
)

// leaf is a single (key, value) entry kept by a Backend.
type leaf struct {
	key   felt.Felt
	value felt.Felt
}

func (l leaf) Less(other btree.Item) bool {
	return l.key.Cmp(other.(leaf).key) < 0
}

// Backend stores the current leaf set of one trie instance. The genesis
// initializer (§4.2 "Volatile overlay", §9 "Genesis trie volatility") needs
// to recompute a root without persisting it, so Backend is a generic
// parameter of Trie rather than baked into it: NewVolatile gives an
// in-memory throwaway, NewPersistent commits into the real database.
type Backend interface {
	Get(key felt.Felt) (felt.Felt, bool)
	Put(key, value felt.Felt)
	// Ascend iterates every (key, value) pair in ascending key order —
	// required by §4.2 "Storage update ordering" so root computation is
	// deterministic regardless of insertion order. layeredBackend is the
	// exception; see its Ascend.
	Ascend(func(key, value felt.Felt) bool)
	Len() int
}

// memoryBackend is an in-memory, btree-ordered leaf set (google/btree),
// used for the volatile overlay and for tests.
type memoryBackend struct {
	tree *btree.BTree
}

// NewVolatile returns a throwaway, in-memory-only Backend: writes to it are
// never persisted, matching the genesis re-verification path that must
// recompute a root without mutating the real trie store.
func NewVolatile() Backend {
	return &memoryBackend{tree: btree.New(32)}
}

func (b *memoryBackend) Get(key felt.Felt) (felt.Felt, bool) {
	item := b.tree.Get(leaf{key: key})
	if item == nil {
		return felt.Zero, false
	}
	return item.(leaf).value, true
}

func (b *memoryBackend) Put(key, value felt.Felt) {
	b.tree.ReplaceOrInsert(leaf{key: key, value: value})
}

func (b *memoryBackend) Ascend(f func(key, value felt.Felt) bool) {
	b.tree.Ascend(func(item btree.Item) bool {
		l := item.(leaf)
		return f(l.key, l.value)
	})
}

func (b *memoryBackend) Len() int { return b.tree.Len() }

// layeredBackend reads through to a base Backend but keeps every write in
// an in-memory overlay, never touching base. The commitment pipeline uses
// this to preview a state root against the real persisted trie leaves
// without mutating them (§9 "Genesis trie volatility" generalizes beyond
// genesis: any caller that needs a pure root computation over a live base
// can layer over it).
type layeredBackend struct {
	base    Backend
	overlay *memoryBackend
}

// NewLayered returns a Backend that reads from base but writes only to a
// discardable overlay.
func NewLayered(base Backend) Backend {
	return &layeredBackend{base: base, overlay: btreeBackend()}
}

func btreeBackend() *memoryBackend { return &memoryBackend{tree: btree.New(32)} }

func (b *layeredBackend) Get(key felt.Felt) (felt.Felt, bool) {
	if v, ok := b.overlay.Get(key); ok {
		return v, true
	}
	return b.base.Get(key)
}

func (b *layeredBackend) Put(key, value felt.Felt) {
	b.overlay.Put(key, value)
}

// Ascend visits the overlay's entries in ascending key order, then the base
// entries the overlay does not shadow, also in ascending key order. The
// combined sequence is not globally sorted; sortedEntries sorts its result.
func (b *layeredBackend) Ascend(f func(key, value felt.Felt) bool) {
	seen := make(map[felt.Felt]struct{})
	cont := true
	b.overlay.Ascend(func(key, value felt.Felt) bool {
		seen[key] = struct{}{}
		cont = f(key, value)
		return cont
	})
	if !cont {
		return
	}
	b.base.Ascend(func(key, value felt.Felt) bool {
		if _, ok := seen[key]; ok {
			return true
		}
		return f(key, value)
	})
}

func (b *layeredBackend) Len() int {
	n := 0
	b.Ascend(func(felt.Felt, felt.Felt) bool { n++; return true })
	return n
}

// sortedEntries is a convenience used by root computation and proof
// extraction when a plain slice is more convenient than a live backend.
func sortedEntries(b Backend) []leaf {
	entries := make([]leaf, 0, b.Len())
	b.Ascend(func(key, value felt.Felt) bool {
		entries = append(entries, leaf{key: key, value: value})
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].key.Cmp(entries[j].key) < 0 })
	return entries
}
