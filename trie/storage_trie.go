// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package trie

import (
	"sort"

	"github.com/starkdev/node/felt"
)

// StorageTrie is one contract's per-key storage trie (§4.2 "StoragesTrie(addr)").
type StorageTrie struct {
	t *Trie
}

// NewStorageTrie wraps backend as the storage trie for a single contract.
// Callers scope backend to the owning address (NewPersistent's trieID), so
// two contracts never share leaf storage.
func NewStorageTrie(backend Backend) *StorageTrie {
	return &StorageTrie{t: New(backend)}
}

// ApplyDiff writes a set of key/value updates. §4.2 "Storage update
// ordering" requires ascending-key application; Trie.Root already sorts the
// full leaf set before folding, so ordering here only matters for callers
// who also observe intermediate state via Get between writes — it does not
// affect the final root.
func (s *StorageTrie) ApplyDiff(diff map[felt.Felt]felt.Felt) {
	keys := make([]felt.Felt, 0, len(diff))
	for k := range diff {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Cmp(keys[j]) < 0 })
	for _, k := range keys {
		s.t.Put(k, diff[k])
	}
}

// Get returns the current value at key, zero if never written.
func (s *StorageTrie) Get(key felt.Felt) felt.Felt { return s.t.Get(key) }

// Root returns storage_root(addr) over the current leaf set.
func (s *StorageTrie) Root() felt.Felt { return s.t.Root() }
