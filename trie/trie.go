// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package trie

import (
	"github.com/starkdev/node/felt"
)

// Height is the number of bits in a trie path: every key is treated as a
// 251-bit unsigned path from the root, matching the Stark field's bit width
// (§2 "Felt").
const Height = 251

// Trie is a binary sparse Merkle tree over a Backend's leaf set. Every
// commit recomputes the root from scratch over the full sorted leaf set
// (§4.2 "Storage update ordering" requires root computation to be a
// deterministic function of the leaf set alone, not of update order or
// batching) rather than maintaining incremental Bonsai-style node diffs;
// this trades some recompute cost for a root implementation simple enough
// to trust without reference test vectors.
type Trie struct {
	backend Backend
}

// New wraps backend as a trie.
func New(backend Backend) *Trie {
	return &Trie{backend: backend}
}

// Get returns the value stored at key, or zero if absent — the sparse tree
// convention where every unset leaf is implicitly zero.
func (t *Trie) Get(key felt.Felt) felt.Felt {
	v, ok := t.backend.Get(key)
	if !ok {
		return felt.Zero
	}
	return v
}

// Put sets key to value. Setting a key to zero is equivalent to removing
// the leaf for root-computation purposes but the entry is kept physically
// present (tries over small, sparse address spaces: the recompute cost of
// distinguishing "present zero" from "absent" is not worth it here).
func (t *Trie) Put(key, value felt.Felt) {
	t.backend.Put(key, value)
}

// Root recomputes the trie root over every leaf currently in the backend.
func (t *Trie) Root() felt.Felt {
	entries := sortedEntries(t.backend)
	paths := make([]pathLeaf, 0, len(entries))
	for _, e := range entries {
		if e.value.IsZero() {
			continue
		}
		paths = append(paths, pathLeaf{path: e.key, value: e.value})
	}
	return computeRoot(paths, Height)
}

// pathLeaf is a (path, value) pair being folded into the tree at some bit
// depth; path always holds the full original key, node recursion tracks
// depth and partitions paths by their bit at that depth.
type pathLeaf struct {
	path  felt.Felt
	value felt.Felt
}

// emptySubtreeHash caches the hash of the all-zero subtree at each height,
// since most of a sparse tree's area is empty and recomputing Poseidon over
// an empty pair repeatedly would dominate cost.
var emptySubtreeHash = func() []felt.Felt {
	h := make([]felt.Felt, Height+1)
	h[0] = felt.Zero
	for i := 1; i <= Height; i++ {
		h[i] = felt.PoseidonPair(h[i-1], h[i-1])
	}
	return h
}()

// computeRoot folds a set of leaves, all sharing a common prefix of
// (Height-height) bits, into a single root hash at the given remaining
// height. Leaves must already be sorted by path (ascending).
func computeRoot(leaves []pathLeaf, height int) felt.Felt {
	if len(leaves) == 0 {
		if height == Height {
			// A trie with no non-zero leaves has root zero.
			return felt.Zero
		}
		return emptySubtreeHash[height]
	}
	if height == 0 {
		// A single leaf should remain at this point; if collisions ever
		// land here (same full path) the last write wins, consistent with
		// Put's last-write-wins semantics.
		return leaves[len(leaves)-1].value
	}

	bitIndex := height - 1
	split := partitionByBit(leaves, bitIndex)
	left := computeRoot(leaves[:split], bitIndex)
	right := computeRoot(leaves[split:], bitIndex)
	return felt.PoseidonPair(left, right)
}

// partitionByBit returns the index of the first leaf whose path has bit
// bitIndex set, given leaves sorted ascending by path — i.e. the boundary
// between the left (bit=0) and right (bit=1) subtrees.
func partitionByBit(leaves []pathLeaf, bitIndex int) int {
	lo, hi := 0, len(leaves)
	for lo < hi {
		mid := (lo + hi) / 2
		if bitAt(leaves[mid].path, bitIndex) == 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// bitAt returns bit i of f's canonical big-endian representation, counting
// from the least significant bit (bit 0), so bit Height-1 is the top bit of
// the Height-bit path, the one consulted at the root.
func bitAt(f felt.Felt, i int) uint {
	b := f.Bytes()
	bitPos := uint(i)
	byteIdx := len(b) - 1 - int(bitPos/8)
	if byteIdx < 0 {
		return 0
	}
	return uint(b[byteIdx]>>(bitPos%8)) & 1
}
