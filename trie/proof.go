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

// ProofEntry is a single key's membership proof: the sibling hash at every
// level from root to leaf, indexed 0 (the top split) to Height-1 (closest
// to the leaf) — the order collectSiblings produces and VerifyProof expects.
type ProofEntry struct {
	Key      felt.Felt
	Value    felt.Felt
	Siblings []felt.Felt
}

// MultiProof bundles proofs for several keys extracted from one trie
// snapshot (§4.2 "class_multiproof", "contract_multiproof", "storage_multiproof").
type MultiProof struct {
	Root    felt.Felt
	Entries []ProofEntry
}

// Prove extracts a MultiProof for the given keys over backend's current
// leaf set. A missing key still gets an entry (Value == felt.Zero) so
// callers can verify non-membership.
func Prove(backend Backend, keys []felt.Felt) MultiProof {
	entries := sortedEntries(backend)
	paths := make([]pathLeaf, 0, len(entries))
	for _, e := range entries {
		if e.value.IsZero() {
			continue
		}
		paths = append(paths, pathLeaf{path: e.key, value: e.value})
	}

	mp := MultiProof{Root: computeRoot(paths, Height)}
	for _, k := range keys {
		siblings := make([]felt.Felt, 0, Height)
		collectSiblings(paths, Height, k, &siblings)
		v, _ := backend.Get(k)
		mp.Entries = append(mp.Entries, ProofEntry{Key: k, Value: v, Siblings: siblings})
	}
	return mp
}

// collectSiblings walks the same recursive partition Root/computeRoot use,
// recording the hash of the subtree NOT containing target at each level, so
// the proof is verifiable by replaying the same Poseidon folds.
func collectSiblings(leaves []pathLeaf, height int, target felt.Felt, out *[]felt.Felt) {
	if height == 0 {
		return
	}
	bitIndex := height - 1
	split := partitionByBit(leaves, bitIndex)
	left, right := leaves[:split], leaves[split:]

	if bitAt(target, bitIndex) == 0 {
		*out = append(*out, computeRoot(right, bitIndex))
		collectSiblings(left, bitIndex, target, out)
	} else {
		*out = append(*out, computeRoot(left, bitIndex))
		collectSiblings(right, bitIndex, target, out)
	}
}

// VerifyProof recomputes the root implied by an entry's value and sibling
// path and reports whether it matches root. Siblings are ordered root-to-leaf,
// matching Prove's output.
func VerifyProof(root felt.Felt, key felt.Felt, e ProofEntry) bool {
	if root.IsZero() {
		// An empty trie's root is zero and every key in it is absent.
		return e.Value.IsZero()
	}
	cur := e.Value
	for i := len(e.Siblings) - 1; i >= 0; i-- {
		bitIndex := len(e.Siblings) - 1 - i
		sib := e.Siblings[i]
		if bitAt(key, bitIndex) == 0 {
			cur = felt.PoseidonPair(cur, sib)
		} else {
			cur = felt.PoseidonPair(sib, cur)
		}
	}
	return cur.Equal(root)
}
