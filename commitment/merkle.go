// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package commitment implements the commitment pipeline (C7): given a
// partial header, executed transactions, receipts and a state diff, it
// computes the five Poseidon commitments and the new state root, then
// assembles and hashes the sealed header. Grounded directly on
// original_source/crates/core/src/backend/mod.rs's UncommittedBlock::commit
// / commit_parallel.
package commitment

import "github.com/starkdev/node/felt"

// MerkleRoot folds leaves into a single commitment under Poseidon: leaves
// are right-padded with zero to the next power of two, paired up bottom-up,
// and the resulting root is bound to the true (unpadded) leaf count so two
// different-length inputs sharing a padded shape never collide (§4.7
// "Commitments ... all over Poseidon unless noted").
func MerkleRoot(leaves []felt.Felt) felt.Felt {
	if len(leaves) == 0 {
		return felt.PoseidonHash(felt.Zero, felt.Zero)
	}

	level := make([]felt.Felt, nextPow2(len(leaves)))
	copy(level, leaves)

	for len(level) > 1 {
		next := make([]felt.Felt, len(level)/2)
		for i := range next {
			next[i] = felt.PoseidonPair(level[2*i], level[2*i+1])
		}
		level = next
	}
	return felt.PoseidonHash(level[0], felt.FromUint64(uint64(len(leaves))))
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
