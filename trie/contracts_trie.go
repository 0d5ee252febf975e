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

// ContractsTrie is keyed by contract_address over the contract state hash
// (§4.2 "ContractsTrie").
type ContractsTrie struct {
	t *Trie
}

// NewContractsTrie wraps backend as a ContractsTrie.
func NewContractsTrie(backend Backend) *ContractsTrie {
	return &ContractsTrie{t: New(backend)}
}

// ContractLeaf is the triple hashed into a ContractsTrie leaf, and the same
// triple a storage proof's leaf data must re-hash to (§8 S9).
type ContractLeaf struct {
	ClassHash   felt.Felt
	StorageRoot felt.Felt
	Nonce       felt.Felt
}

// contractStateHash computes H(class_hash, storage_root, nonce, 0) with
// Pedersen applied in a fixed left-associative order, per §4.2.
func contractStateHash(l ContractLeaf) felt.Felt {
	h := felt.PedersenHash(l.ClassHash, l.StorageRoot)
	h = felt.PedersenHash(h, l.Nonce)
	h = felt.PedersenHash(h, felt.Zero)
	return h
}

// SetContract writes the leaf for addr given its current class hash,
// storage root and nonce.
func (c *ContractsTrie) SetContract(addr felt.Felt, leaf ContractLeaf) {
	c.t.Put(addr, contractStateHash(leaf))
}

// Root returns contracts_root over the current leaf set.
func (c *ContractsTrie) Root() felt.Felt { return c.t.Root() }
