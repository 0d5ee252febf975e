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
	"github.com/starkdev/node/kv"
)

// Trie ids: the prefixes persistent leaf/root storage is scoped by, per the
// "one physical table serves every trie instance" design in kv/tables.go.
var (
	classesTrieID   = []byte("classes")
	contractsTrieID = []byte("contracts")
)

// StorageTrieID returns the trie id a given contract's storage trie is
// scoped under, exported so the provider can commit/read storage roots
// without duplicating this prefix convention.
func StorageTrieID(addr felt.Felt) []byte {
	return storageTrieID(addr)
}

func storageTrieID(addr felt.Felt) []byte {
	b := addr.Bytes()
	return append([]byte("storage/"), b[:]...)
}

// ContractUpdate is the resolved input the caller (the provider, which owns
// the mutable ContractInfo snapshot) hands to Manager.InsertContractUpdates
// for one touched address: the trie layer itself has no notion of "current
// nonce" or "current class hash" outside of what is folded into a leaf
// hash, so the caller resolves those before calling in.
type ContractUpdate struct {
	Address     felt.Felt
	ClassHash   felt.Felt
	Nonce       felt.Felt
	StorageDiff map[felt.Felt]felt.Felt
}

// Manager owns the three logical tries (§4.2) against one kv database and
// records per-block root history for each.
type Manager struct {
	db kv.RwDB
}

// NewManager returns a Manager persisting through db.
func NewManager(db kv.RwDB) *Manager {
	return &Manager{db: db}
}

// InsertDeclaredClasses applies a batch of class declarations within tx and
// returns the resulting classes_root, without committing history (callers
// call Commit once per block after all tries for that block are updated).
func (m *Manager) InsertDeclaredClasses(tx kv.RwTx, updates []ClassDeclaration) felt.Felt {
	ct := NewClassesTrie(NewPersistent(tx, classesTrieID))
	return ct.InsertDeclaredClasses(updates)
}

// InsertContractUpdates applies storage diffs and contract-leaf updates for
// every touched address and returns the resulting contracts_root.
func (m *Manager) InsertContractUpdates(tx kv.RwTx, updates []ContractUpdate) felt.Felt {
	contracts := NewContractsTrie(NewPersistent(tx, contractsTrieID))
	for _, u := range updates {
		st := NewStorageTrie(NewPersistent(tx, storageTrieID(u.Address)))
		if len(u.StorageDiff) > 0 {
			st.ApplyDiff(u.StorageDiff)
		}
		contracts.SetContract(u.Address, ContractLeaf{
			ClassHash:   u.ClassHash,
			StorageRoot: st.Root(),
			Nonce:       u.Nonce,
		})
	}
	return contracts.Root()
}

// Commit records classesRoot and contractsRoot as the roots at block,
// consulted later by ClassesRootAt/ContractsRootAt (§4.2 "Per-block commit").
func (m *Manager) Commit(tx kv.RwTx, block uint64, classesRoot, contractsRoot felt.Felt) error {
	if err := PutRootAtBlock(tx, classesTrieID, block, classesRoot); err != nil {
		return err
	}
	return PutRootAtBlock(tx, contractsTrieID, block, contractsRoot)
}

// CommitStorageRoot records addr's storage root at block, so
// StorageRootOf(addr, block) can resolve it historically.
func (m *Manager) CommitStorageRoot(tx kv.RwTx, addr felt.Felt, block uint64, root felt.Felt) error {
	return PutRootAtBlock(tx, storageTrieID(addr), block, root)
}

// PreviewRoots computes the classes_root and contracts_root that declaredClasses
// and updates would produce against the roots currently persisted in tx,
// without writing anything back (§4.7 "Preprocessing" / §9 "Genesis trie
// volatility" generalized: the commitment pipeline needs contracts_root and
// classes_root to assemble a header before the block is actually persisted,
// and must not mutate the real trie to get them). tx may be read-only; the
// layered overlay absorbs every write.
func (m *Manager) PreviewRoots(tx kv.Tx, declaredClasses []ClassDeclaration, updates []ContractUpdate) (classesRoot, contractsRoot felt.Felt) {
	ct := NewClassesTrie(NewLayered(NewPersistent(tx, classesTrieID)))
	classesRoot = ct.InsertDeclaredClasses(declaredClasses)

	contracts := NewContractsTrie(NewLayered(NewPersistent(tx, contractsTrieID)))
	for _, u := range updates {
		st := NewStorageTrie(NewLayered(NewPersistent(tx, storageTrieID(u.Address))))
		if len(u.StorageDiff) > 0 {
			st.ApplyDiff(u.StorageDiff)
		}
		contracts.SetContract(u.Address, ContractLeaf{
			ClassHash:   u.ClassHash,
			StorageRoot: st.Root(),
			Nonce:       u.Nonce,
		})
	}
	contractsRoot = contracts.Root()
	return classesRoot, contractsRoot
}

// ClassesRootAt returns the classes_root recorded at or before block.
func (m *Manager) ClassesRootAt(tx kv.Tx, block uint64) (felt.Felt, bool, error) {
	return RootAtBlock(tx, classesTrieID, block)
}

// ContractsRootAt returns the contracts_root recorded at or before block.
func (m *Manager) ContractsRootAt(tx kv.Tx, block uint64) (felt.Felt, bool, error) {
	return RootAtBlock(tx, contractsTrieID, block)
}

// StorageRootOf returns addr's storage root recorded at or before block.
func (m *Manager) StorageRootOf(tx kv.Tx, addr felt.Felt, block uint64) (felt.Felt, bool, error) {
	return RootAtBlock(tx, storageTrieID(addr), block)
}

// StateRoot composes the block-level state root from the two sub-roots
// (§4.2 "State root"): Poseidon("STARKNET_STATE_V0", contracts_root, classes_root).
func StateRoot(contractsRoot, classesRoot felt.Felt) felt.Felt {
	return felt.PoseidonHash(stateRootDomainTag, contractsRoot, classesRoot)
}

var stateRootDomainTag = feltFromASCII("STARKNET_STATE_V0")

func feltFromASCII(s string) felt.Felt {
	return felt.FromBytesBE([]byte(s))
}
