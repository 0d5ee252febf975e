// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package types

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/starkdev/node/felt"
)

// StorageDiff is the set of (key -> value) writes for one contract.
type StorageDiff map[felt.Felt]felt.Felt

// StateUpdates is the per-block diff over the mutable state snapshot
// (§3 "StateUpdates"). All maps are keyed by the Felt they are indexed by.
type StateUpdates struct {
	NonceUpdates      map[felt.Felt]felt.Felt
	StorageUpdates    map[felt.Felt]StorageDiff
	DeployedContracts map[felt.Felt]felt.Felt // address -> class_hash
	ReplacedClasses   map[felt.Felt]felt.Felt // address -> class_hash
	DeclaredClasses   map[felt.Felt]felt.Felt // class_hash -> compiled_class_hash (Sierra only)

	// DeprecatedDeclaredClasses is the legacy-declaration subset: a set
	// because no compiled_class_hash is ever attached to them (§3 invariant 4).
	DeprecatedDeclaredClasses mapset.Set[felt.Felt]

	MigratedCompiledClasses map[felt.Felt]felt.Felt // class_hash -> compiled_class_hash
}

// NewStateUpdates returns a StateUpdates with every map/set initialized,
// ready to accumulate writes.
func NewStateUpdates() *StateUpdates {
	return &StateUpdates{
		NonceUpdates:              make(map[felt.Felt]felt.Felt),
		StorageUpdates:            make(map[felt.Felt]StorageDiff),
		DeployedContracts:         make(map[felt.Felt]felt.Felt),
		ReplacedClasses:           make(map[felt.Felt]felt.Felt),
		DeclaredClasses:           make(map[felt.Felt]felt.Felt),
		DeprecatedDeclaredClasses: mapset.NewSet[felt.Felt](),
		MigratedCompiledClasses:   make(map[felt.Felt]felt.Felt),
	}
}

// PutStorage records a single storage write, creating the per-contract map
// lazily.
func (s *StateUpdates) PutStorage(addr, key, value felt.Felt) {
	diff, ok := s.StorageUpdates[addr]
	if !ok {
		diff = make(StorageDiff)
		s.StorageUpdates[addr] = diff
	}
	diff[key] = value
}

// StateUpdatesWithClasses bundles a StateUpdates with the full class
// artifacts it declares, the unit the provider persists atomically.
type StateUpdatesWithClasses struct {
	StateUpdates *StateUpdates
	Classes      map[felt.Felt]*ContractClass
}

// GenericContractInfo is the mutable per-contract record (§4.3 ContractInfo table).
type GenericContractInfo struct {
	ClassHash felt.Felt
	Nonce     felt.Felt
}

// StorageEntry is a single (key, value) pair as stored in the dup-sort
// ContractStorage table.
type StorageEntry struct {
	Key   felt.Felt
	Value felt.Felt
}
