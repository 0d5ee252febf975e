// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package trie

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starkdev/node/felt"
)

func TestRootEmpty(t *testing.T) {
	tr := New(NewVolatile())
	require.True(t, tr.Root().IsZero())
}

func TestRootDeterministicRegardlessOfInsertionOrder(t *testing.T) {
	keys := []felt.Felt{felt.FromUint64(5), felt.FromUint64(1), felt.FromUint64(9), felt.FromUint64(3)}
	values := []felt.Felt{felt.FromUint64(50), felt.FromUint64(10), felt.FromUint64(90), felt.FromUint64(30)}

	forward := New(NewVolatile())
	for i := range keys {
		forward.Put(keys[i], values[i])
	}

	reversed := New(NewVolatile())
	for i := len(keys) - 1; i >= 0; i-- {
		reversed.Put(keys[i], values[i])
	}

	require.True(t, forward.Root().Equal(reversed.Root()))
}

func TestRootChangesWithValue(t *testing.T) {
	tr := New(NewVolatile())
	tr.Put(felt.FromUint64(1), felt.FromUint64(100))
	r1 := tr.Root()

	tr.Put(felt.FromUint64(1), felt.FromUint64(200))
	r2 := tr.Root()

	require.False(t, r1.Equal(r2))
}

func TestRootIndependentOfMapIterationOrder(t *testing.T) {
	// Two backends each receive the full entry set: one in Go's map
	// iteration order, the other in descending key order. Both roots must
	// agree.
	entries := map[uint64]uint64{1: 11, 2: 22, 3: 33, 4: 44, 5: 55, 6: 66}

	full := New(NewVolatile())
	for k, v := range entries {
		full.Put(felt.FromUint64(k), felt.FromUint64(v))
	}
	rootA := full.Root()

	full2 := New(NewVolatile())
	keys := []uint64{6, 5, 4, 3, 2, 1}
	for _, k := range keys {
		full2.Put(felt.FromUint64(k), felt.FromUint64(entries[k]))
	}
	rootB := full2.Root()

	require.True(t, rootA.Equal(rootB))
}

func TestContractStateHashFixedOrder(t *testing.T) {
	l := ContractLeaf{
		ClassHash:   felt.FromUint64(1),
		StorageRoot: felt.FromUint64(2),
		Nonce:       felt.FromUint64(3),
	}
	h1 := contractStateHash(l)
	h2 := contractStateHash(l)
	require.True(t, h1.Equal(h2))

	swapped := ContractLeaf{ClassHash: felt.FromUint64(2), StorageRoot: felt.FromUint64(1), Nonce: felt.FromUint64(3)}
	require.False(t, h1.Equal(contractStateHash(swapped)))
}

func TestStateRootComposition(t *testing.T) {
	classes := NewClassesTrie(NewVolatile())
	classes.InsertDeclaredClasses([]ClassDeclaration{{ClassHash: felt.FromUint64(1), CompiledClassHash: felt.FromUint64(2)}})

	contracts := NewContractsTrie(NewVolatile())
	contracts.SetContract(felt.FromUint64(10), ContractLeaf{ClassHash: felt.FromUint64(1), StorageRoot: felt.Zero, Nonce: felt.Zero})

	root1 := StateRoot(contracts.Root(), classes.Root())
	root2 := StateRoot(contracts.Root(), classes.Root())
	require.True(t, root1.Equal(root2))
	require.False(t, root1.Equal(classes.Root()))
}

func TestProofRoundTrip(t *testing.T) {
	backend := NewVolatile()
	tr := New(backend)
	tr.Put(felt.FromUint64(10), felt.FromUint64(100))
	tr.Put(felt.FromUint64(20), felt.FromUint64(200))
	tr.Put(felt.FromUint64(30), felt.FromUint64(300))

	root := tr.Root()
	mp := Prove(backend, []felt.Felt{felt.FromUint64(20)})
	require.True(t, mp.Root.Equal(root))
	require.Len(t, mp.Entries, 1)

	entry := mp.Entries[0]
	require.True(t, entry.Value.Equal(felt.FromUint64(200)))
	require.True(t, VerifyProof(root, felt.FromUint64(20), entry))
}

func TestProofNonMembership(t *testing.T) {
	backend := NewVolatile()
	tr := New(backend)
	tr.Put(felt.FromUint64(10), felt.FromUint64(100))
	root := tr.Root()

	mp := Prove(backend, []felt.Felt{felt.FromUint64(999)})
	require.True(t, mp.Entries[0].Value.IsZero())
	require.True(t, VerifyProof(root, felt.FromUint64(999), mp.Entries[0]))
}

func TestManagerPersistsRootHistory(t *testing.T) {
	db := newTestDB(t)
	mgr := NewManager(db)

	ctx := testContext()
	tx, err := db.BeginRw(ctx)
	require.NoError(t, err)

	classesRoot := mgr.InsertDeclaredClasses(tx, []ClassDeclaration{
		{ClassHash: felt.FromUint64(1), CompiledClassHash: felt.FromUint64(2)},
	})
	contractsRoot := mgr.InsertContractUpdates(tx, []ContractUpdate{
		{
			Address:     felt.FromUint64(100),
			ClassHash:   felt.FromUint64(1),
			Nonce:       felt.FromUint64(0),
			StorageDiff: map[felt.Felt]felt.Felt{felt.FromUint64(1): felt.FromUint64(42)},
		},
	})
	require.NoError(t, mgr.Commit(tx, 0, classesRoot, contractsRoot))
	require.NoError(t, tx.Commit())

	tx2, err := db.BeginRo(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()

	gotClasses, ok, err := mgr.ClassesRootAt(tx2, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, gotClasses.Equal(classesRoot))

	gotContracts, ok, err := mgr.ContractsRootAt(tx2, 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, gotContracts.Equal(contractsRoot))
}
