// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/kv"
	"github.com/starkdev/node/types"
)

func newTestProvider(t *testing.T) *DbProvider {
	t.Helper()
	db := kv.NewMemDB()
	t.Cleanup(func() { db.Close() })
	return NewDbProvider(db)
}

func sampleBlock(num uint64, parent felt.Felt) (types.SealedBlockWithStatus, types.StateUpdatesWithClasses, []types.ReceiptWithTxHash, []types.TransactionTrace) {
	tx := types.Transaction{Kind: types.TxInvokeV1, SenderAddress: felt.FromUint64(100), Nonce: felt.FromUint64(num)}
	header := types.Header{
		PartialHeader: types.PartialHeader{ParentHash: parent, Number: num, Timestamp: 1000 + num},
		TransactionCount: 1,
	}
	hash := felt.FromUint64(1000 + num)
	block := types.SealedBlockWithStatus{
		Block: types.SealedBlock{
			Block: types.Block{Header: header, Body: []types.Transaction{tx}},
			Hash:  hash,
		},
		Status: types.AcceptedOnL2,
	}

	su := types.NewStateUpdates()
	su.NonceUpdates[felt.FromUint64(100)] = felt.FromUint64(num)
	su.PutStorage(felt.FromUint64(100), felt.FromUint64(7), felt.FromUint64(num*10))
	stateWithClasses := types.StateUpdatesWithClasses{StateUpdates: su, Classes: map[felt.Felt]*types.ContractClass{}}

	receipts := []types.ReceiptWithTxHash{{TxHash: felt.FromUint64(2000 + num), Receipt: types.Receipt{TxKind: types.TxInvokeV1, Result: types.ExecutionSucceeded}}}
	traces := []types.TransactionTrace{{Kind: types.TxInvokeV1, Raw: []byte("trace")}}
	return block, stateWithClasses, receipts, traces
}

func TestInsertBlockAndRoundTrip(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	block, su, receipts, traces := sampleBlock(0, felt.Zero)
	require.NoError(t, p.InsertBlockWithStatesAndReceipts(ctx, block, su, receipts, traces))

	num, err := p.LatestBlockNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), num)

	byNum, err := p.BlockByID(ctx, types.ByNumber(0))
	require.NoError(t, err)
	require.True(t, byNum.Block.Hash.Equal(block.Block.Hash))

	byHash, err := p.BlockByID(ctx, types.ByHash(block.Block.Hash))
	require.NoError(t, err)
	require.Equal(t, byNum.Block.Hash, byHash.Block.Hash)

	nonce, err := p.NonceAt(ctx, felt.FromUint64(100))
	require.NoError(t, err)
	require.True(t, nonce.Equal(felt.FromUint64(0)))

	storage, err := p.StorageAt(ctx, felt.FromUint64(100), felt.FromUint64(7))
	require.NoError(t, err)
	require.True(t, storage.Equal(felt.Zero))
}

// TestStorageAtReflectsLatestWrite guards against writeContractStorage
// inserting a second ContractStorage dup instead of replacing the first
// when a later block overwrites an already-written (addr, key).
func TestStorageAtReflectsLatestWrite(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	addr, key := felt.FromUint64(100), felt.FromUint64(7)

	block0, su0, receipts0, traces0 := sampleBlock(0, felt.Zero)
	su0.StateUpdates.PutStorage(addr, key, felt.FromUint64(10))
	require.NoError(t, p.InsertBlockWithStatesAndReceipts(ctx, block0, su0, receipts0, traces0))

	storage, err := p.StorageAt(ctx, addr, key)
	require.NoError(t, err)
	require.True(t, storage.Equal(felt.FromUint64(10)))

	block1, su1, receipts1, traces1 := sampleBlock(1, block0.Block.Hash)
	su1.StateUpdates.PutStorage(addr, key, felt.FromUint64(20))
	require.NoError(t, p.InsertBlockWithStatesAndReceipts(ctx, block1, su1, receipts1, traces1))

	storage, err = p.StorageAt(ctx, addr, key)
	require.NoError(t, err)
	require.True(t, storage.Equal(felt.FromUint64(20)))
}

func TestMonotonicTxOffset(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	block0, su0, r0, tr0 := sampleBlock(0, felt.Zero)
	require.NoError(t, p.InsertBlockWithStatesAndReceipts(ctx, block0, su0, r0, tr0))

	block1, su1, r1, tr1 := sampleBlock(1, block0.Block.Hash)
	require.NoError(t, p.InsertBlockWithStatesAndReceipts(ctx, block1, su1, r1, tr1))

	idx0, err := p.BlockBodyIndicesByNumber(ctx, 0)
	require.NoError(t, err)
	idx1, err := p.BlockBodyIndicesByNumber(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, idx0.TxOffset+idx0.TxCount, idx1.TxOffset)
}

func TestSystemAddressNeverNotFound(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	classHash, err := p.ClassHashAt(ctx, felt.FromUint64(1))
	require.NoError(t, err)
	require.True(t, classHash.IsZero())
}

func TestHistoricalNonceReconstruction(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	addr := felt.FromUint64(100)

	var parent felt.Felt
	for n := uint64(0); n < 4; n++ {
		block, su, r, tr := sampleBlock(n, parent)
		require.NoError(t, p.InsertBlockWithStatesAndReceipts(ctx, block, su, r, tr))
		parent = block.Block.Hash
	}

	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		b, ok, err := nonceChangeBlockAtOrBelow(tx, addr, 2)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(2), b)
		return nil
	})
	require.NoError(t, err)
}

func TestDeclaredClassRoundTrip(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	classHash := felt.FromUint64(555)
	compiledHash := felt.FromUint64(556)
	su := types.NewStateUpdates()
	su.DeclaredClasses[classHash] = compiledHash
	cls := &types.ContractClass{Kind: types.ClassSierra, Sierra: &types.SierraClass{ABI: "[]"}}

	block := types.SealedBlockWithStatus{
		Block: types.SealedBlock{
			Block: types.Block{Header: types.Header{PartialHeader: types.PartialHeader{Number: 0}}},
			Hash:  felt.FromUint64(9000),
		},
	}
	swc := types.StateUpdatesWithClasses{StateUpdates: su, Classes: map[felt.Felt]*types.ContractClass{classHash: cls}}
	require.NoError(t, p.InsertBlockWithStatesAndReceipts(ctx, block, swc, nil, nil))

	got, err := p.ClassByHash(ctx, classHash)
	require.NoError(t, err)
	require.True(t, got.IsSierra())

	gotCompiled, err := p.CompiledClassHashByClassHash(ctx, classHash)
	require.NoError(t, err)
	require.True(t, gotCompiled.Equal(compiledHash))
}
