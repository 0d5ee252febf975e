// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package stateview

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/kv"
	"github.com/starkdev/node/provider"
	"github.com/starkdev/node/types"
)

func newTestProvider(t *testing.T) *provider.DbProvider {
	t.Helper()
	db := kv.NewMemDB()
	t.Cleanup(func() { db.Close() })
	return provider.NewDbProvider(db)
}

func insertBlock(t *testing.T, p *provider.DbProvider, num uint64, parent felt.Felt, addr felt.Felt, nonce, storageVal felt.Felt) types.SealedBlockWithStatus {
	t.Helper()
	ctx := context.Background()
	header := types.Header{PartialHeader: types.PartialHeader{ParentHash: parent, Number: num, Timestamp: num}, TransactionCount: 0}
	block := types.SealedBlockWithStatus{
		Block:  types.SealedBlock{Block: types.Block{Header: header}, Hash: felt.FromUint64(5000 + num)},
		Status: types.AcceptedOnL2,
	}
	su := types.NewStateUpdates()
	su.NonceUpdates[addr] = nonce
	su.PutStorage(addr, felt.FromUint64(7), storageVal)
	swc := types.StateUpdatesWithClasses{StateUpdates: su, Classes: map[felt.Felt]*types.ContractClass{}}
	require.NoError(t, p.InsertBlockWithStatesAndReceipts(ctx, block, swc, nil, nil))
	return block
}

func TestLatestViewReadsCurrentState(t *testing.T) {
	p := newTestProvider(t)
	addr := felt.FromUint64(100)
	insertBlock(t, p, 0, felt.Zero, addr, felt.FromUint64(1), felt.FromUint64(42))

	v := Latest(p)
	ctx := context.Background()

	n, ok, err := v.Nonce(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, n.Equal(felt.FromUint64(1)))

	s, ok, err := v.Storage(ctx, addr, felt.FromUint64(7))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, s.Equal(felt.FromUint64(42)))
}

func TestHistoricalViewReconstructsPastState(t *testing.T) {
	p := newTestProvider(t)
	addr := felt.FromUint64(100)
	var parent felt.Felt
	for n := uint64(0); n < 4; n++ {
		b := insertBlock(t, p, n, parent, addr, felt.FromUint64(n+1), felt.FromUint64((n+1)*10))
		parent = b.Block.Hash
	}

	ctx := context.Background()
	v := Historical(p, 1)

	n, ok, err := v.Nonce(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, n.Equal(felt.FromUint64(2)), "nonce as of block 1 should be the block-1 write")

	s, ok, err := v.Storage(ctx, addr, felt.FromUint64(7))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, s.Equal(felt.FromUint64(20)))
}

func TestSystemAddressesNeverMissing(t *testing.T) {
	p := newTestProvider(t)
	v := Latest(p)
	ctx := context.Background()

	ch, ok, err := v.ClassHashOfContract(ctx, felt.FromUint64(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, ch.IsZero())

	ch2, ok, err := v.ClassHashOfContract(ctx, felt.FromUint64(2))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, ch2.IsZero())
}

type fakeExecutorState struct {
	nonces  map[felt.Felt]felt.Felt
	storage map[[2]felt.Felt]felt.Felt
	classes map[felt.Felt]felt.Felt
}

func (f *fakeExecutorState) Nonce(addr felt.Felt) (felt.Felt, bool) {
	v, ok := f.nonces[addr]
	return v, ok
}
func (f *fakeExecutorState) Storage(addr, key felt.Felt) (felt.Felt, bool) {
	v, ok := f.storage[[2]felt.Felt{addr, key}]
	return v, ok
}
func (f *fakeExecutorState) ClassHashAt(addr felt.Felt) (felt.Felt, bool) {
	v, ok := f.classes[addr]
	return v, ok
}

func TestPendingViewPrefersSessionThenFallsBack(t *testing.T) {
	p := newTestProvider(t)
	addr := felt.FromUint64(100)
	insertBlock(t, p, 0, felt.Zero, addr, felt.FromUint64(1), felt.FromUint64(42))

	session := &fakeExecutorState{
		nonces:  map[felt.Felt]felt.Felt{addr: felt.FromUint64(2)},
		storage: map[[2]felt.Felt]felt.Felt{},
		classes: map[felt.Felt]felt.Felt{},
	}
	v := Pending(p, session)
	ctx := context.Background()

	n, ok, err := v.Nonce(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, n.Equal(felt.FromUint64(2)), "pending session value must win over latest")

	s, ok, err := v.Storage(ctx, addr, felt.FromUint64(7))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, s.Equal(felt.FromUint64(42)), "pending miss falls back to latest")
}

func TestPendingViewWithNilSessionBehavesLikeLatest(t *testing.T) {
	p := newTestProvider(t)
	addr := felt.FromUint64(100)
	insertBlock(t, p, 0, felt.Zero, addr, felt.FromUint64(9), felt.Zero)

	v := Pending(p, nil)
	ctx := context.Background()
	n, ok, err := v.Nonce(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, n.Equal(felt.FromUint64(9)))
}

type fakeForkedReader struct {
	calls int
	nonce felt.Felt
}

func (f *fakeForkedReader) NonceAt(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error) {
	f.calls++
	return f.nonce, nil
}
func (f *fakeForkedReader) StorageAt(ctx context.Context, addr, key felt.Felt, blockNum uint64) (felt.Felt, error) {
	return felt.Zero, nil
}
func (f *fakeForkedReader) ClassHashAt(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error) {
	return felt.Zero, nil
}
func (f *fakeForkedReader) ClassAt(ctx context.Context, classHash felt.Felt, blockNum uint64) (types.ContractClass, error) {
	return types.ContractClass{}, nil
}

func TestForkedViewFallsThroughOnMissAndCaches(t *testing.T) {
	p := newTestProvider(t)
	addr := felt.FromUint64(999) // never written locally
	fork := &fakeForkedReader{nonce: felt.FromUint64(77)}
	cache := NewForkedCache()
	v := Forked(p, fork, 10, cache)
	ctx := context.Background()

	n, ok, err := v.Nonce(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, n.Equal(felt.FromUint64(77)))
	require.Equal(t, 1, fork.calls)

	// Second read hits the cache, not the upstream client again.
	_, _, err = v.Nonce(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, 1, fork.calls)

	cache.InvalidateContract(addr)
	_, _, err = v.Nonce(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, 2, fork.calls, "invalidation must force a fresh upstream read")
}

func TestForkedViewPrefersLocalOverRemote(t *testing.T) {
	p := newTestProvider(t)
	addr := felt.FromUint64(100)
	insertBlock(t, p, 0, felt.Zero, addr, felt.FromUint64(5), felt.Zero)

	fork := &fakeForkedReader{nonce: felt.FromUint64(999)}
	v := Forked(p, fork, 0, nil)
	ctx := context.Background()

	n, ok, err := v.Nonce(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, n.Equal(felt.FromUint64(5)), "a local hit must never fall through to the fork")
	require.Equal(t, 0, fork.calls)
}
