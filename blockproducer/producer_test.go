// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package blockproducer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starkdev/node/commitment"
	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/kv"
	"github.com/starkdev/node/provider"
	"github.com/starkdev/node/stateview"
	"github.com/starkdev/node/types"
)

func newTestProvider(t *testing.T) *provider.DbProvider {
	t.Helper()
	db := kv.NewMemDB()
	t.Cleanup(func() { db.Close() })
	return provider.NewDbProvider(db)
}

// insertGenesis seeds an empty provider with a trivial block 0, the
// precondition every producer constructor assumes (§4.7 "Genesis special
// path runs separately, before any producer exists").
func insertGenesis(t *testing.T, p *provider.DbProvider) {
	t.Helper()
	ctx := context.Background()
	header := types.Header{PartialHeader: types.PartialHeader{Number: 0}}
	block := types.SealedBlockWithStatus{Block: types.SealedBlock{Block: types.Block{Header: header}, Hash: felt.FromUint64(1)}, Status: types.AcceptedOnL2}
	su := types.NewStateUpdates()
	swc := types.StateUpdatesWithClasses{StateUpdates: su, Classes: map[felt.Felt]*types.ContractClass{}}
	require.NoError(t, p.InsertBlockWithStatesAndReceipts(ctx, block, swc, nil, nil))
}

// echoExecutor mints one nonce bump per submitted transaction and always
// includes it successfully; a minimal stand-in for the real executor.
func echoExecutor(t *testing.T) ExecutorFunc {
	return func(ctx context.Context, view *stateview.View, txs []types.Transaction, env BlockEnv) (ExecutionOutput, error) {
		state := types.NewStateUpdates()
		outcomes := make([]TxOutcome, len(txs))
		for i, tx := range txs {
			nonce, _, err := view.Nonce(ctx, tx.SenderAddress)
			require.NoError(t, err)
			state.NonceUpdates[tx.SenderAddress] = nonce.Add(felt.FromUint64(1))
			hash := felt.FromUint64(uint64(env.Number)*1000 + uint64(i))
			outcomes[i] = TxOutcome{
				Kind: TxIncluded,
				Hash: hash,
				Tx:   tx,
				Receipt: types.Receipt{
					TxKind: tx.Kind,
					Fee:    types.FeeInfo{Amount: felt.FromUint64(1), Unit: "FRI"},
				},
			}
		}
		return ExecutionOutput{Outcomes: outcomes, State: types.StateUpdatesWithClasses{StateUpdates: state, Classes: map[felt.Felt]*types.ContractClass{}}}, nil
	}
}

func TestInstantProducerMinesOneBlockPerTx(t *testing.T) {
	p := newTestProvider(t)
	insertGenesis(t, p)
	ctx := context.Background()

	ip, err := NewInstantProducer(ctx, p, commitment.New(p, p), &BlockContextGenerator{}, StaticGasOracle{}, echoExecutor(t), felt.FromUint64(42), types.DAModeCalldata, nil)
	require.NoError(t, err)

	addr := felt.FromUint64(7)
	out1, err := ip.Submit(ctx, types.Transaction{Kind: types.TxInvokeV1, SenderAddress: addr})
	require.NoError(t, err)
	require.Equal(t, uint64(1), out1.BlockNumber)
	require.Equal(t, 1, out1.Stats.IncludedCount)

	out2, err := ip.Submit(ctx, types.Transaction{Kind: types.TxInvokeV1, SenderAddress: addr})
	require.NoError(t, err)
	require.Equal(t, uint64(2), out2.BlockNumber)

	n, ok, err := stateview.Latest(p).Nonce(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, n.Equal(felt.FromUint64(2)))
}

func TestIntervalProducerAccumulatesUntilForceMine(t *testing.T) {
	p := newTestProvider(t)
	insertGenesis(t, p)
	ctx := context.Background()

	ip, err := NewIntervalProducer(ctx, p, commitment.New(p, p), &BlockContextGenerator{}, StaticGasOracle{}, echoExecutor(t), felt.FromUint64(42), types.DAModeCalldata, 0, nil)
	require.NoError(t, err)
	defer ip.Close()

	addr := felt.FromUint64(7)
	require.NoError(t, ip.Submit(ctx, types.Transaction{Kind: types.TxInvokeV1, SenderAddress: addr}))
	require.NoError(t, ip.Submit(ctx, types.Transaction{Kind: types.TxInvokeV1, SenderAddress: addr}))

	// Not yet mined: latest state is still genesis, but the pending view
	// already reflects both submitted transactions.
	_, ok, err := stateview.Latest(p).Nonce(ctx, addr)
	require.NoError(t, err)
	require.False(t, ok)

	pn, ok, err := ip.PendingView().Nonce(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, pn.Equal(felt.FromUint64(2)))

	out, err := ip.ForceMine(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), out.BlockNumber)
	require.Equal(t, 2, out.Stats.IncludedCount)

	n, ok, err := stateview.Latest(p).Nonce(ctx, addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, n.Equal(felt.FromUint64(2)))

	// A second ForceMine with nothing pending still seals an empty block.
	empty, err := ip.ForceMine(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), empty.BlockNumber)
	require.Equal(t, 0, empty.Stats.IncludedCount)
}

func TestIntervalProducerTimerSeals(t *testing.T) {
	p := newTestProvider(t)
	insertGenesis(t, p)
	ctx := context.Background()

	ip, err := NewIntervalProducer(ctx, p, commitment.New(p, p), &BlockContextGenerator{}, StaticGasOracle{}, echoExecutor(t), felt.FromUint64(42), types.DAModeCalldata, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer ip.Close()

	addr := felt.FromUint64(7)
	require.NoError(t, ip.Submit(ctx, types.Transaction{Kind: types.TxInvokeV1, SenderAddress: addr}))

	require.Eventually(t, func() bool {
		num, err := p.LatestBlockNumber(ctx)
		return err == nil && num == 1
	}, time.Second, 5*time.Millisecond, "timer must seal the pending batch")
}
