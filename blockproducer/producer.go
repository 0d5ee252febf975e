// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package blockproducer

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/starkdev/node/commitment"
	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/provider"
	"github.com/starkdev/node/types"
)

// BlockStats summarizes one mined block for callers reporting metrics or
// admin RPC responses.
type BlockStats struct {
	IncludedCount int
	InvalidCount  int
}

// MinedBlockOutcome is what every producer mode returns for one sealed
// block (§4.6 "produce MinedBlockOutcome { block_hash, block_number,
// tx_hashes, stats }").
type MinedBlockOutcome struct {
	BlockHash   felt.Felt
	BlockNumber uint64
	TxHashes    []felt.Felt
	Stats       BlockStats
}

// core holds the collaborators and sequencing state shared by both producer
// modes (§4.6). Every call into core.seal must be made with mu held, so the
// write-serialization invariant (§5 "C1 allows exactly one RW transaction
// at a time") holds even across the two modes sharing one database.
type core struct {
	mu sync.Mutex

	provider provider.Provider
	pipeline *commitment.Pipeline
	bcg      *BlockContextGenerator
	oracle   GasOracle
	executor ExecutorFunc
	log      *zap.Logger

	sequencerAddress felt.Felt
	daMode           types.L1DAMode
	nextNumber       uint64
}

// newCore constructs the shared core, seeding nextNumber from whatever is
// already persisted — a producer is only ever started after genesis has
// been committed (§4.7 "Genesis special path" runs separately, before any
// producer exists).
func newCore(
	ctx context.Context,
	p provider.Provider,
	pipeline *commitment.Pipeline,
	bcg *BlockContextGenerator,
	oracle GasOracle,
	executor ExecutorFunc,
	sequencerAddress felt.Felt,
	daMode types.L1DAMode,
	log *zap.Logger,
) (*core, error) {
	latest, err := p.LatestBlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &core{
		provider:         p,
		pipeline:         pipeline,
		bcg:              bcg,
		oracle:           oracle,
		executor:         executor,
		log:              log,
		sequencerAddress: sequencerAddress,
		daMode:           daMode,
		nextNumber:       latest + 1,
	}, nil
}

// newEnv starts a fresh BlockEnv at the core's next number and advances it
// through the shared BlockContextGenerator (§4.6 "Block env generation").
// Caller must hold core.mu.
func (c *core) newEnv() BlockEnv {
	// advance increments Number itself, so seed one below nextNumber —
	// nextNumber is always >= 1 since genesis occupies block 0.
	env := BlockEnv{Number: c.nextNumber - 1, SequencerAddress: c.sequencerAddress}
	c.bcg.advance(&env, c.oracle)
	return env
}

// seal runs the commitment pipeline over an already-executed batch and
// persists the result atomically (§4.7, §4.3). Caller must hold core.mu.
func (c *core) seal(ctx context.Context, env BlockEnv, out ExecutionOutput) (MinedBlockOutcome, error) {
	parentHash, err := c.parentHash(ctx)
	if err != nil {
		return MinedBlockOutcome{}, err
	}

	included := out.Included()
	body := make([]types.TxWithHash, len(included))
	receipts := make([]types.ReceiptWithTxHash, len(included))
	traces := make([]types.TransactionTrace, len(included))
	txHashes := make([]felt.Felt, len(included))
	for i, oc := range included {
		body[i] = types.TxWithHash{Hash: oc.Hash, Tx: oc.Tx}
		receipts[i] = types.ReceiptWithTxHash{TxHash: oc.Hash, Receipt: oc.Receipt}
		traces[i] = oc.Trace
		txHashes[i] = oc.Hash
	}

	header := types.PartialHeader{
		ParentHash:       parentHash,
		Number:           env.Number,
		Timestamp:        env.Timestamp,
		SequencerAddress: env.SequencerAddress,
		StarknetVersion:  env.StarknetVersion,
		L1DAMode:         c.daMode,
		GasPrices:        env.GasPrices,
	}

	sealed, err := c.pipeline.Commit(ctx, commitment.Input{
		Header:       header,
		Transactions: body,
		Receipts:     receipts,
		State:        out.State.StateUpdates,
	})
	if err != nil {
		return MinedBlockOutcome{}, err
	}

	sealedBlock := types.SealedBlockWithStatus{Block: sealed, Status: types.AcceptedOnL2}
	if err := c.provider.InsertBlockWithStatesAndReceipts(ctx, sealedBlock, out.State, receipts, traces); err != nil {
		return MinedBlockOutcome{}, err
	}

	c.nextNumber = env.Number + 1

	invalid := 0
	for _, oc := range out.Outcomes {
		if oc.Kind == TxInvalid {
			invalid++
		}
	}

	c.log.Debug("mined block",
		zap.Uint64("number", sealed.Block.Header.Number),
		zap.Int("included", len(included)),
		zap.Int("invalid", invalid),
	)

	return MinedBlockOutcome{
		BlockHash:   sealed.Hash,
		BlockNumber: sealed.Block.Header.Number,
		TxHashes:    txHashes,
		Stats:       BlockStats{IncludedCount: len(included), InvalidCount: invalid},
	}, nil
}

func (c *core) parentHash(ctx context.Context) (felt.Felt, error) {
	hash, err := c.provider.LatestBlockHash(ctx)
	if err != nil {
		if errors.Is(err, provider.ErrMissingLatestBlockNumber) {
			return felt.Zero, nil
		}
		return felt.Zero, err
	}
	return hash, nil
}
