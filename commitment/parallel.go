// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package commitment

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/types"
)

// CommitParallel is Commit's concurrent twin: it computes the same five
// sub-values in parallel instead of one after another. Every
// sub-computation is a pure function of the already-resolved inputs, so the
// result is bit-identical to Commit regardless of which goroutine finishes
// first (§8 property 5 "Sequential ≡ parallel").
func (p *Pipeline) CommitParallel(ctx context.Context, in Input) (types.SealedBlock, error) {
	if err := p.preprocess(ctx, &in); err != nil {
		return types.SealedBlock{}, err
	}

	var (
		transactionsCommitment felt.Felt
		receiptsCommitment     felt.Felt
		eventsCommitment       felt.Felt
		diffCommitment         felt.Felt
		stateRoot              felt.Felt
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		txHashes := make([]felt.Felt, len(in.Transactions))
		for i, t := range in.Transactions {
			txHashes[i] = t.Hash
		}
		transactionsCommitment = MerkleRoot(txHashes)
		return nil
	})
	g.Go(func() error {
		receiptHashes := make([]felt.Felt, len(in.Receipts))
		for i, r := range in.Receipts {
			receiptHashes[i] = receiptHash(r)
		}
		receiptsCommitment = MerkleRoot(receiptHashes)
		return nil
	})
	g.Go(func() error {
		eventsCommitment = MerkleRoot(eventLeaves(in.Receipts))
		return nil
	})
	g.Go(func() error {
		diffCommitment = stateDiffCommitment(in.State)
		return nil
	})
	g.Go(func() error {
		root, err := p.roots.PreviewStateRoot(gctx, in.State)
		if err != nil {
			return err
		}
		stateRoot = root
		return nil
	})

	if err := g.Wait(); err != nil {
		return types.SealedBlock{}, err
	}

	return p.assemble(in, stateRoot, transactionsCommitment, eventsCommitment, receiptsCommitment, diffCommitment), nil
}
