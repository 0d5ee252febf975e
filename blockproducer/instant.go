// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package blockproducer

import (
	"context"

	"go.uber.org/zap"

	"github.com/starkdev/node/commitment"
	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/provider"
	"github.com/starkdev/node/stateview"
	"github.com/starkdev/node/types"
)

// InstantProducer mines exactly one block per accepted transaction (§4.6
// "Instant mode"): each Submit runs the executor against the latest
// committed state with a fresh BlockEnv and seals immediately.
type InstantProducer struct {
	c *core
}

// NewInstantProducer wires an InstantProducer against its collaborators.
func NewInstantProducer(
	ctx context.Context,
	p provider.Provider,
	pipeline *commitment.Pipeline,
	bcg *BlockContextGenerator,
	oracle GasOracle,
	executor ExecutorFunc,
	sequencerAddress felt.Felt,
	daMode types.L1DAMode,
	log *zap.Logger,
) (*InstantProducer, error) {
	c, err := newCore(ctx, p, pipeline, bcg, oracle, executor, sequencerAddress, daMode, log)
	if err != nil {
		return nil, err
	}
	return &InstantProducer{c: c}, nil
}

// Clock exposes the shared BlockContextGenerator so admin RPCs can adjust
// timestamp offsets (§4.6 dev timestamp controls).
func (ip *InstantProducer) Clock() *BlockContextGenerator { return ip.c.bcg }

// Submit executes tx against the latest state and mines a single-tx block.
// A Reverted execution is still mined with its revert reason attached; an
// Invalid one is dropped and the resulting block (and Stats.IncludedCount)
// is empty (§4.6).
func (ip *InstantProducer) Submit(ctx context.Context, tx types.Transaction) (MinedBlockOutcome, error) {
	ip.c.mu.Lock()
	defer ip.c.mu.Unlock()

	env := ip.c.newEnv()
	view := stateview.Latest(ip.c.provider)
	out, err := ip.c.executor(ctx, view, []types.Transaction{tx}, env)
	if err != nil {
		return MinedBlockOutcome{}, err
	}
	return ip.c.seal(ctx, env, out)
}
