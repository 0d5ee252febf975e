// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package genesis

import (
	"context"
	"errors"
	"fmt"

	"github.com/starkdev/node/commitment"
	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/provider"
	"github.com/starkdev/node/types"
)

// Initializer applies a genesis document to a fresh or already-populated
// provider. On a fresh database it derives block 0 and persists it; on an
// already-populated one it only re-verifies the stored hash and aborts on
// mismatch (§4.7 "Genesis special path", §7 "GenesisHashMismatch — fatal on
// startup; abort").
type Initializer struct {
	provider provider.Provider
}

// NewInitializer wires an Initializer against p.
func NewInitializer(p provider.Provider) *Initializer {
	return &Initializer{provider: p}
}

// Apply runs doc's genesis allocations through the commitment pipeline. If
// the database already has a block 0, Apply only verifies; otherwise it
// derives and persists one.
func (init *Initializer) Apply(ctx context.Context, doc *Document) (types.SealedBlock, error) {
	header, state, _, err := doc.Resolve()
	if err != nil {
		return types.SealedBlock{}, err
	}

	existingHash, found, err := init.provider.BlockHashAtNumber(ctx, 0)
	if err != nil {
		return types.SealedBlock{}, err
	}
	var want *felt.Felt
	if _, latestErr := init.provider.LatestBlockNumber(ctx); !errors.Is(latestErr, provider.ErrMissingLatestBlockNumber) {
		if !found {
			return types.SealedBlock{}, fmt.Errorf("genesis: database has a latest block but no block 0 hash")
		}
		want = &existingHash
	}

	sealed, err := commitment.CommitGenesis(ctx, header, nil, nil, state, want)
	if err != nil {
		return types.SealedBlock{}, err
	}
	if want != nil {
		// Already initialized: verification succeeded, nothing more to do.
		return sealed, nil
	}

	classes := map[felt.Felt]*types.ContractClass{}
	block := types.SealedBlockWithStatus{Block: sealed, Status: types.AcceptedOnL2}
	swc := types.StateUpdatesWithClasses{StateUpdates: state, Classes: classes}
	if err := init.provider.InsertBlockWithStatesAndReceipts(ctx, block, swc, nil, nil); err != nil {
		return types.SealedBlock{}, err
	}
	return sealed, nil
}
