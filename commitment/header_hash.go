// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package commitment

import (
	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/types"
)

var blockHashDomainTag = feltFromASCII("STARKNET_BLOCK_HASH0")

// headerHash folds every header field the Starknet header-hash formula
// binds into a single Poseidon digest (§4.7 "computes the final block hash
// via the Starknet header-hash formula"): the four commitments, the state
// root, the counts, DA mode, gas prices, version and sequencer address, all
// chained under a domain tag so a header hash can never collide with a
// state root or any other Poseidon digest in this codebase.
func headerHash(h types.Header) felt.Felt {
	return felt.PoseidonHashArray([]felt.Felt{
		blockHashDomainTag,
		felt.FromUint64(h.Number),
		h.StateRoot,
		h.SequencerAddress,
		felt.FromUint64(h.Timestamp),
		felt.FromUint64(h.TransactionCount),
		felt.FromUint64(h.EventsCount),
		felt.FromUint64(h.StateDiffLength),
		felt.FromUint64(uint64(h.L1DAMode)),
		h.TransactionsCommitment,
		h.EventsCommitment,
		h.ReceiptsCommitment,
		h.StateDiffCommitment,
		gasPriceFelts(h.GasPrices.L1GasPrice),
		gasPriceFelts(h.GasPrices.L1DataGasPrice),
		gasPriceFelts(h.GasPrices.L2GasPrice),
		feltFromASCII(h.StarknetVersion),
		felt.Zero,
		h.ParentHash,
	})
}

// gasPriceFelts binds a resource price's two denominations into one field
// element so headerHash's field list stays a fixed, flat shape.
func gasPriceFelts(p types.ResourcePrice) felt.Felt {
	return felt.PoseidonPair(p.PriceInWei, p.PriceInFri)
}
