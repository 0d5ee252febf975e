// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

// Package types defines the core data model shared by every component of
// the state-and-block engine: headers, blocks, transactions, receipts,
// state updates and contract classes.
package types

import "github.com/starkdev/node/felt"

// BlockNumber identifies a block by its monotonic sequencer-assigned height.
type BlockNumber = uint64

// L1DAMode is the data-availability mode a block (or transaction) declares.
type L1DAMode uint8

const (
	DAModeCalldata L1DAMode = iota
	DAModeBlob
)

// ResourcePrice carries both ETH- and STRK-denominated gas prices for one
// resource (L1 gas, L1 data gas, L2 gas).
type ResourcePrice struct {
	PriceInWei felt.Felt
	PriceInFri felt.Felt
}

// GasPrices bundles the three resource prices attached to every header.
type GasPrices struct {
	L1GasPrice     ResourcePrice
	L1DataGasPrice ResourcePrice
	L2GasPrice     ResourcePrice
}

// PartialHeader is everything about a header that is known before the
// commitment pipeline (C7) runs: it is completed into a Header by attaching
// the four commitments, the counts and the state root.
type PartialHeader struct {
	ParentHash        felt.Felt
	Number            BlockNumber
	Timestamp         uint64
	SequencerAddress  felt.Felt
	StarknetVersion   string
	L1DAMode          L1DAMode
	GasPrices         GasPrices
}

// Header is the immutable, sealed block header (§3 "Header"). Once
// produced by the commitment pipeline it is never mutated.
type Header struct {
	PartialHeader

	TransactionCount       uint64
	StateDiffLength        uint64
	EventsCount            uint64
	StateRoot              felt.Felt
	TransactionsCommitment felt.Felt
	EventsCommitment       felt.Felt
	ReceiptsCommitment     felt.Felt
	StateDiffCommitment    felt.Felt
}

// FinalityStatus tags how final a stored block is. The core is a single
// sequencer (§1 non-goals exclude consensus), so in practice every locally
// produced block is AcceptedOnL2; AcceptedOnL1 is only ever observed on
// blocks fetched from an upstream fork.
type FinalityStatus uint8

const (
	AcceptedOnL2 FinalityStatus = iota
	AcceptedOnL1
)

// StoredBlockBodyIndices maps a block to the contiguous transaction-number
// range it owns (§3 invariant 2).
type StoredBlockBodyIndices struct {
	TxOffset uint64
	TxCount  uint64
}
