// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package provider

import (
	"errors"
	"fmt"
)

// Structural invariant violations (§7): these indicate a bug in the write
// path, not a user-facing miss, and should be logged as critical by the
// nearest operational boundary.
var (
	ErrMissingTxBlock     = errors.New("provider: tx block index missing")
	ErrMissingTxHash      = errors.New("provider: tx hash missing")
	ErrMissingTxReceipt   = errors.New("provider: tx receipt missing")
	ErrMissingTxExecution = errors.New("provider: tx execution trace missing")

	ErrMissingLatestBlockNumber = errors.New("provider: no blocks inserted yet")
	ErrMissingLatestBlockHash   = errors.New("provider: no blocks inserted yet")

	// User-visible "not found" kinds, translated at the RPC boundary.
	ErrBlockNotFound     = errors.New("provider: block not found")
	ErrClassHashNotFound = errors.New("provider: class hash not found")
	ErrContractNotFound  = errors.New("provider: contract not found")
	ErrTxnHashNotFound   = errors.New("provider: transaction hash not found")

	ErrGenesisHashMismatch = errors.New("provider: genesis hash mismatch")
)

// MissingBlockHashError reports a gap in the BlockHashes table at num — a
// structural invariant violation (§7 "MissingBlockHash(num)").
type MissingBlockHashError struct{ Number uint64 }

func (e *MissingBlockHashError) Error() string {
	return fmt.Sprintf("provider: missing block hash at block %d", e.Number)
}

// MissingBlockHeaderError reports a gap in the Headers table at num.
type MissingBlockHeaderError struct{ Number uint64 }

func (e *MissingBlockHeaderError) Error() string {
	return fmt.Sprintf("provider: missing header at block %d", e.Number)
}

// MissingTxError reports a gap in the Transactions table at txNum.
type MissingTxError struct{ TxNumber uint64 }

func (e *MissingTxError) Error() string {
	return fmt.Sprintf("provider: missing transaction at tx_number %d", e.TxNumber)
}
