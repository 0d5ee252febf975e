// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package types

import "github.com/starkdev/node/felt"

// ExecutionResultKind tags whether a mined transaction's execution
// succeeded or reverted (reverted transactions are still mined, §4.6).
type ExecutionResultKind uint8

const (
	ExecutionSucceeded ExecutionResultKind = iota
	ExecutionReverted
)

// MsgToL1 is an L2->L1 message emitted during execution.
type MsgToL1 struct {
	FromAddress felt.Felt
	ToAddress   felt.Felt
	Payload     []felt.Felt
}

// Event is a single emitted event, ordered within its receipt.
type Event struct {
	FromAddress felt.Felt
	Keys        []felt.Felt
	Data        []felt.Felt
}

// ExecutionResources records the resource consumption reported by the
// executor for a single transaction.
type ExecutionResources struct {
	Steps       uint64
	MemoryHoles uint64
	Builtins    map[string]uint64
}

// FeeInfo is the resolved fee actually charged for a transaction.
type FeeInfo struct {
	Amount felt.Felt
	Unit   string // "WEI" or "FRI"
}

// Receipt is the per-transaction execution outcome (§3 "Receipt").
type Receipt struct {
	TxKind            TxKind
	Fee               FeeInfo
	Events            []Event
	MessagesToL1      []MsgToL1
	Result            ExecutionResultKind
	RevertReason      string
	ExecutionResources ExecutionResources
	DAConsumed        uint64
	GasConsumed        uint64
}

// ReceiptWithTxHash is a Receipt with the hash of the transaction it belongs to.
type ReceiptWithTxHash struct {
	TxHash  felt.Felt
	Receipt Receipt
}

// TransactionTrace is the executor's per-transaction invocation tree; the
// core treats it as an opaque blob persisted verbatim (§3).
type TransactionTrace struct {
	Kind TxKind
	Raw  []byte
}
