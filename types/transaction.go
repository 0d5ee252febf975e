// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package types

import "github.com/starkdev/node/felt"

// TxKind tags the transaction variant (§3 "Transaction").
type TxKind uint8

const (
	TxInvokeV0 TxKind = iota
	TxInvokeV1
	TxInvokeV3
	TxDeclareV0
	TxDeclareV1
	TxDeclareV2
	TxDeclareV3
	TxDeployAccountV1
	TxDeployAccountV3
	TxL1Handler
	TxDeploy // legacy
)

// ResourceBounds is the v3 fee-bound triple (L1 gas, L1 data gas, L2 gas).
type ResourceBounds struct {
	MaxAmount       uint64
	MaxPricePerUnit felt.Felt
}

type FeeBounds struct {
	L1Gas     ResourceBounds
	L1DataGas ResourceBounds
	L2Gas     ResourceBounds
	// MaxFee is used by v0/v1/v2 transactions instead of per-resource bounds.
	MaxFee felt.Felt
}

// Transaction is the tagged variant over every Starknet transaction kind.
// Fields not applicable to a given Kind are left zero.
type Transaction struct {
	Kind      TxKind
	ChainID   felt.Felt
	Nonce     felt.Felt
	Signature []felt.Felt

	SenderAddress      felt.Felt
	Calldata           []felt.Felt
	Fee                FeeBounds
	NonceDAMode        L1DAMode
	FeeDAMode          L1DAMode
	PaymasterData      []felt.Felt
	AccountDeploymentData []felt.Felt
	Tip                uint64

	// Declare-specific.
	ClassHash         felt.Felt
	CompiledClassHash felt.Felt
	ContractClass     *ContractClass

	// DeployAccount/Deploy-specific.
	ContractAddressSalt felt.Felt
	ConstructorCalldata []felt.Felt

	// L1Handler-specific.
	EntryPointSelector felt.Felt
	FromAddress        felt.Felt
	PaidFeeOnL1        uint64
}

// TxWithHash couples a transaction with the hash that identifies it.
type TxWithHash struct {
	Hash felt.Felt
	Tx   Transaction
}

// TxNumber is the dense, monotonic, contiguous index assigned to every
// transaction ever inserted (§3 invariant 2), independent of block number.
type TxNumber = uint64
