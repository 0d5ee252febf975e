// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package forking

import (
	"context"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/types"
)

// Client is the upstream RPC surface the forking backend reads through.
// The real JSON-RPC transport is a named, out-of-scope collaborator (§1);
// this interface is the contract the worker needs from it.
type Client interface {
	BlockByID(ctx context.Context, id types.BlockHashOrNumber) (types.SealedBlockWithStatus, error)
	StateUpdateByID(ctx context.Context, id types.BlockHashOrNumber) (types.StateUpdatesWithClasses, error)
	ReceiptByHash(ctx context.Context, hash felt.Felt) (types.ReceiptWithTxHash, error)
	NonceAt(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error)
	StorageAt(ctx context.Context, addr, key felt.Felt, blockNum uint64) (felt.Felt, error)
	ClassHashAt(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error)
	ClassAt(ctx context.Context, classHash felt.Felt, blockNum uint64) (types.ContractClass, error)
	StorageRoot(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error)
	GlobalRoots(ctx context.Context, blockNum uint64) (contractsRoot, classesRoot felt.Felt, err error)
	BlockTraces(ctx context.Context, id types.BlockHashOrNumber) ([]types.TransactionTrace, error)
}

// NotFoundError wraps an upstream "not found" response for a given kind;
// the provider boundary maps this to Ok(None) rather than propagating an
// error (§4.4 "Error translation").
type NotFoundError struct {
	Kind Kind
}

func (e *NotFoundError) Error() string { return "forking: not found upstream" }

// StarknetProviderError wraps any other upstream failure, which propagates
// to the caller unchanged (§4.4 "Error translation").
type StarknetProviderError struct {
	Err error
}

func (e *StarknetProviderError) Error() string { return "forking: upstream error: " + e.Err.Error() }
func (e *StarknetProviderError) Unwrap() error  { return e.Err }
