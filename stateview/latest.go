// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package stateview

import (
	"context"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/provider"
	"github.com/starkdev/node/types"
)

// latestView reads straight through to the provider's mutable snapshot
// (§4.5 "Latest: reads from ContractInfo/ContractStorage/Classes").
type latestView struct {
	provider provider.Provider
}

// Latest returns a View over the provider's current state.
func Latest(p provider.Provider) *View {
	return &View{kind: kindLatest, latest: &latestView{provider: p}}
}

func (l *latestView) nonce(ctx context.Context, addr felt.Felt) (felt.Felt, bool, error) {
	n, err := l.provider.NonceAt(ctx, addr)
	if err != nil {
		if isNotFound(err) {
			return felt.Zero, false, nil
		}
		return felt.Zero, false, err
	}
	return n, true, nil
}

func (l *latestView) storage(ctx context.Context, addr, key felt.Felt) (felt.Felt, bool, error) {
	v, err := l.provider.StorageAt(ctx, addr, key)
	if err != nil {
		return felt.Zero, false, err
	}
	// StorageAt returns Felt::ZERO for unwritten keys rather than an
	// error (§4.1 ContractStorage semantics): a zero value is ambiguous
	// between "written as zero" and "never written", so callers that need
	// the distinction use Historical's change-set-backed path instead.
	return v, true, nil
}

func (l *latestView) classHash(ctx context.Context, addr felt.Felt) (felt.Felt, bool, error) {
	ch, err := l.provider.ClassHashAt(ctx, addr)
	if err != nil {
		if isNotFound(err) {
			return felt.Zero, false, nil
		}
		return felt.Zero, false, err
	}
	return ch, true, nil
}

func (l *latestView) class(ctx context.Context, classHash felt.Felt) (types.ContractClass, bool, error) {
	cls, err := l.provider.ClassByHash(ctx, classHash)
	if err != nil {
		if isNotFound(err) {
			return types.ContractClass{}, false, nil
		}
		return types.ContractClass{}, false, err
	}
	return cls, true, nil
}

func (l *latestView) compiledClassHash(ctx context.Context, classHash felt.Felt) (felt.Felt, bool, error) {
	ch, err := l.provider.CompiledClassHashByClassHash(ctx, classHash)
	if err != nil {
		if isNotFound(err) {
			return felt.Zero, false, nil
		}
		return felt.Zero, false, err
	}
	return ch, true, nil
}

func isNotFound(err error) bool {
	switch err {
	case provider.ErrContractNotFound, provider.ErrClassHashNotFound:
		return true
	default:
		return false
	}
}
