// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package commitment

import (
	"context"
	"fmt"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/trie"
	"github.com/starkdev/node/types"
)

// GenesisHashMismatchError is fatal on startup (§7): an already-populated
// database's stored genesis hash disagrees with what re-deriving it from
// the genesis configuration now produces.
type GenesisHashMismatchError struct {
	Want, Got felt.Felt
}

func (e *GenesisHashMismatchError) Error() string {
	return fmt.Sprintf("commitment: genesis hash mismatch: stored %s, recomputed %s", e.Want, e.Got)
}

// volatileRootProvider computes state roots against fresh, in-memory-only
// tries rather than C2's persisted ones — the genesis special path (§4.7
// "C7 may be invoked with a volatile trie backend"): deriving the genesis
// hash must never depend on, or write to, whatever the database already
// holds, since re-running genesis init against an existing DB is purely a
// verification pass.
type volatileRootProvider struct{}

func (volatileRootProvider) PreviewStateRoot(_ context.Context, s *types.StateUpdates) (felt.Felt, error) {
	type update struct {
		classHash felt.Felt
		nonce     felt.Felt
		diff      map[felt.Felt]felt.Felt
	}
	touched := make(map[felt.Felt]*update)
	get := func(addr felt.Felt) *update {
		u, ok := touched[addr]
		if !ok {
			u = &update{diff: map[felt.Felt]felt.Felt{}}
			touched[addr] = u
		}
		return u
	}
	for addr, ch := range s.DeployedContracts {
		get(addr).classHash = ch
	}
	for addr, ch := range s.ReplacedClasses {
		get(addr).classHash = ch
	}
	for addr, n := range s.NonceUpdates {
		get(addr).nonce = n
	}
	for addr, diff := range s.StorageUpdates {
		u := get(addr)
		for k, v := range diff {
			u.diff[k] = v
		}
	}

	ct := trie.NewClassesTrie(trie.NewVolatile())
	decls := make([]trie.ClassDeclaration, 0, len(s.DeclaredClasses))
	for ch, cch := range s.DeclaredClasses {
		decls = append(decls, trie.ClassDeclaration{ClassHash: ch, CompiledClassHash: cch})
	}
	classesRoot := ct.InsertDeclaredClasses(decls)

	contracts := trie.NewContractsTrie(trie.NewVolatile())
	for addr, u := range touched {
		st := trie.NewStorageTrie(trie.NewVolatile())
		if len(u.diff) > 0 {
			st.ApplyDiff(u.diff)
		}
		contracts.SetContract(addr, trie.ContractLeaf{ClassHash: u.classHash, StorageRoot: st.Root(), Nonce: u.nonce})
	}

	return trie.StateRoot(contracts.Root(), classesRoot), nil
}

// noBlockHashes always reports a block hash as unavailable; the genesis
// block is always number 0, below StoredBlockHashBuffer, so preprocess
// never actually consults this, but Pipeline requires a BlockHashProvider.
type noBlockHashes struct{}

func (noBlockHashes) BlockHashAtNumber(context.Context, uint64) (felt.Felt, bool, error) {
	return felt.Zero, false, nil
}

// NewGenesisPipeline returns a Pipeline whose state-root computation never
// touches the persisted tries, for deriving or re-verifying the genesis
// block hash.
func NewGenesisPipeline() *Pipeline {
	return New(volatileRootProvider{}, noBlockHashes{})
}

// CommitGenesis derives the genesis sealed block from its configuration. If
// want is non-nil, the derived hash must equal it exactly or
// GenesisHashMismatchError aborts startup (§4.7 "Genesis special path").
func CommitGenesis(ctx context.Context, header types.PartialHeader, txs []types.TxWithHash, receipts []types.ReceiptWithTxHash, state *types.StateUpdates, want *felt.Felt) (types.SealedBlock, error) {
	sealed, err := NewGenesisPipeline().Commit(ctx, Input{
		Header:       header,
		Transactions: txs,
		Receipts:     receipts,
		State:        state,
	})
	if err != nil {
		return types.SealedBlock{}, err
	}
	if want != nil && !sealed.Hash.Equal(*want) {
		return types.SealedBlock{}, &GenesisHashMismatchError{Want: *want, Got: sealed.Hash}
	}
	return sealed, nil
}
