// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package commitment

import (
	"context"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/types"
)

// StoredBlockHashBuffer is how many blocks back the registry contract at
// address 0x1 reaches, per §4.7 "Preprocessing".
const StoredBlockHashBuffer = 10

var registryContractAddress = felt.FromUint64(1)

// StateRootProvider resolves the state root that a given state diff would
// produce, computed against whatever base the provider already has (C2),
// without mutating it (§4.7 "the two sub-roots come from C2 applied to
// state_updates at this block number").
type StateRootProvider interface {
	PreviewStateRoot(ctx context.Context, s *types.StateUpdates) (felt.Felt, error)
}

// BlockHashProvider resolves a previously sealed block's hash by number, the
// collaborator the block-hash-registry preprocessing step reads from.
type BlockHashProvider interface {
	BlockHashAtNumber(ctx context.Context, num uint64) (felt.Felt, bool, error)
}

// Input is everything the pipeline needs to seal one block: a partial
// header, the block's transactions in submission order, their receipts in
// the same order, and the resolved state diff they produced.
type Input struct {
	Header       types.PartialHeader
	Transactions []types.TxWithHash
	Receipts     []types.ReceiptWithTxHash
	State        *types.StateUpdates
}

// Pipeline is the commitment pipeline (C7): a pure function of
// (partial_header, txs, receipts, state_updates) given its two read-only
// collaborators.
type Pipeline struct {
	roots  StateRootProvider
	hashes BlockHashProvider
}

// New wires a Pipeline against the provider it reads roots and historical
// block hashes from.
func New(roots StateRootProvider, hashes BlockHashProvider) *Pipeline {
	return &Pipeline{roots: roots, hashes: hashes}
}

// preprocess applies §4.7's "Preprocessing" step in place: once the chain
// is at least StoredBlockHashBuffer blocks deep, the header-hash-registry
// contract at 0x1 records the hash of the block ten behind the one being
// produced, substituting zero when that hash isn't available locally (the
// forked, pre-fork-range case).
func (p *Pipeline) preprocess(ctx context.Context, in *Input) error {
	if in.Header.Number < StoredBlockHashBuffer {
		return nil
	}
	target := in.Header.Number - StoredBlockHashBuffer
	hash, ok, err := p.hashes.BlockHashAtNumber(ctx, target)
	if err != nil {
		return err
	}
	if !ok {
		hash = felt.Zero
	}
	in.State.PutStorage(registryContractAddress, felt.FromUint64(target), hash)
	return nil
}

// Commit runs the sequential commitment pipeline and returns the sealed
// block (§4.7, the commit() path).
func (p *Pipeline) Commit(ctx context.Context, in Input) (types.SealedBlock, error) {
	if err := p.preprocess(ctx, &in); err != nil {
		return types.SealedBlock{}, err
	}

	txHashes := make([]felt.Felt, len(in.Transactions))
	for i, t := range in.Transactions {
		txHashes[i] = t.Hash
	}
	receiptHashes := make([]felt.Felt, len(in.Receipts))
	for i, r := range in.Receipts {
		receiptHashes[i] = receiptHash(r)
	}

	transactionsCommitment := MerkleRoot(txHashes)
	receiptsCommitment := MerkleRoot(receiptHashes)
	eventsCommitment := MerkleRoot(eventLeaves(in.Receipts))
	diffCommitment := stateDiffCommitment(in.State)
	stateRoot, err := p.roots.PreviewStateRoot(ctx, in.State)
	if err != nil {
		return types.SealedBlock{}, err
	}

	return p.assemble(in, stateRoot, transactionsCommitment, eventsCommitment, receiptsCommitment, diffCommitment), nil
}

// assemble fills in the header's derived fields and computes the final
// block hash (§4.7 "Header assembly").
func (p *Pipeline) assemble(in Input, stateRoot, txComm, eventsComm, receiptsComm, diffComm felt.Felt) types.SealedBlock {
	eventsCount := uint64(0)
	for _, r := range in.Receipts {
		eventsCount += uint64(len(r.Receipt.Events))
	}

	header := types.Header{
		PartialHeader:          in.Header,
		TransactionCount:       uint64(len(in.Transactions)),
		StateDiffLength:        stateDiffLength(in.State),
		EventsCount:            eventsCount,
		StateRoot:              stateRoot,
		TransactionsCommitment: txComm,
		EventsCommitment:       eventsComm,
		ReceiptsCommitment:     receiptsComm,
		StateDiffCommitment:    diffComm,
	}

	body := make([]types.Transaction, len(in.Transactions))
	for i, t := range in.Transactions {
		body[i] = t.Tx
	}

	block := types.Block{Header: header, Body: body}
	return types.SealedBlock{Block: block, Hash: headerHash(header)}
}
