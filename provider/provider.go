// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package provider is the table-aware façade over C1/C2 (C3): typed reads
// and writes for blocks, transactions, receipts, traces, state diffs and
// trie updates, and the single atomic write contract
// insert_block_with_states_and_receipts. Grounded directly on
// original_source/crates/storage/provider/provider/src/providers/db/mod.rs.
package provider

import (
	"context"
	"fmt"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/kv"
	"github.com/starkdev/node/trie"
	"github.com/starkdev/node/types"
)

// Provider is the full read/write surface the block producer, state view
// factory and RPC layer share (§9 "cheaply-clonable handle to a shared,
// internally-synchronized provider").
type Provider interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	LatestBlockHash(ctx context.Context) (felt.Felt, error)
	BlockHashAtNumber(ctx context.Context, num uint64) (felt.Felt, bool, error)

	HeaderByID(ctx context.Context, id types.BlockHashOrNumber) (types.Header, error)
	BlockByID(ctx context.Context, id types.BlockHashOrNumber) (types.SealedBlockWithStatus, error)
	BlockBodyIndicesByNumber(ctx context.Context, num uint64) (types.StoredBlockBodyIndices, error)

	TransactionByHash(ctx context.Context, hash felt.Felt) (types.TxWithHash, error)
	ReceiptByHash(ctx context.Context, hash felt.Felt) (types.ReceiptWithTxHash, error)
	TraceByHash(ctx context.Context, hash felt.Felt) (types.TransactionTrace, error)

	ClassByHash(ctx context.Context, classHash felt.Felt) (types.ContractClass, error)
	CompiledClassHashByClassHash(ctx context.Context, classHash felt.Felt) (felt.Felt, error)

	NonceAt(ctx context.Context, addr felt.Felt) (felt.Felt, error)
	StorageAt(ctx context.Context, addr, key felt.Felt) (felt.Felt, error)
	ClassHashAt(ctx context.Context, addr felt.Felt) (felt.Felt, error)

	NonceAtBlock(ctx context.Context, addr felt.Felt, block uint64) (felt.Felt, bool, error)
	ClassHashAtBlock(ctx context.Context, addr felt.Felt, block uint64) (felt.Felt, bool, error)
	StorageAtBlock(ctx context.Context, addr, key felt.Felt, block uint64) (felt.Felt, bool, error)

	// PreviewStateRoot computes the state_root that applying s would
	// produce against the currently persisted tries, without writing
	// anything — the commitment pipeline (C7) needs this to assemble a
	// header before the block it describes has been inserted.
	PreviewStateRoot(ctx context.Context, s *types.StateUpdates) (felt.Felt, error)

	InsertBlockWithStatesAndReceipts(
		ctx context.Context,
		block types.SealedBlockWithStatus,
		stateWithClasses types.StateUpdatesWithClasses,
		receipts []types.ReceiptWithTxHash,
		traces []types.TransactionTrace,
	) error
}

// DbProvider is the concrete Provider over a kv.RwDB and a trie.Manager.
type DbProvider struct {
	db   kv.RwDB
	trie *trie.Manager
}

// NewDbProvider wires a fresh provider over db, with its own trie.Manager.
func NewDbProvider(db kv.RwDB) *DbProvider {
	return &DbProvider{db: db, trie: trie.NewManager(db)}
}

// systemAddress reports whether addr is one of the two special addresses
// (§4.5 "Special system addresses") that never error "not found".
func systemAddress(addr felt.Felt) bool {
	return addr.Equal(felt.FromUint64(1)) || addr.Equal(felt.FromUint64(2))
}

func (p *DbProvider) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var num uint64
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		n, err := tx.Entries(kv.Headers)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrMissingLatestBlockNumber
		}
		num = n - 1
		return nil
	})
	return num, err
}

func (p *DbProvider) LatestBlockHash(ctx context.Context) (felt.Felt, error) {
	num, err := p.LatestBlockNumber(ctx)
	if err != nil {
		return felt.Zero, err
	}
	return p.blockHashAt(ctx, num)
}

func (p *DbProvider) blockHashAt(ctx context.Context, num uint64) (felt.Felt, error) {
	var hash felt.Felt
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		v, err := tx.Get(kv.BlockHashes, encodeU64(num))
		if err != nil {
			return err
		}
		if v == nil {
			return &MissingBlockHashError{Number: num}
		}
		hash = decodeFelt(v)
		return nil
	})
	return hash, err
}

// BlockHashAtNumber returns the hash of block num, or ok=false if no such
// block is known locally — the commitment pipeline's block-hash-registry
// preprocessing (§4.7 "Preprocessing") substitutes Felt::ZERO in that case
// rather than treating it as an error, since a forked node may not have
// pre-fork-range blocks on disk.
func (p *DbProvider) BlockHashAtNumber(ctx context.Context, num uint64) (felt.Felt, bool, error) {
	hash, err := p.blockHashAt(ctx, num)
	if err != nil {
		if _, ok := err.(*MissingBlockHashError); ok {
			return felt.Zero, false, nil
		}
		return felt.Zero, false, err
	}
	return hash, true, nil
}

// resolveNumber resolves a BlockHashOrNumber to a concrete number,
// transparently going through BlockNumbers on a hash lookup (§4.3 "Read
// contract").
func (p *DbProvider) resolveNumber(tx kv.Tx, id types.BlockHashOrNumber) (uint64, error) {
	if id.Number != nil {
		return *id.Number, nil
	}
	h := id.Hash.Bytes()
	v, err := tx.Get(kv.BlockNumbers, h[:])
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, ErrBlockNotFound
	}
	return decodeU64(v), nil
}

func (p *DbProvider) HeaderByID(ctx context.Context, id types.BlockHashOrNumber) (types.Header, error) {
	var h types.Header
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		num, err := p.resolveNumber(tx, id)
		if err != nil {
			return err
		}
		v, err := tx.Get(kv.Headers, encodeU64(num))
		if err != nil {
			return err
		}
		if v == nil {
			return &MissingBlockHeaderError{Number: num}
		}
		h, err = decodeHeader(v)
		return err
	})
	return h, err
}

func (p *DbProvider) BlockByID(ctx context.Context, id types.BlockHashOrNumber) (types.SealedBlockWithStatus, error) {
	var out types.SealedBlockWithStatus
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		num, err := p.resolveNumber(tx, id)
		if err != nil {
			return err
		}
		hv, err := tx.Get(kv.BlockHashes, encodeU64(num))
		if err != nil {
			return err
		}
		if hv == nil {
			return &MissingBlockHashError{Number: num}
		}
		hv2, err := tx.Get(kv.Headers, encodeU64(num))
		if err != nil {
			return err
		}
		if hv2 == nil {
			return &MissingBlockHeaderError{Number: num}
		}
		header, err := decodeHeader(hv2)
		if err != nil {
			return err
		}
		idxBytes, err := tx.Get(kv.BlockBodyIndices, encodeU64(num))
		if err != nil {
			return err
		}
		if idxBytes == nil {
			return &MissingBlockHeaderError{Number: num}
		}
		idx, err := decodeBodyIndices(idxBytes)
		if err != nil {
			return err
		}
		body := make([]types.Transaction, idx.TxCount)
		for i := uint64(0); i < idx.TxCount; i++ {
			txNum := idx.TxOffset + i
			tv, err := tx.Get(kv.Transactions, encodeU64(txNum))
			if err != nil {
				return err
			}
			if tv == nil {
				return &MissingTxError{TxNumber: txNum}
			}
			body[i], err = decodeTx(tv)
			if err != nil {
				return err
			}
		}
		statusBytes, err := tx.Get(kv.BlockStatusses, encodeU64(num))
		if err != nil {
			return err
		}
		status := types.AcceptedOnL2
		if statusBytes != nil {
			status = types.FinalityStatus(statusBytes[0])
		}
		out = types.SealedBlockWithStatus{
			Block: types.SealedBlock{
				Block: types.Block{Header: header, Body: body},
				Hash:  decodeFelt(hv),
			},
			Status: status,
		}
		return nil
	})
	return out, err
}

func (p *DbProvider) BlockBodyIndicesByNumber(ctx context.Context, num uint64) (types.StoredBlockBodyIndices, error) {
	var idx types.StoredBlockBodyIndices
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		v, err := tx.Get(kv.BlockBodyIndices, encodeU64(num))
		if err != nil {
			return err
		}
		if v == nil {
			return &MissingBlockHeaderError{Number: num}
		}
		idx, err = decodeBodyIndices(v)
		return err
	})
	return idx, err
}

func (p *DbProvider) txNumberByHash(tx kv.Tx, hash felt.Felt) (uint64, error) {
	h := hash.Bytes()
	v, err := tx.Get(kv.TxNumbers, h[:])
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, ErrTxnHashNotFound
	}
	return decodeU64(v), nil
}

func (p *DbProvider) TransactionByHash(ctx context.Context, hash felt.Felt) (types.TxWithHash, error) {
	var out types.TxWithHash
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		txNum, err := p.txNumberByHash(tx, hash)
		if err != nil {
			return err
		}
		v, err := tx.Get(kv.Transactions, encodeU64(txNum))
		if err != nil {
			return err
		}
		if v == nil {
			return &MissingTxError{TxNumber: txNum}
		}
		decoded, err := decodeTx(v)
		if err != nil {
			return err
		}
		out = types.TxWithHash{Hash: hash, Tx: decoded}
		return nil
	})
	return out, err
}

func (p *DbProvider) ReceiptByHash(ctx context.Context, hash felt.Felt) (types.ReceiptWithTxHash, error) {
	var out types.ReceiptWithTxHash
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		txNum, err := p.txNumberByHash(tx, hash)
		if err != nil {
			return err
		}
		v, err := tx.Get(kv.Receipts, encodeU64(txNum))
		if err != nil {
			return err
		}
		if v == nil {
			return ErrMissingTxReceipt
		}
		rc, err := decodeReceipt(v)
		if err != nil {
			return err
		}
		out = types.ReceiptWithTxHash{TxHash: hash, Receipt: rc}
		return nil
	})
	return out, err
}

func (p *DbProvider) TraceByHash(ctx context.Context, hash felt.Felt) (types.TransactionTrace, error) {
	var out types.TransactionTrace
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		txNum, err := p.txNumberByHash(tx, hash)
		if err != nil {
			return err
		}
		v, err := tx.Get(kv.TxTraces, encodeU64(txNum))
		if err != nil {
			return err
		}
		if v == nil {
			return ErrMissingTxExecution
		}
		out, err = decodeTrace(v)
		return err
	})
	return out, err
}

func (p *DbProvider) ClassByHash(ctx context.Context, classHash felt.Felt) (types.ContractClass, error) {
	var out types.ContractClass
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		h := classHash.Bytes()
		v, err := tx.Get(kv.Classes, h[:])
		if err != nil {
			return err
		}
		if v == nil {
			return ErrClassHashNotFound
		}
		out, err = decodeClass(v)
		return err
	})
	return out, err
}

func (p *DbProvider) CompiledClassHashByClassHash(ctx context.Context, classHash felt.Felt) (felt.Felt, error) {
	var out felt.Felt
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		h := classHash.Bytes()
		v, err := tx.Get(kv.CompiledClassHashes, h[:])
		if err != nil {
			return err
		}
		if v == nil {
			return ErrClassHashNotFound
		}
		out = decodeFelt(v)
		return nil
	})
	return out, err
}

func (p *DbProvider) NonceAt(ctx context.Context, addr felt.Felt) (felt.Felt, error) {
	if systemAddress(addr) {
		return felt.Zero, nil
	}
	var out felt.Felt
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		a := addr.Bytes()
		v, err := tx.Get(kv.ContractInfo, a[:])
		if err != nil {
			return err
		}
		if v == nil {
			return ErrContractNotFound
		}
		ci, err := decodeContractInfo(v)
		if err != nil {
			return err
		}
		out = ci.Nonce
		return nil
	})
	return out, err
}

func (p *DbProvider) ClassHashAt(ctx context.Context, addr felt.Felt) (felt.Felt, error) {
	if systemAddress(addr) {
		return felt.Zero, nil
	}
	var out felt.Felt
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		a := addr.Bytes()
		v, err := tx.Get(kv.ContractInfo, a[:])
		if err != nil {
			return err
		}
		if v == nil {
			return ErrContractNotFound
		}
		ci, err := decodeContractInfo(v)
		if err != nil {
			return err
		}
		out = ci.ClassHash
		return nil
	})
	return out, err
}

func (p *DbProvider) StorageAt(ctx context.Context, addr, key felt.Felt) (felt.Felt, error) {
	var out felt.Felt
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		dup, err := tx.CursorDupSort(kv.ContractStorage)
		if err != nil {
			return err
		}
		defer dup.Close()
		a := addr.Bytes()
		kb := key.Bytes()
		v, err := dup.SeekBothRange(a[:], kb[:])
		if err != nil {
			return err
		}
		if v == nil || len(v) < 32 || !equalPrefix(v, kb[:]) {
			out = felt.Zero
			return nil
		}
		out = decodeFelt(v[32:])
		return nil
	})
	return out, err
}

func equalPrefix(v, prefix []byte) bool {
	if len(v) < len(prefix) {
		return false
	}
	for i := range prefix {
		if v[i] != prefix[i] {
			return false
		}
	}
	return true
}

// PreviewStateRoot builds the same per-address touched set
// writeStateUpdates would, but folds it through trie.Manager.PreviewRoots
// over a read-only transaction so nothing is persisted (§4.7
// "Preprocessing").
func (p *DbProvider) PreviewStateRoot(ctx context.Context, s *types.StateUpdates) (felt.Felt, error) {
	var out felt.Felt
	err := p.db.ViewRo(ctx, func(tx kv.Tx) error {
		touched := make(map[felt.Felt]*trie.ContractUpdate)
		get := func(addr felt.Felt) *trie.ContractUpdate {
			u, ok := touched[addr]
			if !ok {
				info, _ := p.readContractInfo(tx, addr)
				u = &trie.ContractUpdate{Address: addr, ClassHash: info.ClassHash, Nonce: info.Nonce, StorageDiff: map[felt.Felt]felt.Felt{}}
				touched[addr] = u
			}
			return u
		}

		for addr, classHash := range s.DeployedContracts {
			get(addr).ClassHash = classHash
		}
		for addr, classHash := range s.ReplacedClasses {
			get(addr).ClassHash = classHash
		}
		for addr, nonce := range s.NonceUpdates {
			get(addr).Nonce = nonce
		}
		for addr, diff := range s.StorageUpdates {
			u := get(addr)
			for key, value := range diff {
				u.StorageDiff[key] = value
			}
		}

		decls := make([]trie.ClassDeclaration, 0, len(s.DeclaredClasses))
		for ch, cch := range s.DeclaredClasses {
			decls = append(decls, trie.ClassDeclaration{ClassHash: ch, CompiledClassHash: cch})
		}
		updates := make([]trie.ContractUpdate, 0, len(touched))
		for _, u := range touched {
			updates = append(updates, *u)
		}

		classesRoot, contractsRoot := p.trie.PreviewRoots(tx, decls, updates)
		out = trie.StateRoot(contractsRoot, classesRoot)
		return nil
	})
	return out, err
}

// InsertBlockWithStatesAndReceipts is the atomic write contract (§4.3):
// everything about one block is written inside a single RW transaction, or
// nothing is.
func (p *DbProvider) InsertBlockWithStatesAndReceipts(
	ctx context.Context,
	block types.SealedBlockWithStatus,
	stateWithClasses types.StateUpdatesWithClasses,
	receipts []types.ReceiptWithTxHash,
	traces []types.TransactionTrace,
) error {
	return p.db.Update(ctx, func(tx kv.RwTx) error {
		num := block.Block.Block.Header.Number

		txOffset, err := tx.Entries(kv.Transactions)
		if err != nil {
			return err
		}
		txCount := uint64(len(block.Block.Block.Body))
		if txCount != uint64(len(receipts)) || txCount != uint64(len(traces)) {
			return fmt.Errorf("provider: body/receipts/traces length mismatch for block %d", num)
		}

		hashBytes := encodeFelt(block.Block.Hash)
		if err := tx.Put(kv.BlockHashes, encodeU64(num), hashBytes); err != nil {
			return err
		}
		h := block.Block.Hash.Bytes()
		if err := tx.Put(kv.BlockNumbers, h[:], encodeU64(num)); err != nil {
			return err
		}
		if err := tx.Put(kv.Headers, encodeU64(num), encodeHeader(block.Block.Block.Header)); err != nil {
			return err
		}
		if err := tx.Put(kv.BlockStatusses, encodeU64(num), []byte{byte(block.Status)}); err != nil {
			return err
		}
		if err := tx.Put(kv.BlockBodyIndices, encodeU64(num), encodeBodyIndices(types.StoredBlockBodyIndices{
			TxOffset: txOffset, TxCount: txCount,
		})); err != nil {
			return err
		}

		for i, txn := range block.Block.Block.Body {
			txNum := txOffset + uint64(i)
			txHash := receipts[i].TxHash
			if err := tx.Put(kv.Transactions, encodeU64(txNum), encodeTx(txn)); err != nil {
				return err
			}
			thb := txHash.Bytes()
			if err := tx.Put(kv.TxHashes, encodeU64(txNum), thb[:]); err != nil {
				return err
			}
			if err := tx.Put(kv.TxNumbers, thb[:], encodeU64(txNum)); err != nil {
				return err
			}
			if err := tx.Put(kv.TxBlocks, encodeU64(txNum), encodeU64(num)); err != nil {
				return err
			}
			if err := tx.Put(kv.Receipts, encodeU64(txNum), encodeReceipt(receipts[i].Receipt)); err != nil {
				return err
			}
			if err := tx.Put(kv.TxTraces, encodeU64(txNum), encodeTrace(traces[i])); err != nil {
				return err
			}
		}

		if err := p.writeClasses(tx, num, stateWithClasses); err != nil {
			return err
		}
		if err := p.writeStateUpdates(tx, num, stateWithClasses.StateUpdates); err != nil {
			return err
		}

		return nil
	})
}

// writeClasses persists class artifacts, compiled-hash records, and
// declaration/migration dup-sort index rows (§4.3 steps 4-5).
func (p *DbProvider) writeClasses(tx kv.RwTx, num uint64, s types.StateUpdatesWithClasses) error {
	for classHash, compiledHash := range s.StateUpdates.DeclaredClasses {
		h := classHash.Bytes()
		if cls, ok := s.Classes[classHash]; ok {
			if err := tx.Put(kv.Classes, h[:], encodeClass(*cls)); err != nil {
				return err
			}
		}
		ch := compiledHash.Bytes()
		if err := tx.Put(kv.CompiledClassHashes, h[:], ch[:]); err != nil {
			return err
		}
		dup, err := tx.RwCursorDupSort(kv.ClassDeclarations)
		if err != nil {
			return err
		}
		if err := dup.Put(encodeU64(num), h[:]); err != nil {
			dup.Close()
			return err
		}
		dup.Close()
		if err := tx.Put(kv.ClassDeclarationBlock, h[:], encodeU64(num)); err != nil {
			return err
		}
	}

	s.StateUpdates.DeprecatedDeclaredClasses.Each(func(classHash felt.Felt) bool {
		h := classHash.Bytes()
		if cls, ok := s.Classes[classHash]; ok {
			_ = tx.Put(kv.Classes, h[:], encodeClass(*cls))
		}
		dup, derr := tx.RwCursorDupSort(kv.ClassDeclarations)
		if derr == nil {
			_ = dup.Put(encodeU64(num), h[:])
			dup.Close()
		}
		_ = tx.Put(kv.ClassDeclarationBlock, h[:], encodeU64(num))
		return false
	})

	for classHash, compiledHash := range s.StateUpdates.MigratedCompiledClasses {
		h := classHash.Bytes()
		ch := compiledHash.Bytes()
		dup, err := tx.RwCursorDupSort(kv.MigratedCompiledClassHashes)
		if err != nil {
			return err
		}
		entry := append(append([]byte(nil), h[:]...), ch[:]...)
		if err := dup.Put(encodeU64(num), entry); err != nil {
			dup.Close()
			return err
		}
		dup.Close()
	}
	return nil
}

// writeStateUpdates updates the mutable snapshot (ContractInfo,
// ContractStorage) and every historical-reconstruction table (§4.3 steps
// 6-8), then folds the same updates into C2's tries.
func (p *DbProvider) writeStateUpdates(tx kv.RwTx, num uint64, s *types.StateUpdates) error {
	touched := make(map[felt.Felt]*trie.ContractUpdate)
	get := func(addr felt.Felt) *trie.ContractUpdate {
		u, ok := touched[addr]
		if !ok {
			info, _ := p.readContractInfo(tx, addr)
			u = &trie.ContractUpdate{Address: addr, ClassHash: info.ClassHash, Nonce: info.Nonce, StorageDiff: map[felt.Felt]felt.Felt{}}
			touched[addr] = u
		}
		return u
	}

	for addr, classHash := range s.DeployedContracts {
		u := get(addr)
		u.ClassHash = classHash
		if err := recordClassChange(tx, addr, num); err != nil {
			return err
		}
		dup, err := tx.RwCursorDupSort(kv.ClassChangeHistory)
		if err != nil {
			return err
		}
		entry := classChangeEntry(classChangeDeployed, addr, classHash)
		if err := dup.Put(encodeU64(num), entry); err != nil {
			dup.Close()
			return err
		}
		dup.Close()
	}
	for addr, classHash := range s.ReplacedClasses {
		u := get(addr)
		u.ClassHash = classHash
		if err := recordClassChange(tx, addr, num); err != nil {
			return err
		}
		dup, err := tx.RwCursorDupSort(kv.ClassChangeHistory)
		if err != nil {
			return err
		}
		entry := classChangeEntry(classChangeReplaced, addr, classHash)
		if err := dup.Put(encodeU64(num), entry); err != nil {
			dup.Close()
			return err
		}
		dup.Close()
	}
	for addr, nonce := range s.NonceUpdates {
		u := get(addr)
		u.Nonce = nonce
		if err := recordNonceChange(tx, addr, num); err != nil {
			return err
		}
		dup, err := tx.RwCursorDupSort(kv.NonceChangeHistory)
		if err != nil {
			return err
		}
		a := addr.Bytes()
		nb := nonce.Bytes()
		entry := append(append([]byte(nil), a[:]...), nb[:]...)
		if err := dup.Put(encodeU64(num), entry); err != nil {
			dup.Close()
			return err
		}
		dup.Close()
	}
	for addr, diff := range s.StorageUpdates {
		u := get(addr)
		for key, value := range diff {
			u.StorageDiff[key] = value
			if err := recordStorageChange(tx, addr, key, num); err != nil {
				return err
			}
			if err := p.writeStorageHistoryRow(tx, num, addr, key, value); err != nil {
				return err
			}
			if err := p.writeContractStorage(tx, addr, key, value); err != nil {
				return err
			}
		}
	}

	for addr, u := range touched {
		if err := p.writeContractInfo(tx, addr, types.GenericContractInfo{ClassHash: u.ClassHash, Nonce: u.Nonce}); err != nil {
			return err
		}
	}

	classesRoot := felt.Zero
	if len(s.DeclaredClasses) > 0 {
		decls := make([]trie.ClassDeclaration, 0, len(s.DeclaredClasses))
		for ch, cch := range s.DeclaredClasses {
			decls = append(decls, trie.ClassDeclaration{ClassHash: ch, CompiledClassHash: cch})
		}
		classesRoot = p.trie.InsertDeclaredClasses(tx, decls)
	} else {
		if existing, ok, err := p.trie.ClassesRootAt(tx, num); err == nil && ok {
			classesRoot = existing
		}
	}

	updates := make([]trie.ContractUpdate, 0, len(touched))
	for _, u := range touched {
		updates = append(updates, *u)
	}
	contractsRoot := p.trie.InsertContractUpdates(tx, updates)

	for addr := range touched {
		st := trie.NewStorageTrie(trie.NewPersistent(tx, trie.StorageTrieID(addr)))
		if err := p.trie.CommitStorageRoot(tx, addr, num, st.Root()); err != nil {
			return err
		}
	}

	return p.trie.Commit(tx, num, classesRoot, contractsRoot)
}

const (
	classChangeDeployed uint8 = 0
	classChangeReplaced uint8 = 1
)

func classChangeEntry(kind uint8, addr, classHash felt.Felt) []byte {
	a, ch := addr.Bytes(), classHash.Bytes()
	out := make([]byte, 0, 1+64)
	out = append(out, kind)
	out = append(out, a[:]...)
	out = append(out, ch[:]...)
	return out
}

func (p *DbProvider) readContractInfo(tx kv.Tx, addr felt.Felt) (types.GenericContractInfo, error) {
	a := addr.Bytes()
	v, err := tx.Get(kv.ContractInfo, a[:])
	if err != nil {
		return types.GenericContractInfo{}, err
	}
	if v == nil {
		return types.GenericContractInfo{}, nil
	}
	return decodeContractInfo(v)
}

func (p *DbProvider) writeContractInfo(tx kv.RwTx, addr felt.Felt, info types.GenericContractInfo) error {
	a := addr.Bytes()
	return tx.Put(kv.ContractInfo, a[:], encodeContractInfo(info))
}

// writeContractStorage replaces the ContractStorage dup for (addr, key).
// The dup-sort value is storageKey(32)||storageValue(32), and both kv
// backends sort/replace dups by the whole value, not by the 32-byte
// storageKey alone — so a plain Upsert of a changed value would insert a
// second dup instead of replacing the first. Seek the existing dup with a
// matching storageKey prefix and delete it before putting the new one,
// the way Erigon's own PutStorage does it.
func (p *DbProvider) writeContractStorage(tx kv.RwTx, addr, key, value felt.Felt) error {
	dup, err := tx.RwCursorDupSort(kv.ContractStorage)
	if err != nil {
		return err
	}
	defer dup.Close()
	a := addr.Bytes()
	kb, vb := key.Bytes(), value.Bytes()
	entry := append(append([]byte(nil), kb[:]...), vb[:]...)

	existing, err := dup.SeekBothRange(a[:], kb[:])
	if err != nil {
		return err
	}
	if existing != nil && equalPrefix(existing, kb[:]) {
		if err := dup.DeleteCurrentDup(); err != nil {
			return err
		}
	}
	return dup.Put(a[:], entry)
}

func (p *DbProvider) writeStorageHistoryRow(tx kv.RwTx, num uint64, addr, key, value felt.Felt) error {
	dup, err := tx.RwCursorDupSort(kv.StorageChangeHistory)
	if err != nil {
		return err
	}
	defer dup.Close()
	a, kb, vb := addr.Bytes(), key.Bytes(), value.Bytes()
	entry := make([]byte, 0, 96)
	entry = append(entry, a[:]...)
	entry = append(entry, kb[:]...)
	entry = append(entry, vb[:]...)
	return dup.Put(encodeU64(num), entry)
}
