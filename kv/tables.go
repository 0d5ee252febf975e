// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Adapted from erigon-lib/kv's ChaindataTables catalog: this file is the
// full table list the provider (C3) is built against, including the
// historical-reconstruction tables (§4.3) that mirror Erigon's
// AccountChangeSet/AccountHistory design one-for-one, generalized from
// Ethereum accounts/storage to Starknet contracts/classes.
package kv

// DBSchemaVersion is embedded in every database directory; incompatible
// versions refuse to open (§6 "Persisted state").
const DBSchemaVersion = "1.0.0"

// Block index tables.
const (
	BlockHashes      Table = "BlockHashes"      // num -> hash
	BlockNumbers     Table = "BlockNumbers"     // hash -> num
	Headers          Table = "Headers"          // num -> header
	BlockStatusses   Table = "BlockStatusses"   // num -> finality status
	BlockBodyIndices Table = "BlockBodyIndices" // num -> {tx_offset, tx_count}
)

// Transaction tables.
const (
	Transactions Table = "Transactions" // tx_num -> tx
	TxHashes     Table = "TxHashes"     // tx_num -> hash
	TxNumbers    Table = "TxNumbers"    // hash -> tx_num
	TxBlocks     Table = "TxBlocks"     // tx_num -> block_num
	Receipts     Table = "Receipts"     // tx_num -> receipt
	TxTraces     Table = "TxTraces"     // tx_num -> trace
)

// Class tables.
const (
	Classes                    Table = "Classes"                    // class_hash -> class
	CompiledClassHashes        Table = "CompiledClassHashes"        // class_hash -> compiled_class_hash
	ClassDeclarations          Table = "ClassDeclarations"          // block_num -> class_hash (dup-sort)
	ClassDeclarationBlock      Table = "ClassDeclarationBlock"      // class_hash -> block_num
	MigratedCompiledClassHashes Table = "MigratedCompiledClassHashes" // block_num -> (class_hash, compiled_class_hash) (dup-sort)
)

// Mutable state snapshot.
const (
	ContractInfo    Table = "ContractInfo"    // addr -> {class_hash, nonce}
	ContractStorage Table = "ContractStorage" // addr -> (key, value) (dup-sort)
)

// Historical reconstruction (§4.3, mirrors Erigon AccountChangeSet/History).
const (
	NonceChangeHistory   Table = "NonceChangeHistory"   // block_num -> (addr, nonce) (dup-sort)
	ClassChangeHistory   Table = "ClassChangeHistory"   // block_num -> (kind, addr, class_hash) (dup-sort)
	StorageChangeHistory Table = "StorageChangeHistory" // block_num -> ((addr,key), value) (dup-sort)

	ContractInfoChangeSet Table = "ContractInfoChangeSet" // addr -> {nonce_blocks, class_blocks} (roaring bitmaps)
	StorageChangeSet      Table = "StorageChangeSet"      // (addr,key) -> set<block> (roaring bitmap)
)

// Trie layer (C2): persistent leaf storage and per-block root history. One
// physical table serves every trie instance (classes, contracts, and each
// contract's storage trie); callers scope by prefixing keys with a trie id
// (e.g. the owning contract address for a storage trie).
const (
	TrieLeaves Table = "TrieLeaves" // trie_id+key -> value
	TrieRoots  Table = "TrieRoots"  // trie_id+block_num -> root
)

// Pipeline / admin state.
const (
	StageExecutionCheckpoints Table = "StageExecutionCheckpoints" // stage id -> block
	StagePruningCheckpoints   Table = "StagePruningCheckpoints"   // stage id -> block

	DatabaseInfo Table = "DatabaseInfo" // schema version, genesis hash
)

// TableCfgItem mirrors erigon-lib's TableCfgItem: flags that shape physical
// layout. DupSort tables use MDBX's native dup-sort support in production
// and an emulated ordered-multimap in the in-memory backend.
type TableCfgItem struct {
	DupSort bool
}

// TablesCfg is the full table configuration, consulted by both KV backends
// to decide how to lay out a table.
var TablesCfg = map[Table]TableCfgItem{
	ClassDeclarations:           {DupSort: true},
	MigratedCompiledClassHashes: {DupSort: true},
	ContractStorage:             {DupSort: true},
	NonceChangeHistory:          {DupSort: true},
	ClassChangeHistory:          {DupSort: true},
	StorageChangeHistory:        {DupSort: true},
}

// AllTables lists every table in the catalog, the set a fresh database
// opens with (mirrors erigon-lib's ChaindataTables list + "App will panic
// if some bucket is not in this list").
var AllTables = []Table{
	BlockHashes, BlockNumbers, Headers, BlockStatusses, BlockBodyIndices,
	Transactions, TxHashes, TxNumbers, TxBlocks, Receipts, TxTraces,
	Classes, CompiledClassHashes, ClassDeclarations, ClassDeclarationBlock, MigratedCompiledClassHashes,
	ContractInfo, ContractStorage,
	NonceChangeHistory, ClassChangeHistory, StorageChangeHistory,
	ContractInfoChangeSet, StorageChangeSet,
	TrieLeaves, TrieRoots,
	StageExecutionCheckpoints, StagePruningCheckpoints,
	DatabaseInfo,
}
