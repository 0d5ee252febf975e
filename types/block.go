// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package types

import "github.com/starkdev/node/felt"

// Block is a sealed or unsealed header plus its ordered transaction body.
type Block struct {
	Header Header
	Body   []Transaction
}

// SealedBlock additionally carries the block hash bound by the commitment
// pipeline (§4.7): once a block is sealed its hash never changes.
type SealedBlock struct {
	Block
	Hash felt.Felt
}

// SealedBlockWithStatus pairs a sealed block with its finality status, the
// unit the provider actually persists (§4.3 write contract).
type SealedBlockWithStatus struct {
	Block  SealedBlock
	Status FinalityStatus
}

// BlockHashOrNumber lets callers address a block either way; the provider
// resolves hash->number transparently through BlockNumbers (§4.3 read
// contract).
type BlockHashOrNumber struct {
	Hash   *felt.Felt
	Number *BlockNumber
}

// ByHash constructs a BlockHashOrNumber addressed by hash.
func ByHash(h felt.Felt) BlockHashOrNumber { return BlockHashOrNumber{Hash: &h} }

// ByNumber constructs a BlockHashOrNumber addressed by number.
func ByNumber(n BlockNumber) BlockHashOrNumber { return BlockHashOrNumber{Number: &n} }

// BlockTag selects a named, non-numeric block reference for RPC callers.
type BlockTag uint8

const (
	TagLatest BlockTag = iota
	TagPending
)

// BlockIdOrTag is the full RPC-facing block selector: a concrete id or a tag.
type BlockIdOrTag struct {
	Id  *BlockHashOrNumber
	Tag *BlockTag
}
