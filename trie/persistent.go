// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package trie

import (
	"bytes"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/kv"
)

// persistentBackend stores leaves in kv.TrieLeaves, scoped by a trie id
// prefix so one physical table serves every trie instance. tx only needs
// to support reads (kv.Tx); Put type-asserts to kv.RwTx at call time so a
// read-only transaction can still back a pure, preview-only trie (the
// commitment pipeline's layered-overlay use, §4.7).
type persistentBackend struct {
	tx     kv.Tx
	prefix []byte
}

// NewPersistent returns a Backend that reads through tx, scoped to the
// given trie id (e.g. "classes", "contracts", or a contract address for a
// per-contract storage trie). Writes additionally require tx to be a
// kv.RwTx; calling Put against a read-only tx panics, the same contract
// every other read-only misuse in this codebase relies on the caller
// never doing.
func NewPersistent(tx kv.Tx, trieID []byte) Backend {
	return &persistentBackend{tx: tx, prefix: append([]byte(nil), trieID...)}
}

func (b *persistentBackend) encKey(key felt.Felt) []byte {
	kb := key.Bytes()
	return append(append([]byte(nil), b.prefix...), kb[:]...)
}

func (b *persistentBackend) Get(key felt.Felt) (felt.Felt, bool) {
	v, err := b.tx.Get(kv.TrieLeaves, b.encKey(key))
	if err != nil || v == nil {
		return felt.Zero, false
	}
	return felt.FromBytesBE(v), true
}

func (b *persistentBackend) Put(key, value felt.Felt) {
	rw, ok := b.tx.(kv.RwTx)
	if !ok {
		// Writing through a read-only transaction is a caller bug: the
		// only read-only use is the commitment pipeline's preview trie,
		// which layers a volatile overlay in front and never calls Put on
		// the base (§9 "Genesis trie volatility" generalization).
		panic("trie: Put called on a read-only persistent backend")
	}
	vb := value.Bytes()
	_ = rw.Put(kv.TrieLeaves, b.encKey(key), vb[:])
}

func (b *persistentBackend) Ascend(f func(key, value felt.Felt) bool) {
	c, err := b.tx.Cursor(kv.TrieLeaves)
	if err != nil {
		return
	}
	defer c.Close()
	for k, v, err := c.Seek(b.prefix); k != nil && err == nil; k, v, err = c.Next() {
		if !bytes.HasPrefix(k, b.prefix) {
			break
		}
		key := felt.FromBytesBE(k[len(b.prefix):])
		if !f(key, felt.FromBytesBE(v)) {
			return
		}
	}
}

func (b *persistentBackend) Len() int {
	n := 0
	b.Ascend(func(felt.Felt, felt.Felt) bool { n++; return true })
	return n
}

// PutRootAtBlock records the root of the trie identified by trieID at the
// given block, the history the historical-read path (§4.2 "Historical
// read") consults.
func PutRootAtBlock(tx kv.RwTx, trieID []byte, block uint64, root felt.Felt) error {
	rb := root.Bytes()
	return tx.Put(kv.TrieRoots, rootKey(trieID, block), rb[:])
}

// RootAtBlock returns the last root recorded at or before block.
func RootAtBlock(tx kv.Tx, trieID []byte, block uint64) (felt.Felt, bool, error) {
	c, err := tx.Cursor(kv.TrieRoots)
	if err != nil {
		return felt.Zero, false, err
	}
	defer c.Close()

	target := rootKey(trieID, block)
	k, v, err := c.Seek(target)
	if err != nil {
		return felt.Zero, false, err
	}
	if k != nil && bytes.Equal(k, target) {
		return felt.FromBytesBE(v), true, nil
	}
	// Seek lands on the first key >= target; step back one to find the
	// largest recorded block <= target, mirroring the changeset
	// binary-search-for-largest-≤-block pattern used throughout §4.3/§4.5.
	// When no key >= target exists the cursor is unpositioned, so the
	// table's last key is the candidate instead.
	if k == nil {
		k, v, err = c.Last()
	} else {
		k, v, err = c.Prev()
	}
	if err != nil || k == nil || !bytes.HasPrefix(k, trieID) {
		return felt.Zero, false, nil
	}
	return felt.FromBytesBE(v), true, nil
}

func rootKey(trieID []byte, block uint64) []byte {
	key := make([]byte, len(trieID)+8)
	copy(key, trieID)
	putUint64BE(key[len(trieID):], block)
	return key
}

func putUint64BE(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
