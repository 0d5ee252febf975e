// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Pure-Go in-memory KV backend, standing in for MDBX in tests. (The trie
// layer's volatile overlay does not use it: trie.NewVolatile keeps its
// leaves in a google/btree.) Ordered, clonable (copy-on-write) maps are provided by
// github.com/tidwall/btree, the same family of library Erigon reaches for
// when it needs an in-process ordered map alongside its mdbx-go-backed
// production tables.
package kv

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/tidwall/btree"
)

// memTable is a single ordered table: plain tables map key->value directly;
// dup-sort tables are stored under a composite key of
// len(key)-BE-uint32 || key || subkey so that iterating all entries sharing
// a key is a contiguous prefix range.
type memTable struct {
	dupSort bool
	data    *btree.Map[string, []byte]
}

func newMemTable(dupSort bool) *memTable {
	return &memTable{dupSort: dupSort, data: &btree.Map[string, []byte]{}}
}

func (t *memTable) clone() *memTable {
	return &memTable{dupSort: t.dupSort, data: t.data.Copy()}
}

func compositeKey(key, subkey []byte) []byte {
	buf := make([]byte, 4+len(key)+len(subkey))
	binary.BigEndian.PutUint32(buf, uint32(len(key)))
	copy(buf[4:], key)
	copy(buf[4+len(key):], subkey)
	return buf
}

func splitComposite(k []byte) (key, subkey []byte) {
	n := binary.BigEndian.Uint32(k[:4])
	return k[4 : 4+n], k[4+n:]
}

// MemDB is a RwDB implementation over in-process ordered maps. Exactly one
// read-write transaction may be open at a time (guarded by writerMu);
// read-only transactions snapshot the current table set via copy-on-write
// clones and never block on each other or the writer (§5).
type MemDB struct {
	mu       sync.RWMutex // protects tables map swap-in on commit
	writerMu sync.Mutex   // serializes RW transactions (§5 "exactly one RW transaction")
	tables   map[Table]*memTable
}

// NewMemDB returns an empty in-memory database with every table in
// kv.AllTables pre-created (mirrors MDBX's "app will panic if some bucket
// is not in this list").
func NewMemDB() *MemDB {
	db := &MemDB{tables: make(map[Table]*memTable, len(AllTables))}
	for _, tbl := range AllTables {
		db.tables[tbl] = newMemTable(TablesCfg[tbl].DupSort)
	}
	return db
}

func (db *MemDB) snapshot() map[Table]*memTable {
	db.mu.RLock()
	defer db.mu.RUnlock()
	snap := make(map[Table]*memTable, len(db.tables))
	for k, v := range db.tables {
		snap[k] = v
	}
	return snap
}

func (db *MemDB) BeginRo(_ context.Context) (Tx, error) {
	return &memTx{tables: db.snapshot()}, nil
}

func (db *MemDB) ViewRo(ctx context.Context, f func(tx Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (db *MemDB) BeginRw(_ context.Context) (RwTx, error) {
	db.writerMu.Lock()
	base := db.snapshot()
	working := make(map[Table]*memTable, len(base))
	for k, v := range base {
		working[k] = v.clone()
	}
	return &memRwTx{memTx: memTx{tables: working}, db: db}, nil
}

func (db *MemDB) Update(ctx context.Context, f func(tx RwTx) error) error {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (db *MemDB) Close() error { return nil }

type memTx struct {
	tables map[Table]*memTable
	done   bool
}

func (tx *memTx) table(t Table) *memTable {
	tbl, ok := tx.tables[t]
	if !ok {
		tbl = newMemTable(TablesCfg[t].DupSort)
		tx.tables[t] = tbl
	}
	return tbl
}

func (tx *memTx) Get(t Table, key []byte) ([]byte, error) {
	v, _ := tx.table(t).data.Get(string(key))
	return v, nil
}

func (tx *memTx) Has(t Table, key []byte) (bool, error) {
	_, ok := tx.table(t).data.Get(string(key))
	return ok, nil
}

func (tx *memTx) Entries(t Table) (uint64, error) {
	return uint64(tx.table(t).data.Len()), nil
}

func (tx *memTx) Cursor(t Table) (Cursor, error) {
	return &memCursor{tbl: tx.table(t)}, nil
}

func (tx *memTx) CursorDupSort(t Table) (CursorDupSort, error) {
	return &memDupCursor{memCursor: memCursor{tbl: tx.table(t)}}, nil
}

func (tx *memTx) Rollback() { tx.done = true }

type memRwTx struct {
	memTx
	db *MemDB
}

func (tx *memRwTx) Put(t Table, key, value []byte) error {
	tx.table(t).data.Set(string(key), append([]byte(nil), value...))
	return nil
}

func (tx *memRwTx) Delete(t Table, key []byte) error {
	tx.table(t).data.Delete(string(key))
	return nil
}

func (tx *memRwTx) RwCursor(t Table) (RwCursor, error) {
	return &memRwCursor{memCursor: memCursor{tbl: tx.table(t)}}, nil
}

func (tx *memRwTx) RwCursorDupSort(t Table) (RwCursorDupSort, error) {
	return &memRwDupCursor{memDupCursor: memDupCursor{memCursor: memCursor{tbl: tx.table(t)}}}, nil
}

func (tx *memRwTx) Commit() error {
	if tx.done {
		return nil
	}
	tx.db.mu.Lock()
	for k, v := range tx.tables {
		tx.db.tables[k] = v
	}
	tx.db.mu.Unlock()
	tx.done = true
	tx.db.writerMu.Unlock()
	return nil
}

func (tx *memRwTx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	tx.db.writerMu.Unlock()
}

// memCursor is a plain-table ordered cursor.
type memCursor struct {
	tbl *memTable
	cur string
	has bool
}

func (c *memCursor) Seek(key []byte) (k, v []byte, err error) {
	found := false
	c.tbl.data.Ascend(string(key), func(kk string, vv []byte) bool {
		c.cur, c.has, found = kk, true, true
		k, v = []byte(kk), vv
		return false
	})
	if !found {
		c.has = false
	}
	return k, v, nil
}

func (c *memCursor) First() (k, v []byte, err error) {
	found := false
	c.tbl.data.Scan(func(kk string, vv []byte) bool {
		c.cur, c.has, found = kk, true, true
		k, v = []byte(kk), vv
		return false
	})
	if !found {
		c.has = false
	}
	return k, v, nil
}

func (c *memCursor) Next() (k, v []byte, err error) {
	if !c.has {
		return nil, nil, nil
	}
	found := false
	first := true
	c.tbl.data.Ascend(c.cur, func(kk string, vv []byte) bool {
		if first {
			first = false
			return true // skip current key itself
		}
		c.cur, found = kk, true
		k, v = []byte(kk), vv
		return false
	})
	c.has = found
	return k, v, nil
}

func (c *memCursor) Prev() (k, v []byte, err error) {
	if !c.has {
		return nil, nil, nil
	}
	found := false
	c.tbl.data.Descend(c.cur, func(kk string, vv []byte) bool {
		if kk == c.cur {
			return true
		}
		c.cur, found = kk, true
		k, v = []byte(kk), vv
		return false
	})
	c.has = found
	return k, v, nil
}

func (c *memCursor) Last() (k, v []byte, err error) {
	found := false
	c.tbl.data.Reverse(func(kk string, vv []byte) bool {
		c.cur, c.has, found = kk, true, true
		k, v = []byte(kk), vv
		return false
	})
	if !found {
		c.has = false
	}
	return k, v, nil
}

func (c *memCursor) Close() {}

type memRwCursor struct{ memCursor }

func (c *memRwCursor) Put(key, value []byte) error {
	c.tbl.data.Set(string(key), append([]byte(nil), value...))
	c.cur, c.has = string(key), true
	return nil
}

func (c *memRwCursor) Delete() error {
	if !c.has {
		return nil
	}
	c.tbl.data.Delete(c.cur)
	c.has = false
	return nil
}

// memDupCursor walks a dup-sort table's composite-key encoding.
type memDupCursor struct {
	memCursor
	curKey []byte
}

// Seek positions the cursor on the first duplicate of the first key >= key
// and returns that key (decoded from its composite form) with its value.
func (c *memDupCursor) Seek(key []byte) (k, v []byte, err error) {
	ck, v, err := c.memCursor.Seek(compositeKey(key, nil))
	if ck == nil {
		return nil, nil, err
	}
	k, _ = splitComposite(ck)
	c.curKey = append([]byte(nil), k...)
	return k, v, nil
}

func (c *memDupCursor) SeekBothExact(key, subkey []byte) (k, v []byte, err error) {
	ck := compositeKey(key, subkey)
	val, ok := c.tbl.data.Get(string(ck))
	if !ok {
		return nil, nil, nil
	}
	c.cur, c.has, c.curKey = string(ck), true, key
	return key, val, nil
}

func (c *memDupCursor) SeekBothRange(key, subkey []byte) (v []byte, err error) {
	prefix := compositeKey(key, nil)
	start := compositeKey(key, subkey)
	found := false
	c.tbl.data.Ascend(string(start), func(kk string, vv []byte) bool {
		if len(kk) < len(prefix) || kk[:len(prefix)] != string(prefix) {
			return false
		}
		c.cur, c.has, c.curKey, found = kk, true, key, true
		v = vv
		return false
	})
	if !found {
		return nil, nil
	}
	return v, nil
}

func (c *memDupCursor) FirstDup() (v []byte, err error) {
	if !c.has {
		return nil, nil
	}
	prefix := compositeKey(c.curKey, nil)
	found := false
	c.tbl.data.Ascend(string(prefix), func(kk string, vv []byte) bool {
		if len(kk) < len(prefix) || kk[:len(prefix)] != string(prefix) {
			return false
		}
		c.cur, found = kk, true
		v = vv
		return false
	})
	if !found {
		return nil, nil
	}
	return v, nil
}

func (c *memDupCursor) NextDup() (k, v []byte, err error) {
	if !c.has {
		return nil, nil, nil
	}
	prefix := compositeKey(c.curKey, nil)
	first := true
	found := false
	c.tbl.data.Ascend(c.cur, func(kk string, vv []byte) bool {
		if first {
			first = false
			return true
		}
		if len(kk) < len(prefix) || kk[:len(prefix)] != string(prefix) {
			return false
		}
		c.cur, found = kk, true
		k, v = c.curKey, vv
		return false
	})
	c.has = found
	if !found {
		return nil, nil, nil
	}
	return k, v, nil
}

func (c *memDupCursor) LastDup() (v []byte, err error) {
	if !c.has {
		return nil, nil
	}
	prefix := compositeKey(c.curKey, nil)
	upperBound := string(compositeKey(c.curKey, []byte{0xff, 0xff, 0xff, 0xff}))
	found := false
	c.tbl.data.Descend(upperBound, func(kk string, vv []byte) bool {
		if len(kk) < len(prefix) || kk[:len(prefix)] != string(prefix) {
			return false
		}
		c.cur, found = kk, true
		v = vv
		return false
	})
	if !found {
		return nil, nil
	}
	return v, nil
}

func (c *memDupCursor) CountDuplicates() (uint64, error) {
	if !c.has && c.curKey == nil {
		return 0, nil
	}
	prefix := string(compositeKey(c.curKey, nil))
	var count uint64
	c.tbl.data.Ascend(prefix, func(kk string, _ []byte) bool {
		if len(kk) < len(prefix) || kk[:len(prefix)] != prefix {
			return false
		}
		count++
		return true
	})
	return count, nil
}

type memRwDupCursor struct{ memDupCursor }

func (c *memRwDupCursor) Put(key, value []byte) error {
	ck := compositeKey(key, value)
	c.tbl.data.Set(string(ck), append([]byte(nil), value...))
	c.cur, c.has, c.curKey = string(ck), true, key
	return nil
}

func (c *memRwDupCursor) Delete() error {
	if !c.has {
		return nil
	}
	c.tbl.data.Delete(c.cur)
	c.has = false
	return nil
}

func (c *memRwDupCursor) DeleteCurrentDup() error {
	return c.Delete()
}

// Upsert stores value as a duplicate of key. Duplicates are identified by
// their whole value, so only a byte-identical entry is replaced; a value
// that shares just its leading sub-key with an existing one is added
// beside it.
func (c *memRwDupCursor) Upsert(key, value []byte) error {
	ck := compositeKey(key, value)
	c.tbl.data.Set(string(ck), append([]byte(nil), value...))
	c.cur, c.has, c.curKey = string(ck), true, key
	return nil
}
