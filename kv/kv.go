// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package kv is the ordered, transactional key-value layer (C1): named
// tables, dup-sort support, and single-writer/many-reader transactions.
// Modeled directly on erigon-lib/kv's Tx/RwTx/Cursor contract, backed in
// production by MDBX (github.com/erigontech/mdbx-go) and, for tests, by a
// pure-Go in-memory implementation.
package kv

import "context"

// Table names a KV table; tables are declared once in tables.go.
type Table string

// IsDupSort reports whether the table allows multiple values per key, ordered by
// sub-key (§4.1 dup-sort table).
func (t Table) IsDupSort() bool {
	cfg, ok := TablesCfg[t]
	return ok && cfg.DupSort
}

// KeyValue is a single key/value pair, as returned by cursor iteration.
type KeyValue struct {
	K []byte
	V []byte
}

// RoDB is a read-only-capable database handle: anything that can open
// read-only transactions. A read-write DB embeds this.
type RoDB interface {
	BeginRo(ctx context.Context) (Tx, error)
	// ViewRo runs f inside a read-only transaction and always rolls it back
	// (a read-only transaction never needs an explicit commit).
	ViewRo(ctx context.Context, f func(tx Tx) error) error
	Close() error
}

// RwDB additionally allows exactly one read-write transaction at a time
// (§5 "Write serialization").
type RwDB interface {
	RoDB
	BeginRw(ctx context.Context) (RwTx, error)
	Update(ctx context.Context, f func(tx RwTx) error) error
}

// Tx is a read-only transaction scoped to a consistent snapshot (§4.1).
// Concurrent read-only transactions never block each other or the writer.
type Tx interface {
	Get(table Table, key []byte) ([]byte, error)
	Has(table Table, key []byte) (bool, error)
	Cursor(table Table) (Cursor, error)
	CursorDupSort(table Table) (CursorDupSort, error)
	// Entries returns the total number of keys in table, used by the
	// provider to derive the next tx_number (§4.1 "entries(table)").
	Entries(table Table) (uint64, error)
	Rollback()
}

// RwTx is a Tx that may also mutate tables; commit flushes every write
// atomically or fails with no effect (§4.1).
type RwTx interface {
	Tx
	Put(table Table, key, value []byte) error
	Delete(table Table, key []byte) error
	RwCursor(table Table) (RwCursor, error)
	RwCursorDupSort(table Table) (RwCursorDupSort, error)
	Commit() error
}

// Cursor walks an ordered table.
type Cursor interface {
	Seek(key []byte) (k, v []byte, err error)
	First() (k, v []byte, err error)
	Next() (k, v []byte, err error)
	Prev() (k, v []byte, err error)
	Last() (k, v []byte, err error)
	Close()
}

// RwCursor additionally allows mutation at the cursor's current position.
type RwCursor interface {
	Cursor
	Put(key, value []byte) error
	Delete() error
}

// CursorDupSort additionally walks the ordered sub-key multiset of a
// dup-sort table (§4.1 "walk_dup(key)", "seek_by_key_subkey").
type CursorDupSort interface {
	Cursor
	SeekBothExact(key, subkey []byte) (k, v []byte, err error)
	SeekBothRange(key, subkey []byte) (v []byte, err error)
	FirstDup() (v []byte, err error)
	NextDup() (k, v []byte, err error)
	LastDup() (v []byte, err error)
	CountDuplicates() (uint64, error)
}

// RwCursorDupSort is the mutable dup-sort cursor (§4.1 "delete_current", "upsert").
type RwCursorDupSort interface {
	CursorDupSort
	RwCursor
	DeleteCurrentDup() error
	// Upsert adds value as a duplicate of key — the dup-sort equivalent of
	// Put. Only a byte-identical duplicate is replaced; a value sharing just
	// its leading sub-key with an existing duplicate is stored beside it.
	Upsert(key, value []byte) error
}

// ErrKeyNotFound is the sentinel for a structural miss, as opposed to a true
// I/O failure (§7 "Io" vs structural misses). Get does not return it: on a
// miss Get returns a nil value and a nil error.
var ErrKeyNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "kv: key not found" }
