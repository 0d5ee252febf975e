// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Production KV backend on top of github.com/erigontech/mdbx-go, the same
// binding Erigon itself uses: one OS-level writer, unlimited concurrent
// readers against an mmap'd, copy-on-write B+tree file. This is the backend
// opened by cmd/devnode for a real database directory; MemDB (memdb.go)
// only stands in for it in tests.
package kv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/erigontech/mdbx-go/mdbx"
)

// MdbxDB opens a single MDBX environment with one DBI per kv.Table.
type MdbxDB struct {
	env  *mdbx.Env
	dbis map[Table]mdbx.DBI
}

// OpenMdbx opens (creating if absent) an MDBX environment rooted at dir,
// with one sub-database per table in kv.AllTables. DupSort tables are
// opened with mdbx.DupSort so the engine's native duplicate-key ordering
// is used instead of the composite-key emulation MemDB falls back to.
func OpenMdbx(dir string) (*MdbxDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, NewIoError("mkdir", err)
	}

	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, NewIoError("mdbx.NewEnv", err)
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(len(AllTables)+8)); err != nil {
		return nil, NewIoError("mdbx.SetOption(MaxDB)", err)
	}
	// One writer, many readers (§5): MDBX enforces this natively via its
	// single write-transaction lock.
	if err := env.Open(filepath.Clean(dir), mdbx.Coalesce|mdbx.LifoReclaim, 0o644); err != nil {
		return nil, NewIoError("mdbx.Open", err)
	}

	db := &MdbxDB{env: env, dbis: make(map[Table]mdbx.DBI, len(AllTables))}
	err = env.Update(func(txn *mdbx.Txn) error {
		for _, tbl := range AllTables {
			flags := uint(mdbx.Create)
			if TablesCfg[tbl].DupSort {
				flags |= mdbx.DupSort
			}
			dbi, err := txn.OpenDBISimple(string(tbl), flags)
			if err != nil {
				return fmt.Errorf("open table %s: %w", tbl, err)
			}
			db.dbis[tbl] = dbi
		}
		return nil
	})
	if err != nil {
		env.Close()
		return nil, NewIoError("mdbx table init", err)
	}
	return db, nil
}

func (db *MdbxDB) Close() error {
	db.env.Close()
	return nil
}

func (db *MdbxDB) BeginRo(_ context.Context) (Tx, error) {
	txn, err := db.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, NewIoError("mdbx.BeginTxn(ro)", err)
	}
	return &mdbxTx{db: db, txn: txn}, nil
}

func (db *MdbxDB) ViewRo(ctx context.Context, f func(tx Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (db *MdbxDB) BeginRw(_ context.Context) (RwTx, error) {
	txn, err := db.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, NewIoError("mdbx.BeginTxn(rw)", err)
	}
	return &mdbxRwTx{mdbxTx: mdbxTx{db: db, txn: txn}}, nil
}

func (db *MdbxDB) Update(ctx context.Context, f func(tx RwTx) error) error {
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

type mdbxTx struct {
	db  *MdbxDB
	txn *mdbx.Txn
}

func (tx *mdbxTx) Get(table Table, key []byte) ([]byte, error) {
	v, err := tx.txn.Get(tx.db.dbis[table], key)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil
		}
		return nil, NewIoError("mdbx.Get", err)
	}
	return v, nil
}

func (tx *mdbxTx) Has(table Table, key []byte) (bool, error) {
	v, err := tx.Get(table, key)
	return v != nil, err
}

func (tx *mdbxTx) Entries(table Table) (uint64, error) {
	stat, err := tx.txn.StatDBI(tx.db.dbis[table])
	if err != nil {
		return 0, NewIoError("mdbx.Stat", err)
	}
	return stat.Entries, nil
}

func (tx *mdbxTx) Cursor(table Table) (Cursor, error) {
	c, err := tx.txn.OpenCursor(tx.db.dbis[table])
	if err != nil {
		return nil, NewIoError("mdbx.OpenCursor", err)
	}
	return &mdbxCursor{c: c}, nil
}

func (tx *mdbxTx) CursorDupSort(table Table) (CursorDupSort, error) {
	c, err := tx.Cursor(table)
	if err != nil {
		return nil, err
	}
	return &mdbxDupCursor{mdbxCursor: *c.(*mdbxCursor)}, nil
}

func (tx *mdbxTx) Rollback() { tx.txn.Abort() }

type mdbxRwTx struct{ mdbxTx }

func (tx *mdbxRwTx) Put(table Table, key, value []byte) error {
	if err := tx.txn.Put(tx.db.dbis[table], key, value, 0); err != nil {
		return NewIoError("mdbx.Put", err)
	}
	return nil
}

func (tx *mdbxRwTx) Delete(table Table, key []byte) error {
	if err := tx.txn.Del(tx.db.dbis[table], key, nil); err != nil && !mdbx.IsNotFound(err) {
		return NewIoError("mdbx.Del", err)
	}
	return nil
}

func (tx *mdbxRwTx) RwCursor(table Table) (RwCursor, error) {
	c, err := tx.Cursor(table)
	if err != nil {
		return nil, err
	}
	return &mdbxRwCursor{mdbxCursor: *c.(*mdbxCursor)}, nil
}

func (tx *mdbxRwTx) RwCursorDupSort(table Table) (RwCursorDupSort, error) {
	c, err := tx.Cursor(table)
	if err != nil {
		return nil, err
	}
	return &mdbxRwDupCursor{mdbxDupCursor: mdbxDupCursor{mdbxCursor: *c.(*mdbxCursor)}}, nil
}

func (tx *mdbxRwTx) Commit() error {
	if _, err := tx.txn.Commit(); err != nil {
		return NewIoError("mdbx.Commit", err)
	}
	return nil
}

type mdbxCursor struct{ c *mdbx.Cursor }

func (c *mdbxCursor) Seek(key []byte) ([]byte, []byte, error) {
	k, v, err := c.c.Get(key, nil, mdbx.SetRange)
	return mdbxResult(k, v, err)
}
func (c *mdbxCursor) First() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.First)
	return mdbxResult(k, v, err)
}
func (c *mdbxCursor) Next() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.Next)
	return mdbxResult(k, v, err)
}
func (c *mdbxCursor) Prev() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.Prev)
	return mdbxResult(k, v, err)
}
func (c *mdbxCursor) Last() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.Last)
	return mdbxResult(k, v, err)
}
func (c *mdbxCursor) Close() { c.c.Close() }

func mdbxResult(k, v []byte, err error) ([]byte, []byte, error) {
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, NewIoError("mdbx cursor", err)
	}
	return k, v, nil
}

type mdbxRwCursor struct{ mdbxCursor }

func (c *mdbxRwCursor) Put(key, value []byte) error {
	if err := c.c.Put(key, value, 0); err != nil {
		return NewIoError("mdbx cursor put", err)
	}
	return nil
}
func (c *mdbxRwCursor) Delete() error {
	if err := c.c.Del(0); err != nil {
		return NewIoError("mdbx cursor del", err)
	}
	return nil
}

type mdbxDupCursor struct{ mdbxCursor }

func (c *mdbxDupCursor) SeekBothExact(key, subkey []byte) ([]byte, []byte, error) {
	k, v, err := c.c.Get(key, subkey, mdbx.GetBoth)
	if k, v, err = mdbxResult(k, v, err); err != nil || v == nil {
		return k, v, err
	}
	return k, v, nil
}
func (c *mdbxDupCursor) SeekBothRange(key, subkey []byte) ([]byte, error) {
	_, v, err := c.c.Get(key, subkey, mdbx.GetBothRange)
	_, v, err = mdbxResult(nil, v, err)
	return v, err
}
func (c *mdbxDupCursor) FirstDup() ([]byte, error) {
	_, v, err := c.c.Get(nil, nil, mdbx.FirstDup)
	_, v, err = mdbxResult(nil, v, err)
	return v, err
}
func (c *mdbxDupCursor) NextDup() ([]byte, []byte, error) {
	k, v, err := c.c.Get(nil, nil, mdbx.NextDup)
	return mdbxResult(k, v, err)
}
func (c *mdbxDupCursor) LastDup() ([]byte, error) {
	_, v, err := c.c.Get(nil, nil, mdbx.LastDup)
	_, v, err = mdbxResult(nil, v, err)
	return v, err
}
func (c *mdbxDupCursor) CountDuplicates() (uint64, error) {
	n, err := c.c.Count()
	if err != nil {
		return 0, NewIoError("mdbx cursor count", err)
	}
	return n, nil
}

type mdbxRwDupCursor struct{ mdbxDupCursor }

func (c *mdbxRwDupCursor) Put(key, value []byte) error {
	if err := c.c.Put(key, value, 0); err != nil {
		return NewIoError("mdbx dup cursor put", err)
	}
	return nil
}
func (c *mdbxRwDupCursor) Delete() error {
	if err := c.c.Del(0); err != nil {
		return NewIoError("mdbx dup cursor del", err)
	}
	return nil
}
func (c *mdbxRwDupCursor) DeleteCurrentDup() error {
	if err := c.c.Del(0); err != nil {
		return NewIoError("mdbx dup cursor del-current", err)
	}
	return nil
}
func (c *mdbxRwDupCursor) Upsert(key, value []byte) error {
	if err := c.c.Put(key, value, mdbx.UpsertDup); err != nil {
		return NewIoError("mdbx dup cursor upsert", err)
	}
	return nil
}
