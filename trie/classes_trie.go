// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package trie

import (
	"github.com/starkdev/node/felt"
)

// ClassDeclaration is one declared-class update fed to ClassesTrie: key =
// class_hash, value = compiled_class_hash (§4.2 "ClassesTrie" — applies only
// to Sierra classes, since legacy classes carry no compiled class hash).
type ClassDeclaration struct {
	ClassHash         felt.Felt
	CompiledClassHash felt.Felt
}

// ClassesTrie is the trie keyed by class_hash over compiled_class_hash.
type ClassesTrie struct {
	t *Trie
}

// NewClassesTrie wraps backend as a ClassesTrie.
func NewClassesTrie(backend Backend) *ClassesTrie {
	return &ClassesTrie{t: New(backend)}
}

// InsertDeclaredClasses applies a batch of declarations and returns the
// resulting classes_root (§4.2 "insert_declared_classes").
func (c *ClassesTrie) InsertDeclaredClasses(updates []ClassDeclaration) felt.Felt {
	for _, u := range updates {
		c.t.Put(u.ClassHash, u.CompiledClassHash)
	}
	return c.t.Root()
}

// CompiledClassHash looks up the current compiled class hash for classHash.
func (c *ClassesTrie) CompiledClassHash(classHash felt.Felt) (felt.Felt, bool) {
	v := c.t.Get(classHash)
	if v.IsZero() {
		return felt.Zero, false
	}
	return v, true
}

// Root returns the current classes_root without mutating the trie.
func (c *ClassesTrie) Root() felt.Felt { return c.t.Root() }
