// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package trie

import (
	"context"
	"testing"

	"github.com/starkdev/node/kv"
)

func newTestDB(t *testing.T) kv.RwDB {
	t.Helper()
	return kv.NewMemDB()
}

func testContext() context.Context {
	return context.Background()
}
