// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package genesis

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/starkdev/node/kv"
	"github.com/starkdev/node/provider"
)

const sampleDoc = `{
	"timestamp": 1700000000,
	"sequencer_address": "0x1",
	"gas_prices": {"l1_gas_price": "0xa", "l1_data_gas_price": "0xb", "l2_gas_price": "0xc"},
	"classes": [
		{"class_hash": "0x10", "compiled_class_hash": "0x11", "path": "artifacts/class10.json"}
	],
	"allocations": [
		{"address": "0x100", "class_hash": "0x10", "nonce": "0x0", "storage": {"0x1": "0x2a"}}
	]
}`

func newTestFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/genesis/genesis.json", []byte(sampleDoc), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/genesis/artifacts/class10.json", []byte(`{"program":[]}`), 0o644))
	return fs
}

func TestLoadResolvesPathArtifacts(t *testing.T) {
	fs := newTestFs(t)
	doc, err := Load(fs, "/genesis/genesis.json")
	require.NoError(t, err)
	require.Len(t, doc.Classes, 1)
	require.JSONEq(t, `{"program":[]}`, string(doc.Classes[0].Inline))

	header, state, artifacts, err := doc.Resolve()
	require.NoError(t, err)
	require.Equal(t, uint64(1700000000), header.Timestamp)
	require.Len(t, state.DeployedContracts, 1)
	require.Len(t, state.DeclaredClasses, 1)
	require.Len(t, artifacts, 1)
}

func TestInitializerDerivesThenReverifiesGenesis(t *testing.T) {
	fs := newTestFs(t)
	doc, err := Load(fs, "/genesis/genesis.json")
	require.NoError(t, err)

	db := kv.NewMemDB()
	defer db.Close()
	p := provider.NewDbProvider(db)
	ctx := context.Background()

	init := NewInitializer(p)
	sealed1, err := init.Apply(ctx, doc)
	require.NoError(t, err)
	require.Equal(t, uint64(0), sealed1.Block.Header.Number)

	// Re-applying to the already-populated DB must only verify, not mutate.
	sealed2, err := init.Apply(ctx, doc)
	require.NoError(t, err)
	require.True(t, sealed1.Hash.Equal(sealed2.Hash))

	num, err := p.LatestBlockNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), num)
}
