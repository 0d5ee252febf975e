// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package rpcserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starkdev/node/blockproducer"
	"github.com/starkdev/node/commitment"
	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/genesis"
	"github.com/starkdev/node/kv"
	"github.com/starkdev/node/provider"
	"github.com/starkdev/node/stateview"
	"github.com/starkdev/node/types"
)

func newWiredServer(t *testing.T) (*Server, *blockproducer.IntervalProducer) {
	t.Helper()
	db := kv.NewMemDB()
	t.Cleanup(func() { db.Close() })
	p := provider.NewDbProvider(db)
	ctx := context.Background()

	doc := &genesis.Document{Timestamp: 1}
	_, err := genesis.NewInitializer(p).Apply(ctx, doc)
	require.NoError(t, err)

	executor := func(ctx context.Context, view *stateview.View, txs []types.Transaction, env blockproducer.BlockEnv) (blockproducer.ExecutionOutput, error) {
		state := types.NewStateUpdates()
		outcomes := make([]blockproducer.TxOutcome, len(txs))
		for i, tx := range txs {
			state.NonceUpdates[tx.SenderAddress] = felt.FromUint64(1)
			outcomes[i] = blockproducer.TxOutcome{Kind: blockproducer.TxIncluded, Hash: felt.FromUint64(uint64(i) + 1), Tx: tx}
		}
		return blockproducer.ExecutionOutput{Outcomes: outcomes, State: types.StateUpdatesWithClasses{StateUpdates: state, Classes: map[felt.Felt]*types.ContractClass{}}}, nil
	}

	ip, err := blockproducer.NewIntervalProducer(ctx, p, commitment.New(p, p), &blockproducer.BlockContextGenerator{}, blockproducer.StaticGasOracle{}, executor, felt.FromUint64(1), types.DAModeCalldata, 0, nil)
	require.NoError(t, err)
	t.Cleanup(ip.Close)

	s := New(p)
	s.MountAdmin(ip)
	return s, ip
}

func TestGetBlockByNumberServesGenesis(t *testing.T) {
	s, _ := newWiredServer(t)
	req := httptest.NewRequest(http.MethodGet, "/rpc/getBlockByNumber/0", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminSubmitAndForceMine(t *testing.T) {
	s, _ := newWiredServer(t)

	body := `{"Kind":0,"SenderAddress":"0x42"}`
	req := httptest.NewRequest(http.MethodPost, "/admin/submitTransaction", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/admin/forceMine", nil)
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
}

func TestGetEventsPaginationRejectsOversizedChunk(t *testing.T) {
	s, _ := newWiredServer(t)
	req := httptest.NewRequest(http.MethodGet, "/rpc/getEvents?chunk_size=5000", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetEventsInvalidContinuationToken(t *testing.T) {
	s, _ := newWiredServer(t)
	req := httptest.NewRequest(http.MethodGet, "/rpc/getEvents?continuation_token=not-valid-base64!!", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
