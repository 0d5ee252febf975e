// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package rpcserver

import (
	"encoding/json"
	"net/http"

	"github.com/starkdev/node/blockproducer"
	"github.com/starkdev/node/types"
)

// MountAdmin wires the dev-chain admin endpoints (submit a transaction
// directly, force-mine the pending batch) onto an IntervalProducer — the
// mode whose pending batch the admin RPCs are defined against (§4.6
// "force_mine / generate_block admin RPCs").
func (s *Server) MountAdmin(ip *blockproducer.IntervalProducer) {
	s.router.Post("/admin/submitTransaction", func(w http.ResponseWriter, r *http.Request) {
		var tx types.Transaction
		if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
			writeError(w, newError(CodeInternal, err.Error()))
			return
		}
		if err := ip.Submit(r.Context(), tx); err != nil {
			writeError(w, newError(CodeInternal, err.Error()))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	s.router.Post("/admin/forceMine", func(w http.ResponseWriter, r *http.Request) {
		outcome, err := ip.ForceMine(r.Context())
		if err != nil {
			writeError(w, newError(CodeInternal, err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, outcome)
	})

	s.router.Post("/admin/setNextBlockTimestamp", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Timestamp uint64 `json:"timestamp"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, newError(CodeInternal, err.Error()))
			return
		}
		ip.Clock().SetNextBlockTimestamp(body.Timestamp)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Post("/admin/setBlockTimestampOffset", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Offset int64 `json:"offset"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, newError(CodeInternal, err.Error()))
			return
		}
		ip.Clock().SetBlockTimestampOffset(body.Offset)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
