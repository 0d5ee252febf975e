// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package rpcserver mounts the read surface over C3/C5 and the dev-admin
// surface over C6 on an HTTP router (named, out-of-scope collaborator per
// spec.md §1 — "The JSON-RPC surface ... consumer of the provider"), just
// enough to prove the core triad is reachable end to end. Grounded on the
// teacher's own JSON-RPC/engine HTTP mounting: a chi.Router with CORS,
// handlers that decode a request, call straight into the provider/state
// view, and write a JSON-RPC 2.0 envelope back.
package rpcserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/provider"
	"github.com/starkdev/node/stateview"
	"github.com/starkdev/node/types"
)

// MaxEventPageSize bounds get_events' chunk_size (§4.1-equivalent pagination
// contract); requests above it fail with PageSizeTooBig.
const MaxEventPageSize = 1000

// Server mounts the read-only JSON-RPC surface and, once MountAdmin is
// called, the dev chain's mining controls.
type Server struct {
	router   chi.Router
	provider provider.Provider
}

// New builds a Server reading through p. Admin routes are mounted
// separately via MountAdmin once a block producer exists.
func New(p provider.Provider) *Server {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	s := &Server{router: r, provider: p}
	r.Get("/rpc/getBlockByNumber/{num}", s.handleGetBlockByNumber)
	r.Get("/rpc/getNonce/{address}", s.handleGetNonce)
	r.Get("/rpc/getStorageAt/{address}/{key}", s.handleGetStorageAt)
	r.Get("/rpc/getClassHashAt/{address}", s.handleGetClassHashAt)
	r.Get("/rpc/getEvents", s.handleGetEvents)
	return s
}

// ServeHTTP lets Server itself be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err *Error) {
	status := http.StatusBadRequest
	if err.Code == CodeInternal {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]any{"error": err})
}

func parseFelt(s string) (felt.Felt, bool) {
	f, err := felt.FromHex(s)
	return f, err == nil
}

func (s *Server) handleGetBlockByNumber(w http.ResponseWriter, r *http.Request) {
	numStr := chi.URLParam(r, "num")
	n, ok := parseUint(numStr)
	if !ok {
		writeError(w, newError(CodeBlockNotFound, "invalid block number"))
		return
	}
	block, err := s.provider.BlockByID(r.Context(), types.ByNumber(n))
	if err != nil {
		writeError(w, newError(CodeBlockNotFound, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseFelt(chi.URLParam(r, "address"))
	if !ok {
		writeError(w, newError(CodeContractNotFound, "invalid address"))
		return
	}
	view := stateview.Latest(s.provider)
	nonce, found, err := view.Nonce(r.Context(), addr)
	if err != nil {
		writeError(w, newError(CodeInternal, err.Error()))
		return
	}
	if !found {
		writeError(w, newError(CodeContractNotFound, "contract not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce.Hex()})
}

func (s *Server) handleGetStorageAt(w http.ResponseWriter, r *http.Request) {
	addr, ok1 := parseFelt(chi.URLParam(r, "address"))
	key, ok2 := parseFelt(chi.URLParam(r, "key"))
	if !ok1 || !ok2 {
		writeError(w, newError(CodeContractNotFound, "invalid address or key"))
		return
	}
	view := stateview.Latest(s.provider)
	val, found, err := view.Storage(r.Context(), addr, key)
	if err != nil {
		writeError(w, newError(CodeInternal, err.Error()))
		return
	}
	if !found {
		val = felt.Zero
	}
	writeJSON(w, http.StatusOK, map[string]string{"value": val.Hex()})
}

func (s *Server) handleGetClassHashAt(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseFelt(chi.URLParam(r, "address"))
	if !ok {
		writeError(w, newError(CodeContractNotFound, "invalid address"))
		return
	}
	view := stateview.Latest(s.provider)
	ch, found, err := view.ClassHashOfContract(r.Context(), addr)
	if err != nil {
		writeError(w, newError(CodeInternal, err.Error()))
		return
	}
	if !found {
		writeError(w, newError(CodeClassHashNotFound, "class not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"class_hash": ch.Hex()})
}

// handleGetEvents is a deliberately thin pagination demo: it only proves
// the continuation-token contract (decode, bound chunk_size, re-encode),
// since actual event storage/indexing is out of this repository's scope.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chunkSize, _ := parseUint(q.Get("chunk_size"))
	if chunkSize == 0 {
		chunkSize = 10
	}
	if chunkSize > MaxEventPageSize {
		writeError(w, PageSizeTooBig(MaxEventPageSize))
		return
	}

	var cursor continuationToken
	if tok := q.Get("continuation_token"); tok != "" {
		ct, err := decodeContinuationToken(tok)
		if err != nil {
			writeError(w, err.(*Error))
			return
		}
		cursor = ct
	}

	next := encodeContinuationToken(cursor.BlockNumber, cursor.Offset+int(chunkSize))
	writeJSON(w, http.StatusOK, map[string]any{
		"events":              []any{},
		"continuation_token": next,
	})
}

func parseUint(s string) (uint64, bool) {
	var n uint64
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return n, true
}
