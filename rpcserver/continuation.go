// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package rpcserver

import (
	"encoding/base64"
	"encoding/json"
)

// continuationToken is the opaque cursor handed back from a paginated
// call (get_events, the only one this server mounts) and accepted back
// on the next call; it round-trips losslessly through base64url(JSON) so
// callers can treat it as an opaque string per the RPC spec.
type continuationToken struct {
	BlockNumber uint64 `json:"b"`
	Offset      int    `json:"o"`
}

func encodeContinuationToken(blockNumber uint64, offset int) string {
	raw, _ := json.Marshal(continuationToken{BlockNumber: blockNumber, Offset: offset})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeContinuationToken(tok string) (continuationToken, error) {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return continuationToken{}, InvalidContinuationToken()
	}
	var ct continuationToken
	if err := json.Unmarshal(raw, &ct); err != nil {
		return continuationToken{}, InvalidContinuationToken()
	}
	return ct, nil
}
