// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package forking

import (
	"github.com/starkdev/node/felt"
)

// Kind enumerates the upstream read kinds the forking backend services
// (§4.4 "Request kinds"). CompiledClassHash is not its own upstream call —
// it is derived from a ClassAt response — so it carries no separate worker
// path; callers resolve it via Backend.CompiledClassHashAt, which issues a
// Class request underneath.
type Kind uint8

const (
	KindBlock Kind = iota
	KindStateUpdate
	KindReceipt
	KindNonce
	KindStorage
	KindClassHash
	KindClass
	KindClassesProof
	KindContractsProof
	KindStoragesProof
	KindGlobalRoots
	KindStorageRoot
	KindBlockTraces
)

// Identifier is the dedup key every in-flight request is keyed by (§4.4
// invariant 1, "at-most-one in-flight per identity"). It must be a
// comparable Go value so it can be used directly as a map key — every
// field here is a fixed-size value type (felt.Felt embeds a fixed-size
// uint256.Int), never a slice.
type Identifier struct {
	Kind        Kind
	BlockNumber uint64
	Hash        felt.Felt // tx hash, class hash
	Address     felt.Felt
	Key         felt.Felt // storage key
}

// request is one unit of work submitted to the worker: an identifier for
// dedup, a thunk that performs the actual upstream call, and the channel
// the caller blocks on for the reply (§4.4 "synchronous mpsc channel ...
// oneshot reply channel; callers may block on recv()").
type request struct {
	id    Identifier
	exec  func() (any, error)
	reply chan response
}

type response struct {
	value any
	err   error
}
