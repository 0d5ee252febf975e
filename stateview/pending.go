// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package stateview

import "github.com/starkdev/node/provider"

// Pending returns a View over an in-progress interval-mode block session:
// reads check the executor's in-memory state first and fall back to
// Latest on a miss (§4.5 "Pending"). Pass a nil session (e.g. instant mode,
// or no block currently accumulating) to get a View that behaves exactly
// like Latest.
func Pending(p provider.Provider, session ExecutorState) *View {
	return &View{kind: kindPending, latest: &latestView{provider: p}, pending: session}
}
