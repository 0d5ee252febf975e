// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package stateview

import "github.com/starkdev/node/provider"

// Historical returns a View over state as of the end of block (§4.5
// "Historical(block)"), backed by the provider's change-set reconstruction.
func Historical(p provider.Provider, block uint64) *View {
	return &View{kind: kindHistorical, latest: &latestView{provider: p}, block: block}
}
