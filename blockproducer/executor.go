// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package blockproducer

import (
	"context"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/stateview"
	"github.com/starkdev/node/types"
)

// TxOutcomeKind tags what an executed transaction did to the block being
// built (§4.6 "Instant mode"): Included covers both success and revert —
// a reverted transaction still consumes a nonce and is still mined with
// its revert reason attached — while Invalid transactions are dropped
// before ever reaching a block.
type TxOutcomeKind uint8

const (
	TxIncluded TxOutcomeKind = iota
	TxInvalid
)

// TxOutcome is one transaction's result from a single executor call.
type TxOutcome struct {
	Kind         TxOutcomeKind
	Hash         felt.Felt
	Tx           types.Transaction
	Receipt      types.Receipt
	Trace        types.TransactionTrace
	InvalidError error // set only when Kind == TxInvalid
}

// ExecutionOutput is everything the executor produces for a batch of
// transactions: per-tx outcomes in submission order, plus the aggregated
// state diff over every Included transaction (§5 "Ordering guarantees").
type ExecutionOutput struct {
	Outcomes []TxOutcome
	State    types.StateUpdatesWithClasses
}

// ExecutorFunc is the opaque transaction-execution collaborator (§1 "The
// transaction executor ... an opaque function (state_view, txs, env) ->
// (receipts, traces, state_diff)"). The block producer never inspects how
// it works, only what it returns.
type ExecutorFunc func(ctx context.Context, view *stateview.View, txs []types.Transaction, env BlockEnv) (ExecutionOutput, error)

// Included filters out to just the transactions that belong in a block,
// preserving submission order.
func (o ExecutionOutput) Included() []TxOutcome {
	out := make([]TxOutcome, 0, len(o.Outcomes))
	for _, oc := range o.Outcomes {
		if oc.Kind == TxIncluded {
			out = append(out, oc)
		}
	}
	return out
}
