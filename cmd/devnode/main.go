// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command devnode is the single-process dev chain: it opens (or creates) a
// database, applies the genesis document, wires the block producer and
// mounts the RPC surface. Named a non-goal collaborator in spec.md §1
// ("CLI, config loading, genesis JSON parsing ... out of scope") but still
// the thing that has to exist for the core triad (C1-C7) to run as a real
// program. Grounded on the teacher's own cobra-based node entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/starkdev/node/blockproducer"
	"github.com/starkdev/node/commitment"
	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/genesis"
	"github.com/starkdev/node/internal/logutil"
	"github.com/starkdev/node/kv"
	"github.com/starkdev/node/provider"
	"github.com/starkdev/node/rpcserver"
	"github.com/starkdev/node/stateview"
	"github.com/starkdev/node/types"
)

type config struct {
	dataDir      string
	genesisPath  string
	listenAddr   string
	blockTime    string
	logLevel     string
	sequencerHex string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}
	cmd := &cobra.Command{
		Use:   "devnode",
		Short: "Run the Starknet development node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.dataDir, "data-dir", "./devnode-data", "database directory")
	flags.StringVar(&cfg.genesisPath, "genesis", "", "path to the genesis JSON document")
	flags.StringVar(&cfg.listenAddr, "http-addr", ":5050", "HTTP listen address")
	flags.StringVar(&cfg.blockTime, "block-time", "0s", "interval-mode block interval; 0 seals only on demand")
	flags.StringVar(&cfg.logLevel, "log-level", "info", "log level")
	flags.StringVar(&cfg.sequencerHex, "sequencer-address", "0x1", "sequencer address")
	return cmd
}

func run(ctx context.Context, cfg *config) error {
	log, err := logutil.New(logutil.Config{Level: cfg.logLevel, JSON: false, Colorize: true})
	if err != nil {
		return fmt.Errorf("devnode: logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	db, err := kv.OpenMdbx(cfg.dataDir)
	if err != nil {
		return fmt.Errorf("devnode: open db: %w", err)
	}

	p := provider.NewDbProvider(db)

	if cfg.genesisPath != "" {
		doc, err := genesis.Load(afero.NewOsFs(), cfg.genesisPath)
		if err != nil {
			return fmt.Errorf("devnode: load genesis: %w", err)
		}
		sealed, err := genesis.NewInitializer(p).Apply(ctx, doc)
		if err != nil {
			return fmt.Errorf("devnode: apply genesis: %w", err)
		}
		log.Info("genesis ready", zap.Stringer("block_hash", sealed.Hash))
	}

	sequencer, err := felt.FromHex(cfg.sequencerHex)
	if err != nil {
		return fmt.Errorf("devnode: sequencer-address: %w", err)
	}

	blockTime, err := time.ParseDuration(cfg.blockTime)
	if err != nil {
		return fmt.Errorf("devnode: block-time: %w", err)
	}

	pipeline := commitment.New(p, p)
	bcg := &blockproducer.BlockContextGenerator{}
	oracle := blockproducer.StaticGasOracle{Prices: types.GasPrices{}}
	executor := passthroughExecutor

	ip, err := blockproducer.NewIntervalProducer(ctx, p, pipeline, bcg, oracle, executor, sequencer, types.DAModeCalldata, blockTime, log.Named("block producer"))
	if err != nil {
		return fmt.Errorf("devnode: block producer: %w", err)
	}
	defer ip.Close()

	server := rpcserver.New(p)
	server.MountAdmin(ip)

	log.Info("listening", zap.String("addr", cfg.listenAddr))
	return http.ListenAndServe(cfg.listenAddr, server)
}

// passthroughExecutor is the trivial stand-in for the real transaction
// executor (§1 "opaque function (state_view, txs, env) -> (receipts,
// traces, state_diff)"), which is out of this repository's scope — it
// bumps each sender's nonce and includes every submitted transaction
// unconditionally, just enough to exercise the producer end to end.
func passthroughExecutor(ctx context.Context, view *stateview.View, txs []types.Transaction, env blockproducer.BlockEnv) (blockproducer.ExecutionOutput, error) {
	state := types.NewStateUpdates()
	outcomes := make([]blockproducer.TxOutcome, len(txs))
	for i, tx := range txs {
		nonce, _, err := view.Nonce(ctx, tx.SenderAddress)
		if err != nil {
			return blockproducer.ExecutionOutput{}, err
		}
		state.NonceUpdates[tx.SenderAddress] = nonce.Add(felt.FromUint64(1))
		outcomes[i] = blockproducer.TxOutcome{
			Kind: blockproducer.TxIncluded,
			Hash: felt.FromUint64(env.Number*1_000_000 + uint64(i)),
			Tx:   tx,
		}
	}
	return blockproducer.ExecutionOutput{
		Outcomes: outcomes,
		State:    types.StateUpdatesWithClasses{StateUpdates: state, Classes: map[felt.Felt]*types.ContractClass{}},
	}, nil
}
