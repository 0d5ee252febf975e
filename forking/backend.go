// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// starkdev is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package forking implements the worker that services cache-miss reads
// against an upstream RPC provider (C4), with request deduplication and
// bounded concurrency (§4.4). Grounded directly on
// original_source/crates/storage/fork/src/lib.rs — BackendWorker's
// dedup_request/poll loop is reproduced here as a single dedicated
// goroutine owning queue/pending/dedup state, with the actual upstream
// calls fanned out to short-lived goroutines that report back on a
// completion channel, so the worker itself never blocks.
package forking

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/types"
)

// DefaultMaxConcurrentRequests mirrors DEFAULT_WORKER_MAX_CONCURRENT_REQUESTS.
const DefaultMaxConcurrentRequests = 50

// DefaultUpstreamTimeout is a 30 s per-request deadline value (§5
// "Timeouts"). Backend does not apply it: each upstream call runs under the
// context of the caller that submitted it, with no deadline of its own.
const DefaultUpstreamTimeout = 30 * time.Second

type completion struct {
	id   Identifier
	resp response
}

// Backend owns the upstream client and the dedicated worker goroutine; its
// public methods are the synchronous façade the provider blocks on (§4.4
// "Blocking from non-async callers").
type Backend struct {
	client        Client
	forkBlock     uint64
	maxConcurrent int
	metrics       *Metrics

	incoming    chan request
	completions chan completion
	done        chan struct{}
}

// NewBackend starts the worker goroutine and returns a Backend forking
// from forkBlock with the default concurrency cap.
func NewBackend(client Client, forkBlock uint64) *Backend {
	return NewBackendWithConfig(client, forkBlock, DefaultMaxConcurrentRequests)
}

// NewBackendWithConfig is NewBackend with an explicit concurrency cap
// (§8 S8 "concurrency cap").
func NewBackendWithConfig(client Client, forkBlock uint64, maxConcurrent int) *Backend {
	b := &Backend{
		client:        client,
		forkBlock:     forkBlock,
		maxConcurrent: maxConcurrent,
		metrics:       newMetrics(),
		incoming:      make(chan request, 1024),
		completions:   make(chan completion, 1024),
		done:          make(chan struct{}),
	}
	go b.run()
	return b
}

// ForkBlock is the block number this backend forked from.
func (b *Backend) ForkBlock() uint64 { return b.forkBlock }

// Metrics exposes the pending/queued gauges.
func (b *Backend) Metrics() *Metrics { return b.metrics }

// Close stops the worker goroutine.
func (b *Backend) Close() { close(b.done) }

// run is the single-threaded worker loop (§4.4 "single-threaded
// cooperative within a dedicated runtime thread").
func (b *Backend) run() {
	dedup := make(map[Identifier][]chan response)
	var queue []request
	pending := 0

	for {
		// Promote as many queued requests as the concurrency cap allows,
		// deduplicating against already in-flight identities exactly where
		// the reference worker does it: at promotion time, not enqueue time.
		for len(queue) > 0 && pending < b.maxConcurrent {
			req := queue[0]
			queue = queue[1:]

			if waiters, ok := dedup[req.id]; ok {
				dedup[req.id] = append(waiters, req.reply)
				continue
			}
			dedup[req.id] = []chan response{req.reply}
			pending++
			go b.issue(req)
		}

		b.metrics.PendingRequests.Set(float64(pending))
		b.metrics.QueuedRequests.Set(float64(len(queue)))

		select {
		case <-b.done:
			return
		case req := <-b.incoming:
			queue = append(queue, req)
		case c := <-b.completions:
			waiters := dedup[c.id]
			delete(dedup, c.id)
			pending--
			for _, w := range waiters {
				select {
				case w <- c.resp:
				default:
					// A cancelled caller dropped its reply receiver (§5
					// "Cancellation"); the worker notices and moves on
					// rather than blocking the fan-out for other waiters.
				}
			}
		}
	}
}

// issue runs one request's exec thunk with retry and reports the result on
// the completions channel; it never touches worker-owned state directly.
func (b *Backend) issue(req request) {
	var result any
	op := func() error {
		v, err := req.exec()
		if err != nil {
			if _, ok := err.(*NotFoundError); ok {
				result = nil
				return nil // not-found is not retryable
			}
			return err
		}
		result = v
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	err := backoff.Retry(op, bo)

	resp := response{value: result}
	if err != nil {
		resp.err = &StarknetProviderError{Err: err}
	}
	b.completions <- completion{id: req.id, resp: resp}
}

// submit enqueues req and blocks for its reply, the synchronous façade
// every typed accessor below goes through.
func (b *Backend) submit(ctx context.Context, id Identifier, exec func() (any, error)) (any, error) {
	reply := make(chan response, 1)
	select {
	case b.incoming <- request{id: id, exec: exec, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case resp := <-reply:
		return resp.value, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Backend) BlockByID(ctx context.Context, id types.BlockHashOrNumber, num uint64) (types.SealedBlockWithStatus, error) {
	v, err := b.submit(ctx, Identifier{Kind: KindBlock, BlockNumber: num}, func() (any, error) {
		return b.client.BlockByID(ctx, id)
	})
	if err != nil || v == nil {
		return types.SealedBlockWithStatus{}, err
	}
	return v.(types.SealedBlockWithStatus), nil
}

func (b *Backend) StateUpdateByID(ctx context.Context, id types.BlockHashOrNumber, num uint64) (types.StateUpdatesWithClasses, error) {
	v, err := b.submit(ctx, Identifier{Kind: KindStateUpdate, BlockNumber: num}, func() (any, error) {
		return b.client.StateUpdateByID(ctx, id)
	})
	if err != nil || v == nil {
		return types.StateUpdatesWithClasses{}, err
	}
	return v.(types.StateUpdatesWithClasses), nil
}

func (b *Backend) ReceiptByHash(ctx context.Context, hash felt.Felt) (types.ReceiptWithTxHash, error) {
	v, err := b.submit(ctx, Identifier{Kind: KindReceipt, Hash: hash}, func() (any, error) {
		return b.client.ReceiptByHash(ctx, hash)
	})
	if err != nil || v == nil {
		return types.ReceiptWithTxHash{}, err
	}
	return v.(types.ReceiptWithTxHash), nil
}

func (b *Backend) NonceAt(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error) {
	v, err := b.submit(ctx, Identifier{Kind: KindNonce, Address: addr, BlockNumber: blockNum}, func() (any, error) {
		return b.client.NonceAt(ctx, addr, blockNum)
	})
	if err != nil || v == nil {
		return felt.Zero, err
	}
	return v.(felt.Felt), nil
}

func (b *Backend) StorageAt(ctx context.Context, addr, key felt.Felt, blockNum uint64) (felt.Felt, error) {
	v, err := b.submit(ctx, Identifier{Kind: KindStorage, Address: addr, Key: key, BlockNumber: blockNum}, func() (any, error) {
		return b.client.StorageAt(ctx, addr, key, blockNum)
	})
	if err != nil || v == nil {
		return felt.Zero, err
	}
	return v.(felt.Felt), nil
}

func (b *Backend) ClassHashAt(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error) {
	v, err := b.submit(ctx, Identifier{Kind: KindClassHash, Address: addr, BlockNumber: blockNum}, func() (any, error) {
		return b.client.ClassHashAt(ctx, addr, blockNum)
	})
	if err != nil || v == nil {
		return felt.Zero, err
	}
	return v.(felt.Felt), nil
}

func (b *Backend) ClassAt(ctx context.Context, classHash felt.Felt, blockNum uint64) (types.ContractClass, error) {
	v, err := b.submit(ctx, Identifier{Kind: KindClass, Hash: classHash, BlockNumber: blockNum}, func() (any, error) {
		return b.client.ClassAt(ctx, classHash, blockNum)
	})
	if err != nil || v == nil {
		return types.ContractClass{}, err
	}
	return v.(types.ContractClass), nil
}

// CompiledClassHashAt derives a compiled class hash from a ClassAt
// response rather than issuing its own upstream request (§4.4 "derived
// from class-at").
func (b *Backend) CompiledClassHashAt(ctx context.Context, classHash felt.Felt, blockNum uint64) (felt.Felt, error) {
	cls, err := b.ClassAt(ctx, classHash, blockNum)
	if err != nil {
		return felt.Zero, err
	}
	if !cls.IsSierra() {
		return felt.Zero, nil
	}
	return felt.PoseidonHashArray(cls.Sierra.Program), nil
}

func (b *Backend) StorageRoot(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error) {
	v, err := b.submit(ctx, Identifier{Kind: KindStorageRoot, Address: addr, BlockNumber: blockNum}, func() (any, error) {
		return b.client.StorageRoot(ctx, addr, blockNum)
	})
	if err != nil || v == nil {
		return felt.Zero, err
	}
	return v.(felt.Felt), nil
}

type globalRoots struct {
	Contracts, Classes felt.Felt
}

func (b *Backend) GlobalRoots(ctx context.Context, blockNum uint64) (contractsRoot, classesRoot felt.Felt, err error) {
	v, err := b.submit(ctx, Identifier{Kind: KindGlobalRoots, BlockNumber: blockNum}, func() (any, error) {
		c, cl, e := b.client.GlobalRoots(ctx, blockNum)
		if e != nil {
			return nil, e
		}
		return globalRoots{Contracts: c, Classes: cl}, nil
	})
	if err != nil || v == nil {
		return felt.Zero, felt.Zero, err
	}
	gr := v.(globalRoots)
	return gr.Contracts, gr.Classes, nil
}

func (b *Backend) BlockTraces(ctx context.Context, id types.BlockHashOrNumber, num uint64) ([]types.TransactionTrace, error) {
	v, err := b.submit(ctx, Identifier{Kind: KindBlockTraces, BlockNumber: num}, func() (any, error) {
		return b.client.BlockTraces(ctx, id)
	})
	if err != nil || v == nil {
		return nil, err
	}
	return v.([]types.TransactionTrace), nil
}
