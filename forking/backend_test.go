// Copyright 2024 The starkdev Authors
// This file is part of starkdev.

package forking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/types"
)

// countingClient counts calls per address so tests can assert dedup
// collapsed concurrent identical requests into one upstream call.
type countingClient struct {
	mu       sync.Mutex
	calls    map[felt.Felt]int
	release  chan struct{}
	gate     bool
	inFlight int32
	maxSeen  int32
}

func newCountingClient() *countingClient {
	return &countingClient{calls: make(map[felt.Felt]int), release: make(chan struct{})}
}

func (c *countingClient) NonceAt(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error) {
	c.mu.Lock()
	c.calls[addr]++
	c.mu.Unlock()

	n := atomic.AddInt32(&c.inFlight, 1)
	for {
		old := atomic.LoadInt32(&c.maxSeen)
		if n <= old || atomic.CompareAndSwapInt32(&c.maxSeen, old, n) {
			break
		}
	}
	defer atomic.AddInt32(&c.inFlight, -1)

	if c.gate {
		<-c.release
	}
	return addr, nil
}

func (c *countingClient) BlockByID(context.Context, types.BlockHashOrNumber) (types.SealedBlockWithStatus, error) {
	return types.SealedBlockWithStatus{}, nil
}
func (c *countingClient) StateUpdateByID(context.Context, types.BlockHashOrNumber) (types.StateUpdatesWithClasses, error) {
	return types.StateUpdatesWithClasses{}, nil
}
func (c *countingClient) ReceiptByHash(context.Context, felt.Felt) (types.ReceiptWithTxHash, error) {
	return types.ReceiptWithTxHash{}, nil
}
func (c *countingClient) StorageAt(context.Context, felt.Felt, felt.Felt, uint64) (felt.Felt, error) {
	return felt.Zero, nil
}
func (c *countingClient) ClassHashAt(context.Context, felt.Felt, uint64) (felt.Felt, error) {
	return felt.Zero, nil
}
func (c *countingClient) ClassAt(context.Context, felt.Felt, uint64) (types.ContractClass, error) {
	return types.ContractClass{}, nil
}
func (c *countingClient) StorageRoot(context.Context, felt.Felt, uint64) (felt.Felt, error) {
	return felt.Zero, nil
}
func (c *countingClient) GlobalRoots(context.Context, uint64) (felt.Felt, felt.Felt, error) {
	return felt.Zero, felt.Zero, nil
}
func (c *countingClient) BlockTraces(context.Context, types.BlockHashOrNumber) ([]types.TransactionTrace, error) {
	return nil, nil
}

func TestBackendDeduplicatesConcurrentIdenticalRequests(t *testing.T) {
	client := newCountingClient()
	client.gate = true
	b := NewBackend(client, 0)
	defer b.Close()

	ctx := context.Background()
	addr := felt.FromUint64(42)

	const n = 20
	var wg sync.WaitGroup
	results := make([]felt.Felt, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := b.NonceAt(ctx, addr, 0)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Give every goroutine a chance to enqueue before releasing the gate.
	time.Sleep(50 * time.Millisecond)
	close(client.release)
	wg.Wait()

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Equal(t, 1, client.calls[addr], "concurrent identical requests must collapse into one upstream call")
	for _, r := range results {
		require.True(t, r.Equal(addr))
	}
}

func TestBackendRespectsConcurrencyCap(t *testing.T) {
	client := newCountingClient()
	client.gate = true
	const cap = 4
	b := NewBackendWithConfig(client, 0, cap)
	defer b.Close()

	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = b.NonceAt(ctx, felt.FromUint64(uint64(i)), 0)
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	require.LessOrEqual(t, int(atomic.LoadInt32(&client.maxSeen)), cap)
	close(client.release)
	wg.Wait()
}

func TestBackendDistinctIdentitiesEachGetOneCall(t *testing.T) {
	client := newCountingClient()
	b := NewBackend(client, 0)
	defer b.Close()

	ctx := context.Background()
	for i := uint64(0); i < 5; i++ {
		v, err := b.NonceAt(ctx, felt.FromUint64(i), 0)
		require.NoError(t, err)
		require.True(t, v.Equal(felt.FromUint64(i)))
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.calls, 5)
	for _, c := range client.calls {
		require.Equal(t, 1, c)
	}
}
