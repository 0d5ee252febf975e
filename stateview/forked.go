// Copyright 2024 The starkdev Authors
// This file is part of starkdev.
//
// Forked read-through caching. Open Question (§ "should forked reads be
// cached?") resolved: yes, an LRU keyed by (kind,address[,key]) with a
// 4096-entry default capacity, because repeated RPC calls against the
// same forked contract (e.g. a hot ERC-20 balance slot) dominate fork
// mode's latency otherwise. A Forked view consults its local Latest view
// before the cache, so a forked value is not served once the chain has its
// own answer; entries are dropped only by InvalidateContract and
// InvalidateClass, which nothing in this package calls (§4.5 "successful remote reads are not cached in the main DB;
// they are rebound only when a subsequent local block actually writes
// them" — the cache obeys the same rule, just in memory).
package stateview

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starkdev/node/felt"
	"github.com/starkdev/node/provider"
	"github.com/starkdev/node/types"
)

// DefaultForkedCacheCapacity is the LRU size for memoized forked reads.
const DefaultForkedCacheCapacity = 4096

type forkedCacheKey struct {
	kind kind2
	addr felt.Felt
	key  felt.Felt
}

// kind2 avoids colliding with the View-variant kind enum in view.go; it tags
// which accessor a cache entry belongs to.
type kind2 uint8

const (
	cacheNonce kind2 = iota
	cacheStorage
	cacheClassHash
	cacheClass
)

// ForkedCache memoizes successful forking-backend reads so repeated
// lookups of the same (addr[,key]) don't re-issue an RPC call.
type ForkedCache struct {
	felts   *lru.Cache[forkedCacheKey, felt.Felt]
	classes *lru.Cache[felt.Felt, types.ContractClass]
}

// NewForkedCache builds a cache with the default capacity.
func NewForkedCache() *ForkedCache {
	felts, _ := lru.New[forkedCacheKey, felt.Felt](DefaultForkedCacheCapacity)
	classes, _ := lru.New[felt.Felt, types.ContractClass](DefaultForkedCacheCapacity)
	return &ForkedCache{felts: felts, classes: classes}
}

// InvalidateContract drops every memoized nonce/storage/class-hash entry
// for addr (§4.5). It is not called automatically on local writes.
func (c *ForkedCache) InvalidateContract(addr felt.Felt) {
	c.felts.Remove(forkedCacheKey{kind: cacheNonce, addr: addr})
	c.felts.Remove(forkedCacheKey{kind: cacheClassHash, addr: addr})
	for _, k := range c.felts.Keys() {
		if k.kind == cacheStorage && k.addr.Equal(addr) {
			c.felts.Remove(k)
		}
	}
}

// InvalidateClass drops a memoized class body for classHash.
func (c *ForkedCache) InvalidateClass(classHash felt.Felt) {
	c.classes.Remove(classHash)
}

// Forked returns a View that wraps latest, falling through on a miss to
// fork parameterized at forkBlock, memoizing successful remote reads in
// cache (§4.5 "Forked"). Pass the same *ForkedCache across calls so the
// memoized reads are shared between views.
func Forked(p provider.Provider, fork ForkedReader, forkBlock uint64, cache *ForkedCache) *View {
	if cache == nil {
		cache = NewForkedCache()
	}
	return &View{
		kind:      kindForked,
		inner:     Latest(p),
		fork:      &cachingForkedReader{fork: fork, cache: cache},
		forkBlock: forkBlock,
	}
}

// cachingForkedReader wraps a ForkedReader with the memoization layer, so
// view.go's kindForked branches stay unaware of caching.
type cachingForkedReader struct {
	fork  ForkedReader
	cache *ForkedCache
}

func (c *cachingForkedReader) NonceAt(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error) {
	key := forkedCacheKey{kind: cacheNonce, addr: addr}
	if v, ok := c.cache.felts.Get(key); ok {
		return v, nil
	}
	v, err := c.fork.NonceAt(ctx, addr, blockNum)
	if err != nil {
		return felt.Zero, err
	}
	c.cache.felts.Add(key, v)
	return v, nil
}

func (c *cachingForkedReader) StorageAt(ctx context.Context, addr, key felt.Felt, blockNum uint64) (felt.Felt, error) {
	ck := forkedCacheKey{kind: cacheStorage, addr: addr, key: key}
	if v, ok := c.cache.felts.Get(ck); ok {
		return v, nil
	}
	v, err := c.fork.StorageAt(ctx, addr, key, blockNum)
	if err != nil {
		return felt.Zero, err
	}
	c.cache.felts.Add(ck, v)
	return v, nil
}

func (c *cachingForkedReader) ClassHashAt(ctx context.Context, addr felt.Felt, blockNum uint64) (felt.Felt, error) {
	ck := forkedCacheKey{kind: cacheClassHash, addr: addr}
	if v, ok := c.cache.felts.Get(ck); ok {
		return v, nil
	}
	v, err := c.fork.ClassHashAt(ctx, addr, blockNum)
	if err != nil {
		return felt.Zero, err
	}
	c.cache.felts.Add(ck, v)
	return v, nil
}

func (c *cachingForkedReader) ClassAt(ctx context.Context, classHash felt.Felt, blockNum uint64) (types.ContractClass, error) {
	if v, ok := c.cache.classes.Get(classHash); ok {
		return v, nil
	}
	v, err := c.fork.ClassAt(ctx, classHash, blockNum)
	if err != nil {
		return types.ContractClass{}, err
	}
	c.cache.classes.Add(classHash, v)
	return v, nil
}
