package application

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ResultCache stores computed search result sets keyed by the caller's cache
// key so paginated follow-up calls reuse one computation pass.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]UnitAvailability, bool)
	Store(ctx context.Context, key string, results []UnitAvailability)
}

// LRUResultCache is the in-process default: a TTL-bounded LRU suitable for a
// single replica.
type LRUResultCache struct {
	lru *expirable.LRU[string, []UnitAvailability]
}

// NewLRUResultCache creates the cache. Non-positive size and TTL fall back
// to 256 entries and 30 seconds.
func NewLRUResultCache(size int, ttl time.Duration) *LRUResultCache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LRUResultCache{lru: expirable.NewLRU[string, []UnitAvailability](size, nil, ttl)}
}

// Get returns a copy of the cached result set for the key.
func (c *LRUResultCache) Get(_ context.Context, key string) ([]UnitAvailability, bool) {
	results, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return cloneResults(results), true
}

// Store saves a copy of the result set under the key.
func (c *LRUResultCache) Store(_ context.Context, key string, results []UnitAvailability) {
	c.lru.Add(key, cloneResults(results))
}

func cloneResults(results []UnitAvailability) []UnitAvailability {
	if results == nil {
		return nil
	}
	out := make([]UnitAvailability, len(results))
	copy(out, results)
	return out
}
