package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/qaliblog/tradology/dataprovider"
)

// ResponseCache is the short-TTL in-memory store keyed by (symbol, lookback).
// Entries carrying a live quote expire on the shorter quote TTL; history-only
// and synthetic entries keep for the longer history TTL, since history moves
// slowly but live price does not. Expired entries are treated as misses and
// overwritten lazily; there is no size-bounded eviction because a session
// touches only a handful of symbols.
type ResponseCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	quoteTTL   time.Duration
	historyTTL time.Duration
	now        func() time.Time
}

type cacheEntry struct {
	series    dataprovider.Series
	fetchedAt time.Time
	ttl       time.Duration
}

func NewResponseCache(quoteTTL, historyTTL time.Duration) *ResponseCache {
	return &ResponseCache{
		entries:    make(map[string]cacheEntry),
		quoteTTL:   quoteTTL,
		historyTTL: historyTTL,
		now:        time.Now,
	}
}

// CacheKey builds the canonical (symbol, lookbackDays) key.
func CacheKey(symbol string, lookbackDays int) string {
	return fmt.Sprintf("%s|%d", symbol, lookbackDays)
}

// Get returns the cached series for key, or ok=false on a miss or an expired
// entry. Expiry is the only invalidation path.
func (c *ResponseCache) Get(key string) (dataprovider.Series, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return dataprovider.Series{}, false
	}
	if c.now().Sub(entry.fetchedAt) > entry.ttl {
		delete(c.entries, key)
		return dataprovider.Series{}, false
	}
	return entry.series, true
}

// Set stores a series under key, choosing the TTL by payload kind: a result
// with a real live quote uses the quote TTL, anything else the history TTL.
func (c *ResponseCache) Set(key string, series dataprovider.Series) {
	ttl := c.historyTTL
	if !series.Synthetic && series.Quote.Price > 0 {
		ttl = c.quoteTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		series:    series,
		fetchedAt: c.now(),
		ttl:       ttl,
	}
}

// Len reports the number of live entries, counting expired ones out.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if c.now().Sub(e.fetchedAt) <= e.ttl {
			n++
		}
	}
	return n
}
