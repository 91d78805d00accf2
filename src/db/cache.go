package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spendwatch-server/src/anomaly"
	"spendwatch-server/src/metrics"
	"spendwatch-server/src/models"

	"github.com/dgraph-io/ristretto/v2"
)

// MerchantHistoryCache puts a TTL cache in front of the merchant history
// query, the one query anomaly detection repeats per merchant. Every other
// query goes straight to the wrapped TransactionQuery.
//
// Entries are keyed on `before` rounded up to Granularity, and results are
// filtered back down to the exact cutoff, so a cached answer never includes a
// transaction the live query would have excluded.
type MerchantHistoryCache struct {
	anomaly.TransactionQuery

	cache       *ristretto.Cache[string, []models.Transaction]
	ttl         time.Duration
	granularity time.Duration

	// Storing cache keys with their expiry so the whole cache can be cleared
	// from the admin API. Expired keys are swept on write, at most once per ttl.
	keys struct {
		sync.RWMutex
		m         map[string]time.Time
		nextSweep time.Time
	}
}

// DefaultGranularity is how far apart two cutoffs may be and still share an
// entry.
const DefaultGranularity = time.Hour

func NewMerchantHistoryCache(next anomaly.TransactionQuery, ttl, granularity time.Duration) (*MerchantHistoryCache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []models.Transaction]{
		NumCounters: 100000,  // number of keys to track frequency of
		MaxCost:     1 << 20, // roughly the number of cached transactions
		BufferItems: 64,      // number of keys per Get buffer
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	c := &MerchantHistoryCache{
		TransactionQuery: next,
		cache:            cache,
		ttl:              ttl,
		granularity:      granularity,
	}
	c.keys.m = make(map[string]time.Time)
	return c, nil
}

func (c *MerchantHistoryCache) bucket(before time.Time) time.Time {
	b := before.Truncate(c.granularity)
	if b.Before(before) {
		b = b.Add(c.granularity)
	}
	return b
}

func (c *MerchantHistoryCache) MerchantHistory(ctx context.Context, spaceID, merchantKey string, before time.Time) ([]models.Transaction, error) {
	bucket := c.bucket(before)
	cacheKey := fmt.Sprintf("merchant_history:%s:%s:%d", spaceID, merchantKey, bucket.Unix())

	history, ok := c.cache.Get(cacheKey)
	if ok {
		metrics.MerchantCacheHitsTotal.Inc()
	} else {
		metrics.MerchantCacheMissesTotal.Inc()
		fetched, err := c.TransactionQuery.MerchantHistory(ctx, spaceID, merchantKey, bucket)
		if err != nil {
			return nil, err
		}
		c.set(cacheKey, fetched)
		history = fetched
	}

	out := make([]models.Transaction, 0, len(history))
	for _, t := range history {
		if t.Date.Before(before) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *MerchantHistoryCache) set(cacheKey string, history []models.Transaction) {
	now := time.Now()
	c.keys.Lock()
	if !now.Before(c.keys.nextSweep) {
		for key, expiry := range c.keys.m {
			if !now.Before(expiry) {
				delete(c.keys.m, key)
			}
		}
		c.keys.nextSweep = now.Add(c.ttl)
	}
	c.keys.m[cacheKey] = now.Add(c.ttl)
	c.keys.Unlock()
	c.cache.SetWithTTL(cacheKey, history, int64(len(history))+1, c.ttl)
	c.cache.Wait()
}

// Clear drops every cached entry and returns how many keys were tracked.
// Keys already expired but not yet swept are included in the count.
func (c *MerchantHistoryCache) Clear() int {
	c.keys.Lock()
	defer c.keys.Unlock()
	n := len(c.keys.m)
	for key := range c.keys.m {
		c.cache.Del(key)
	}
	c.keys.m = make(map[string]time.Time)
	return n
}

func (c *MerchantHistoryCache) trackedKeys() int {
	c.keys.RLock()
	defer c.keys.RUnlock()
	return len(c.keys.m)
}

func (c *MerchantHistoryCache) Close() {
	c.cache.Close()
}
