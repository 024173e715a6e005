package resourcecache

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dgnsrekt/assetwatch/internal/types"
)

// BreakerCache wraps a ResourceCache so a slow or failing backend degrades
// to "treat as cache miss" instead of stalling the Interception Decider's
// single-writer event loop.
type BreakerCache struct {
	inner   types.ResourceCache
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerCache wraps inner with a circuit breaker named name.
func NewBreakerCache(inner types.ResourceCache, name string) *BreakerCache {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &BreakerCache{inner: inner, breaker: gobreaker.NewCircuitBreaker(st)}
}

// Get implements types.ResourceCache. A tripped breaker is reported as a
// cache miss rather than an error, so callers treat it as "no resource".
func (c *BreakerCache) Get(ctx context.Context, normalizedURL string) (types.CachedResource, bool, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		res, ok, innerErr := c.inner.Get(ctx, normalizedURL)
		if innerErr != nil {
			return nil, innerErr
		}
		return cacheLookup{res: res, ok: ok}, nil
	})
	if err != nil {
		return types.CachedResource{}, false, nil
	}
	lookup := result.(cacheLookup)
	return lookup.res, lookup.ok, nil
}

// Save implements types.ResourceCache.
func (c *BreakerCache) Save(ctx context.Context, res types.Resource) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.inner.Save(ctx, res)
	})
	return err
}

type cacheLookup struct {
	res types.CachedResource
	ok  bool
}
