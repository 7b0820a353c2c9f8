package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache computes values with fn on a miss and remembers them.
// fn must be deterministic for a given key.
type ReadThroughCache[K ~string, V any] struct {
	cache CacheManager[K, V]
	fn    func(ctx context.Context, key K) V
	ttl   time.Duration
}

// NewReadThroughCache wraps cache with the loader fn.
func NewReadThroughCache[K ~string, V any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, key K) V,
	ttl time.Duration,
) *ReadThroughCache[K, V] {
	return &ReadThroughCache[K, V]{cache: cache, fn: fn, ttl: ttl}
}

// Get returns the cached value for key, computing it on a miss.
func (r *ReadThroughCache[K, V]) Get(ctx context.Context, key K) V {
	if value, ok := r.cache.Get(ctx, key); ok {
		return value
	}

	value := r.fn(ctx, key)
	r.cache.Set(ctx, key, value, r.ttl)
	return value
}
