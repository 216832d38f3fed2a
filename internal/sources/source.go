// Package sources adapts the external telemetry and weather providers to a
// common fetch-by-key capability.
package sources

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/checkmateLL/F1LiveDashboard-New/internal/metrics"
)

// DataSource fetches a value by key. Implementations apply their own timeout
// and return *SourceError on failure.
type DataSource[K comparable, V any] interface {
	Fetch(ctx context.Context, key K) (V, error)
	Name() string
}

// Cached wraps a DataSource with an expiring in-memory LRU. Only successful
// fetches are cached, so a cached value is never older than the TTL.
type Cached[K comparable, V any] struct {
	source DataSource[K, V]
	cache  *expirable.LRU[K, V]
}

func NewCached[K comparable, V any](source DataSource[K, V], size int, ttl time.Duration) *Cached[K, V] {
	if size < 1 {
		size = 1
	}

	return &Cached[K, V]{
		source: source,
		cache:  expirable.NewLRU[K, V](size, nil, ttl),
	}
}

func (c *Cached[K, V]) Name() string {
	return c.source.Name()
}

func (c *Cached[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	if value, ok := c.cache.Get(key); ok {
		metrics.SourceCacheHits.WithLabelValues(c.source.Name(), "memory").Inc()
		return value, nil
	}

	value, err := c.source.Fetch(ctx, key)

	if err != nil {
		return value, err
	}

	c.cache.Add(key, value)

	return value, nil
}

// Purge drops every cached value.
func (c *Cached[K, V]) Purge() {
	c.cache.Purge()
}

func (c *Cached[K, V]) Len() int {
	return c.cache.Len()
}

func observe(source string, started time.Time, err error) {
	outcome := "ok"

	if err != nil {
		outcome = KindOf(err).String()
	}

	metrics.SourceFetches.WithLabelValues(source, outcome).Inc()
	metrics.SourceFetchDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}
