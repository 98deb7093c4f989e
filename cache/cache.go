// Package cache provides a memoized-fetch-with-expiry primitive backed by a
// pluggable Store. Entries are persisted as JSON
// {"cachedAtEpochSeconds": ..., "value": ...} under keys namespaced
// "cache:<logical-name>".
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// KeyPrefix namespaces every cache key in the Store.
const KeyPrefix = "cache:"

// Key returns the store key for a logical cache name.
func Key(name string) string {
	return KeyPrefix + name
}

// Entry is the persisted form of a cached value.
type Entry[T any] struct {
	CachedAtEpochSeconds int64 `json:"cachedAtEpochSeconds"`
	Value                T     `json:"value"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (e Entry[T]) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Unix()-e.CachedAtEpochSeconds < int64(ttl/time.Second)
}

// Loader fetches the value for a cache miss.
type Loader[T any] func(ctx context.Context) (T, error)

// Cache memoizes loader results in a Store.
// Concurrent fetches for the same key share a single loader call.
type Cache[T any] struct {
	store  Store
	group  singleflight.Group
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock overrides the clock used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a Cache over store.
func New[T any](store Store, opts ...Option) *Cache[T] {
	o := options{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{
		store:  store,
		now:    o.now,
		logger: o.logger,
	}
}

// GetOrFetch returns the cached value for key when it is fresh; otherwise it
// invokes loader once, stores the result and returns it.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, loader Loader[T], ttl time.Duration) (T, error) {
	if entry, ok := c.Peek(ctx, key); ok && entry.Fresh(c.now(), ttl) {
		cacheRequests.WithLabelValues("hit").Inc()
		return entry.Value, nil
	}
	cacheRequests.WithLabelValues("miss").Inc()
	return c.fetch(ctx, key, key, loader)
}

// ReloadNow fetches and overwrites key regardless of freshness.
func (c *Cache[T]) ReloadNow(ctx context.Context, key string, loader Loader[T]) (T, error) {
	cacheRequests.WithLabelValues("reload").Inc()
	// Reloads never join a lazy fetch already in flight.
	return c.fetch(ctx, key+"#reload", key, loader)
}

// Peek returns the stored entry for key without fetching.
// Missing and unparseable entries are reported as absent.
func (c *Cache[T]) Peek(ctx context.Context, key string) (Entry[T], bool) {
	var entry Entry[T]

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return entry, false
	}

	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("discarding unparseable cache entry", "key", key, "error", err)
		return entry, false
	}
	return entry, true
}

// Invalidate removes key from the store.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

func (c *Cache[T]) fetch(ctx context.Context, flight, key string, loader Loader[T]) (T, error) {
	// The shared fetch outlives any single waiter.
	fetchCtx := context.WithoutCancel(ctx)

	ch := c.group.DoChan(flight, func() (interface{}, error) {
		value, err := loader(fetchCtx)
		if err != nil {
			cacheRequests.WithLabelValues("error").Inc()
			return nil, err
		}
		c.put(fetchCtx, key, value)
		return value, nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		value, _ := res.Val.(T)
		return value, nil
	}
}

func (c *Cache[T]) put(ctx context.Context, key string, value T) {
	data, err := json.Marshal(Entry[T]{
		CachedAtEpochSeconds: c.now().Unix(),
		Value:                value,
	})
	if err != nil {
		c.logger.Warn("cache entry not stored", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
