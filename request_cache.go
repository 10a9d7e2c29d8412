package fetchkit

import (
	"context"
	"fmt"
	"time"
)

// RequestCache composes the TTL cache and the deduplicator around arbitrary
// fetch closures: a hit short-circuits, a miss routes the fetch through the
// deduplicator and stores the result on success. Errors are never cached, so
// a failed key retries from scratch on the next call.
type RequestCache struct {
	cache   *TTLCache
	dedup   *Deduplicator
	metrics *MetricsCollector
	logger  Logger
}

// RequestCacheOption configures a RequestCache.
type RequestCacheOption func(*RequestCache)

// WithRequestCacheStore injects the TTLCache backing the façade.
func WithRequestCacheStore(cache *TTLCache) RequestCacheOption {
	return func(rc *RequestCache) {
		rc.cache = cache
	}
}

// WithRequestCacheDeduplicator injects the deduplicator used on cache misses.
func WithRequestCacheDeduplicator(dedup *Deduplicator) RequestCacheOption {
	return func(rc *RequestCache) {
		rc.dedup = dedup
	}
}

// WithRequestCacheMetrics wires a metrics collector into the façade.
func WithRequestCacheMetrics(mc *MetricsCollector) RequestCacheOption {
	return func(rc *RequestCache) {
		rc.metrics = mc
	}
}

// WithRequestCacheLogger sets a logger for façade events.
func WithRequestCacheLogger(logger Logger) RequestCacheOption {
	return func(rc *RequestCache) {
		rc.logger = logger
	}
}

// NewRequestCache creates a façade with its own cache and deduplicator unless
// they are injected.
func NewRequestCache(options ...RequestCacheOption) *RequestCache {
	rc := &RequestCache{}
	for _, option := range options {
		option(rc)
	}
	if rc.cache == nil {
		rc.cache = NewTTLCache(WithCacheMetrics(rc.metrics))
	}
	if rc.dedup == nil {
		rc.dedup = NewDeduplicator(WithDeduplicatorMetrics(rc.metrics))
	}
	return rc
}

// Cache exposes the backing TTLCache for invalidation by callers.
func (rc *RequestCache) Cache() *TTLCache {
	return rc.cache
}

type callOptions struct {
	ttl       time.Duration
	skipCache bool
	noDedup   bool
}

// CallOption overrides behavior for a single Do call.
type CallOption func(*callOptions)

// WithTTL sets the cache TTL for this call's result.
func WithTTL(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.ttl = d
	}
}

// WithSkipCache bypasses the cache for this call: no lookup, no store.
func WithSkipCache() CallOption {
	return func(o *callOptions) {
		o.skipCache = true
	}
}

// WithoutDeduplication runs the fetch directly instead of joining an
// in-flight invocation for the same key.
func WithoutDeduplication() CallOption {
	return func(o *callOptions) {
		o.noDedup = true
	}
}

// Do returns the cached value for key when present, otherwise runs fn
// (through the deduplicator unless disabled) and caches a successful result.
func (rc *RequestCache) Do(ctx context.Context, key string, fn RequestFunc, options ...CallOption) (interface{}, error) {
	opts := callOptions{}
	for _, option := range options {
		option(&opts)
	}

	if !opts.skipCache {
		if value, ok := rc.cache.Get(key); ok {
			if rc.metrics != nil {
				rc.metrics.RecordCacheHit(key)
			}
			if rc.logger != nil {
				rc.logger.Debug("Cache hit", "key", key)
			}
			return value, nil
		}
		if rc.metrics != nil {
			rc.metrics.RecordCacheMiss(key)
		}
	}

	fetch := func() (interface{}, error) {
		value, err := fn()
		if err != nil {
			return nil, err
		}
		if !opts.skipCache {
			rc.cache.Set(key, value, opts.ttl)
		}
		return value, nil
	}

	if opts.noDedup {
		return fetch()
	}
	return rc.dedup.Do(ctx, key, fetch)
}

// CachedAs runs a typed fetch through rc and asserts the result to T. Joined
// and cached values carry the type the populating fetch produced.
func CachedAs[T any](ctx context.Context, rc *RequestCache, key string, fn func() (T, error), options ...CallOption) (T, error) {
	value, err := rc.Do(ctx, key, func() (interface{}, error) {
		return fn()
	}, options...)
	if err != nil {
		var zero T
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("fetchkit: cached value for %q is %T, not %T", key, value, zero)
	}
	return typed, nil
}
