package fetchkit

import (
	"sync"
	"time"
)

const (
	// DefaultCacheTTL is applied when Set is called with a non-positive TTL.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultMaxEntries bounds the cache before insertion-order eviction kicks in.
	DefaultMaxEntries = 100
	// DefaultCleanupInterval is how often the janitor sweeps expired entries.
	DefaultCleanupInterval = time.Minute
)

type cacheEntry struct {
	value     interface{}
	createdAt time.Time
	expiresAt time.Time
}

// TTLCache is a bounded key/value store with per-entry expiry. Expiry is lazy:
// entries are checked on access and by the periodic janitor sweep, never by a
// per-entry timer. When the cache is full the oldest entry by insertion order
// is evicted; a Set on an existing key refreshes its value and expiry but does
// not reorder it. Safe for concurrent use.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	// order holds keys oldest-first; eviction pops the front.
	order []string

	defaultTTL time.Duration
	maxEntries int

	metrics *MetricsCollector
	logger  Logger

	stopJanitor chan struct{}
	stopOnce    sync.Once
}

// CacheOption configures a TTLCache.
type CacheOption func(*TTLCache)

// WithDefaultTTL sets the TTL applied when Set receives a non-positive TTL.
func WithDefaultTTL(d time.Duration) CacheOption {
	return func(c *TTLCache) {
		c.defaultTTL = d
	}
}

// WithMaxEntries sets the maximum number of entries held before eviction.
func WithMaxEntries(n int) CacheOption {
	return func(c *TTLCache) {
		c.maxEntries = n
	}
}

// WithCleanupInterval sets how often the janitor sweeps expired entries.
// A non-positive interval disables the janitor; callers then own calling
// Cleanup themselves.
func WithCleanupInterval(d time.Duration) CacheOption {
	return func(c *TTLCache) {
		if d > 0 {
			c.startJanitor(d)
		}
	}
}

// WithCacheMetrics wires a metrics collector into the cache.
func WithCacheMetrics(mc *MetricsCollector) CacheOption {
	return func(c *TTLCache) {
		c.metrics = mc
	}
}

// WithCacheLogger sets a logger for cache events.
func WithCacheLogger(logger Logger) CacheOption {
	return func(c *TTLCache) {
		c.logger = logger
	}
}

// NewTTLCache creates a cache with the default TTL (5m), bound (100 entries)
// and no janitor. Use WithCleanupInterval to start the background sweep and
// Close to stop it.
func NewTTLCache(options ...CacheOption) *TTLCache {
	c := &TTLCache{
		entries:     make(map[string]*cacheEntry),
		defaultTTL:  DefaultCacheTTL,
		maxEntries:  DefaultMaxEntries,
		stopJanitor: make(chan struct{}),
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// Set stores value under key with the given TTL (non-positive means the
// default). At capacity the oldest inserted entry is evicted first.
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		// Refresh in place; insertion order is preserved.
		existing.value = value
		existing.createdAt = now
		existing.expiresAt = now.Add(ttl)
		return
	}

	if len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		if c.metrics != nil {
			c.metrics.RecordCacheEviction("default")
		}
		if c.logger != nil {
			c.logger.Debug("Cache entry evicted", "key", oldest)
		}
	}

	c.entries[key] = &cacheEntry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	c.order = append(c.order, key)

	if c.metrics != nil {
		c.metrics.RecordCacheSize("default", len(c.entries))
	}
}

// Get returns the value for key if present and not expired. An expired entry
// is removed as a side effect.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.removeLocked(key)
		return nil, false
	}

	return entry.value, true
}

// Has reports whether key holds a live entry, with the same expiry side
// effect as Get.
func (c *TTLCache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes the entry for key, reporting whether anything was removed.
func (c *TTLCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	c.removeLocked(key)
	return true
}

// Clear removes all entries unconditionally.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]

	if c.metrics != nil {
		c.metrics.RecordCacheSize("default", 0)
	}
}

// Cleanup removes every expired entry. The janitor calls this periodically to
// bound memory from keys that are set but never read again.
func (c *TTLCache) Cleanup() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			c.removeLocked(key)
		}
	}
}

// Len returns the number of entries currently held, including any that have
// expired but not yet been swept.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the janitor goroutine, if one was started. Safe to call more
// than once.
func (c *TTLCache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopJanitor)
	})
}

func (c *TTLCache) removeLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if c.metrics != nil {
		c.metrics.RecordCacheSize("default", len(c.entries))
	}
}

func (c *TTLCache) startJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Cleanup()
			case <-c.stopJanitor:
				return
			}
		}
	}()
}
