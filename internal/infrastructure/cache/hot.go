package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Constants for hot cache configuration
const (
	defaultHotTTL          = 30 * time.Minute
	defaultCleanupInterval = 30 * time.Second
)

// hotEntry wraps a cached raw JSON value with its expiration time
type hotEntry struct {
	value     []byte
	expiresAt time.Time
}

// isExpired checks if the entry has expired
func (e *hotEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// HotCache is the in-process accelerator in front of the key-value
// store. It holds raw JSON payloads keyed by the full store key and
// serves repeated reads without a network round trip. Entries expire
// on their own TTL; a background goroutine sweeps expired entries.
type HotCache struct {
	entries sync.Map // map[string]*hotEntry
	ttl     time.Duration
	logger  *zap.Logger
	stopCh  chan struct{}
	stopped int32

	// Stats for monitoring
	hits   int64
	misses int64
}

// HotCacheOption is a functional option for configuring the hot cache
type HotCacheOption func(*HotCache)

// WithHotTTL sets the per-entry TTL.
func WithHotTTL(ttl time.Duration) HotCacheOption {
	return func(c *HotCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithHotLogger sets the logger for the hot cache
func WithHotLogger(logger *zap.Logger) HotCacheOption {
	return func(c *HotCache) {
		c.logger = logger
	}
}

// NewHotCache creates a hot cache and starts its cleanup goroutine.
func NewHotCache(opts ...HotCacheOption) *HotCache {
	cache := &HotCache{
		ttl:    defaultHotTTL,
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	go cache.cleanupExpired()

	return cache
}

// Get returns a copy of the cached raw payload for key, or nil on a
// miss. Callers may mutate the returned slice freely.
func (c *HotCache) Get(key string) []byte {
	if value, ok := c.entries.Load(key); ok {
		entry := value.(*hotEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			return append([]byte(nil), entry.value...)
		}
		// Expired, remove from cache
		c.entries.Delete(key)
	}

	atomic.AddInt64(&c.misses, 1)
	return nil
}

// Set stores a copy of the raw payload for key with the configured TTL.
func (c *HotCache) Set(key string, value []byte) {
	if value == nil {
		return
	}
	c.entries.Store(key, &hotEntry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes key from the hot cache.
func (c *HotCache) Delete(key string) {
	c.entries.Delete(key)
}

// Stats returns cumulative hit and miss counts.
func (c *HotCache) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (c *HotCache) Stop() {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
}

// cleanupExpired periodically removes expired entries
func (c *HotCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			removed := 0
			c.entries.Range(func(key, value any) bool {
				if value.(*hotEntry).isExpired() {
					c.entries.Delete(key)
					removed++
				}
				return true
			})
			if removed > 0 {
				c.logger.Debug("swept expired hot cache entries", zap.Int("removed", removed))
			}
		}
	}
}
