package reviewqueue

import (
	"sync"
	"time"

	"github.com/itbfess/ITBFess/internal/pkg/cache"
)

// ListingTTL bounds how stale an admin listing may be served. The cache is a
// read-through performance layer only, never a source of truth.
const ListingTTL = 30 * time.Second

// Cache is the injected get/set/TTL capability behind the listing cache, so
// deployments can swap the shared Redis cache for an in-process or no-op one
// without code changes.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
	Delete(key string)
}

// RedisCache backs the listing cache with the shared Redis client.
type RedisCache struct{}

func NewRedisCache() *RedisCache {
	return &RedisCache{}
}

func (c *RedisCache) Get(key string) (string, bool) {
	val, err := cache.Get(key)
	if err != nil {
		return "", false
	}
	return val, true
}

func (c *RedisCache) Set(key, value string, ttl time.Duration) {
	_ = cache.Set(key, value, ttl)
}

func (c *RedisCache) Delete(key string) {
	_ = cache.Delete(key)
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is a process-local cache with lazy TTL purging. Used in tests
// and single-instance deployments.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purge()
	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	return entry.value, true
}

func (c *MemoryCache) Set(key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// purge drops expired entries. Called lazily on each read.
func (c *MemoryCache) purge() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
