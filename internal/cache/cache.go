// internal/cache/cache.go
package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/coocood/freecache"
)

// Entity types cached by the service.
const (
	EntitySlotView = "slot_view"
	EntityRoster   = "roster"
)

// Cache is an explicit, injected cache over freecache with a TTL per
// entity type and invalidation hooks. No module-level singleton: each
// caller gets the instance it was constructed with, so tests never
// leak state into each other.
type Cache struct {
	store      *freecache.Cache
	defaultTTL time.Duration

	mu    sync.RWMutex
	ttls  map[string]time.Duration
	hooks []func(entityType, key string)
}

// New creates a cache with the given capacity in megabytes.
func New(sizeMB int, defaultTTL time.Duration) *Cache {
	if sizeMB <= 0 {
		sizeMB = 1
	}
	return &Cache{
		store:      freecache.NewCache(sizeMB * 1024 * 1024),
		defaultTTL: defaultTTL,
		ttls:       make(map[string]time.Duration),
	}
}

// SetTTL configures the TTL for one entity type.
func (c *Cache) SetTTL(entityType string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttls[entityType] = ttl
}

// OnInvalidate registers a hook called on every explicit invalidation.
func (c *Cache) OnInvalidate(fn func(entityType, key string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

func (c *Cache) ttlFor(entityType string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ttl, ok := c.ttls[entityType]; ok {
		return ttl
	}
	return c.defaultTTL
}

func cacheKey(entityType, key string) []byte {
	return []byte(entityType + ":" + key)
}

// Set stores the JSON encoding of val under (entityType, key).
func (c *Cache) Set(entityType, key string, val interface{}) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	ttl := int(c.ttlFor(entityType) / time.Second)
	return c.store.Set(cacheKey(entityType, key), data, ttl)
}

// Get decodes the cached value into dest. Returns false on miss.
func (c *Cache) Get(entityType, key string, dest interface{}) bool {
	data, err := c.store.Get(cacheKey(entityType, key))
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false
	}
	return true
}

// Invalidate drops the entry and fires the registered hooks.
func (c *Cache) Invalidate(entityType, key string) {
	c.store.Del(cacheKey(entityType, key))

	c.mu.RLock()
	hooks := make([]func(string, string), len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.RUnlock()

	for _, fn := range hooks {
		fn(entityType, key)
	}
}
