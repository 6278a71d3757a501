package libpack_cache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Store is the two level cache the dispatcher reads and writes: an outer
// namespace (one per compiled template) holding inner request keys.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(namespace, key string) (any, bool)
	Set(namespace, key string, value any) error
	Delete(namespace, key string)
	Purge(namespace string)
}

var _ Store = (*Cache)(nil)

type CacheEntry struct {
	ExpiresAt time.Time
	Value     any
}

func (e CacheEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now)
}

const shardCount = 256 // Must be power of 2

type shard struct {
	namespaces map[string]map[string]CacheEntry
	sync.RWMutex
}

// Cache is the in-memory Store. Entries are spread over shards by namespace,
// so a whole namespace can be purged under a single lock.
type Cache struct {
	stop      chan struct{}
	shards    [shardCount]*shard
	globalTTL time.Duration
	stopOnce  sync.Once
}

func (c *Cache) getShard(namespace string) *shard {
	return c.shards[xxhash.Sum64String(namespace)&(shardCount-1)]
}

// New returns an in-memory store. A zero globalTTL keeps entries until they
// are overwritten or deleted; a positive one expires them and starts a
// background sweeper that Stop terminates.
func New(globalTTL time.Duration) *Cache {
	cache := &Cache{
		globalTTL: globalTTL,
		stop:      make(chan struct{}),
	}

	for i := 0; i < shardCount; i++ {
		cache.shards[i] = &shard{
			namespaces: make(map[string]map[string]CacheEntry),
		}
	}

	if globalTTL > 0 {
		go cache.cleanupRoutine(globalTTL)
	}
	return cache
}

func (c *Cache) cleanupRoutine(globalTTL time.Duration) {
	ticker := time.NewTicker(globalTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanExpiredEntries()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Cache) Set(namespace, key string, value any) error {
	entry := CacheEntry{Value: value}
	if c.globalTTL > 0 {
		entry.ExpiresAt = time.Now().Add(c.globalTTL)
	}

	shard := c.getShard(namespace)
	shard.Lock()
	defer shard.Unlock()

	entries, ok := shard.namespaces[namespace]
	if !ok {
		entries = make(map[string]CacheEntry)
		shard.namespaces[namespace] = entries
	}
	entries[key] = entry
	return nil
}

func (c *Cache) Get(namespace, key string) (any, bool) {
	shard := c.getShard(namespace)
	shard.RLock()
	entry, ok := shard.namespaces[namespace][key]
	shard.RUnlock()
	if !ok {
		return nil, false
	}

	if entry.expired(time.Now()) {
		c.deleteExpired(shard, namespace, key)
		return nil, false
	}
	return entry.Value, true
}

// deleteExpired removes the entry only if it is still expired once the write
// lock is held, so a concurrent Set survives.
func (c *Cache) deleteExpired(shard *shard, namespace, key string) {
	shard.Lock()
	defer shard.Unlock()

	entries, ok := shard.namespaces[namespace]
	if !ok {
		return
	}
	if entry, ok := entries[key]; ok && entry.expired(time.Now()) {
		delete(entries, key)
		if len(entries) == 0 {
			delete(shard.namespaces, namespace)
		}
	}
}

func (c *Cache) Delete(namespace, key string) {
	shard := c.getShard(namespace)
	shard.Lock()
	defer shard.Unlock()

	entries, ok := shard.namespaces[namespace]
	if !ok {
		return
	}
	delete(entries, key)
	if len(entries) == 0 {
		delete(shard.namespaces, namespace)
	}
}

// Purge drops every entry of a namespace.
func (c *Cache) Purge(namespace string) {
	shard := c.getShard(namespace)
	shard.Lock()
	delete(shard.namespaces, namespace)
	shard.Unlock()
}

// Len counts live entries in a namespace.
func (c *Cache) Len(namespace string) int {
	shard := c.getShard(namespace)
	shard.RLock()
	defer shard.RUnlock()

	now := time.Now()
	n := 0
	for _, entry := range shard.namespaces[namespace] {
		if !entry.expired(now) {
			n++
		}
	}
	return n
}

func (c *Cache) CleanExpiredEntries() {
	now := time.Now()
	for _, shard := range c.shards {
		shard.Lock()
		for namespace, entries := range shard.namespaces {
			for key, entry := range entries {
				if entry.expired(now) {
					delete(entries, key)
				}
			}
			if len(entries) == 0 {
				delete(shard.namespaces, namespace)
			}
		}
		shard.Unlock()
	}
}
