package libpack_cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/goccy/go-json"
)

const namespaceSeparator = "\x1f"

// BigStore is a Store over allegro/bigcache. Values are kept JSON encoded,
// so a Get returns generic JSON data (maps, slices, float64 numbers) rather
// than the exact value that was Set. Several clients can share one BigStore.
type BigStore struct {
	cache *bigcache.BigCache
}

const defaultBigStoreTTL = 24 * time.Hour

// NewBigStore evicts entries after ttl; a non-positive ttl means one day.
func NewBigStore(ctx context.Context, ttl time.Duration) (*BigStore, error) {
	if ttl <= 0 {
		ttl = defaultBigStoreTTL
	}
	config := bigcache.DefaultConfig(ttl)
	config.Shards = 64
	config.MaxEntriesInWindow = 10000
	config.MaxEntrySize = 512
	config.Verbose = false

	bc, err := bigcache.New(ctx, config)
	if err != nil {
		return nil, err
	}
	return &BigStore{cache: bc}, nil
}

func storeKey(namespace, key string) string {
	return namespace + namespaceSeparator + key
}

func (s *BigStore) Get(namespace, key string) (any, bool) {
	raw, err := s.cache.Get(storeKey(namespace, key))
	if err != nil {
		return nil, false
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	return value, true
}

// Set fails for values that cannot be JSON encoded.
func (s *BigStore) Set(namespace, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("can't encode cache value: %w", err)
	}
	if err := s.cache.Set(storeKey(namespace, key), raw); err != nil {
		return fmt.Errorf("can't store cache value: %w", err)
	}
	return nil
}

func (s *BigStore) Delete(namespace, key string) {
	_ = s.cache.Delete(storeKey(namespace, key))
}

func (s *BigStore) Purge(namespace string) {
	prefix := namespace + namespaceSeparator
	var keys []string
	it := s.cache.Iterator()
	for it.SetNext() {
		entry, err := it.Value()
		if err != nil {
			continue
		}
		if strings.HasPrefix(entry.Key(), prefix) {
			keys = append(keys, entry.Key())
		}
	}
	for _, key := range keys {
		_ = s.cache.Delete(key)
	}
}

func (s *BigStore) Close() error {
	return s.cache.Close()
}
