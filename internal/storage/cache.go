package storage

import (
	"os"
	"sync"
	"time"
)

// cacheEntry holds a decoded document alongside the mtime it was parsed at.
type cacheEntry struct {
	mtime time.Time
	value any
}

// indexedCache is a read-through cache over parsed YAML/JSON documents,
// keyed by resolved path and invalidated whenever the file's mtime advances
// (which atomic rename-based writes always do). Grounded on
// original_source/storage/indexed_cache.py. Each Store owns one cache
// (created in New); it is not shared across Stores.
type indexedCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newIndexedCache() *indexedCache {
	return &indexedCache{entries: make(map[string]cacheEntry)}
}

// getOrLoad returns the cached value for path if its mtime matches the
// cached entry; otherwise it calls load, caches, and returns the result.
// load must return a freshly allocated value; callers must not mutate a
// value obtained from the cache in place.
func (c *indexedCache) getOrLoad(path string, load func() (any, error)) (any, error) {
	info, statErr := os.Stat(path)

	if statErr == nil {
		c.mu.RLock()
		entry, ok := c.entries[path]
		c.mu.RUnlock()
		if ok && entry.mtime.Equal(info.ModTime()) {
			return entry.value, nil
		}
	}

	value, err := load()
	if err != nil {
		return nil, err
	}

	if statErr == nil {
		c.mu.Lock()
		c.entries[path] = cacheEntry{mtime: info.ModTime(), value: value}
		c.mu.Unlock()
	}
	return value, nil
}

// invalidate drops any cached entry for path, called after a write.
func (c *indexedCache) invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}
