package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DownloadCache bounds a staging directory's disk footprint to a fixed
// number of entries by evicting the least recently used cached file
// whenever a new one would exceed capacity. The index lives in memory
// (github.com/hashicorp/golang-lru/v2); the bytes live under dir as
// plain files named by cache key.
type DownloadCache struct {
	dir string
	mu  sync.Mutex
	lru *lru.Cache[string, int64] // key -> size in bytes
}

// NewDownloadCache creates a cache rooted at dir, holding at most
// capacity entries. dir is created if it does not exist.
func NewDownloadCache(dir string, capacity int) (*DownloadCache, error) {
	if capacity < 1 {
		capacity = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("download cache: create %s: %w", dir, err)
	}

	c := &DownloadCache{dir: dir}
	evicted, err := lru.NewWithEvict(capacity, func(key string, _ int64) {
		_ = os.Remove(c.path(key))
	})
	if err != nil {
		return nil, fmt.Errorf("download cache: create lru: %w", err)
	}
	c.lru = evicted
	return c, nil
}

func (c *DownloadCache) path(key string) string {
	return filepath.Join(c.dir, key)
}

// Path returns the on-disk path a cache entry for key would occupy,
// whether or not it currently exists.
func (c *DownloadCache) Path(key string) string {
	return c.path(key)
}

// Put records that key now occupies size bytes at Path(key), evicting
// the least recently used entry if capacity is exceeded.
func (c *DownloadCache) Put(key string, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, size)
}

// Get reports whether key is present and, if so, touches it as most
// recently used.
func (c *DownloadCache) Get(key string) (size int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key)
}

// Remove evicts key explicitly (e.g. after its content proved stale),
// removing the backing file via the same eviction callback Put relies on.
func (c *DownloadCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Len returns the number of entries currently tracked.
func (c *DownloadCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
