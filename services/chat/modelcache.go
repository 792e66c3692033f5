package chat

import (
	"container/list"
	"sync"
	"time"
)

// DefaultModelCacheTTL is the freshness window of a cached model list.
const DefaultModelCacheTTL = 6 * time.Hour

// modelEntry represents a single cache entry with TTL
type modelEntry struct {
	models    []string
	fetchedAt time.Time
	element   *list.Element // For LRU tracking
}

// ModelCache is an in-memory LRU cache with TTL for model lists, keyed by
// credential id. Entries are replaced whole on write.
type ModelCache struct {
	mu      sync.Mutex
	entries map[string]*modelEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	hits    uint64
	misses  uint64
}

// NewModelCache creates a ModelCache. maxSize <= 0 means unbounded.
func NewModelCache(maxSize int, ttl time.Duration) *ModelCache {
	if ttl <= 0 {
		ttl = DefaultModelCacheTTL
	}
	return &ModelCache{
		entries: make(map[string]*modelEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a copy of the cached list for key if it is still fresh.
func (c *ModelCache) Get(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists || c.expired(entry) {
		c.misses++
		if exists {
			c.removeEntry(key)
		}
		return nil, false
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++
	return append([]string(nil), entry.models...), true
}

// Set stores models under key, replacing any previous entry.
func (c *ModelCache) Set(key string, models []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := append([]string(nil), models...)
	if entry, exists := c.entries[key]; exists {
		c.entries[key] = &modelEntry{models: stored, fetchedAt: c.now(), element: entry.element}
		c.lruList.MoveToFront(entry.element)
		return
	}

	if c.maxSize > 0 && c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}
	c.entries[key] = &modelEntry{
		models:    stored,
		fetchedAt: c.now(),
		element:   c.lruList.PushFront(key),
	}
}

// Invalidate removes a specific cache entry
func (c *ModelCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(key)
}

// Clear removes all entries from the cache
func (c *ModelCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*modelEntry)
	c.lruList.Init()
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"maxSize"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

// Stats returns cache statistics
func (c *ModelCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rate float64
	if total := c.hits + c.misses; total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: rate,
	}
}

// CleanupExpired removes all expired entries and returns how many were removed.
func (c *ModelCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired []string
	for key, entry := range c.entries {
		if c.expired(entry) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		c.removeEntry(key)
	}
	return len(expired)
}

// StartCleanupWorker periodically drops expired entries until stopCh closes.
func (c *ModelCache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-stopCh:
			return
		}
	}
}

func (c *ModelCache) expired(e *modelEntry) bool {
	return c.now().Sub(e.fetchedAt) > c.ttl
}

// removeEntry must be called with lock held
func (c *ModelCache) removeEntry(key string) {
	if entry, exists := c.entries[key]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, key)
	}
}

// evictLRU must be called with lock held
func (c *ModelCache) evictLRU() {
	back := c.lruList.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	c.lruList.Remove(back)
	delete(c.entries, key)
}
