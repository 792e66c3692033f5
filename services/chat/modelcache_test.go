package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(maxSize int) (*ModelCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewModelCache(maxSize, DefaultModelCacheTTL)
	cache.now = clock.now
	return cache, clock
}

func TestModelCache_GetSet(t *testing.T) {
	cache, _ := newTestCache(10)

	// Test cache miss
	models, ok := cache.Get("cred-1")
	assert.False(t, ok)
	assert.Nil(t, models)

	cache.Set("cred-1", []string{"a", "b"})
	models, ok = cache.Get("cred-1")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, models)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestModelCache_ReturnsCopies(t *testing.T) {
	cache, _ := newTestCache(10)

	in := []string{"a"}
	cache.Set("k", in)
	in[0] = "mutated"

	out, _ := cache.Get("k")
	out[0] = "also mutated"

	again, _ := cache.Get("k")
	assert.Equal(t, []string{"a"}, again)
}

func TestModelCache_SixHourFreshness(t *testing.T) {
	cache, clock := newTestCache(10)
	cache.Set("k", []string{"a"})

	clock.advance(6 * time.Hour)
	_, ok := cache.Get("k")
	assert.True(t, ok, "entry is fresh for the whole window")

	clock.advance(time.Second)
	_, ok = cache.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Stats().Size)
}

func TestModelCache_SetReplacesWholeEntry(t *testing.T) {
	cache, clock := newTestCache(10)
	cache.Set("k", []string{"a", "b"})

	clock.advance(5 * time.Hour)
	cache.Set("k", []string{"c"})

	clock.advance(5 * time.Hour)
	models, ok := cache.Get("k")
	assert.True(t, ok)
	assert.Equal(t, []string{"c"}, models)
}

func TestModelCache_LRUEviction(t *testing.T) {
	cache, _ := newTestCache(2)
	cache.Set("a", []string{"1"})
	cache.Set("b", []string{"2"})

	// Access a so b becomes least recently used
	cache.Get("a")
	cache.Set("c", []string{"3"})

	_, ok := cache.Get("b")
	assert.False(t, ok)
	_, ok = cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("c")
	assert.True(t, ok)
}

func TestModelCache_UnboundedWhenMaxSizeZero(t *testing.T) {
	cache, _ := newTestCache(0)
	for _, k := range []string{"a", "b", "c", "d"} {
		cache.Set(k, []string{k})
	}
	assert.Equal(t, 4, cache.Stats().Size)
}

func TestModelCache_InvalidateAndClear(t *testing.T) {
	cache, _ := newTestCache(10)
	cache.Set("a", []string{"1"})
	cache.Set("b", []string{"2"})

	cache.Invalidate("a")
	_, ok := cache.Get("a")
	assert.False(t, ok)

	cache.Clear()
	assert.Equal(t, 0, cache.Stats().Size)
}

func TestModelCache_CleanupExpired(t *testing.T) {
	cache, clock := newTestCache(10)
	cache.Set("old", []string{"1"})
	clock.advance(4 * time.Hour)
	cache.Set("new", []string{"2"})
	clock.advance(3 * time.Hour)

	assert.Equal(t, 1, cache.CleanupExpired())
	_, ok := cache.Get("new")
	assert.True(t, ok)
}

func TestModelCache_DefaultTTL(t *testing.T) {
	cache := NewModelCache(1, 0)
	assert.Equal(t, DefaultModelCacheTTL, cache.ttl)
}
