package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_EvictsOldest(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry should be evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("x", "1")
	c.Set("y", "2")
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, c.CleanExpired())
	assert.Zero(t, c.Size())
}

func TestLRUCache_DeletePrefixAndClear(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("recurring|2025-06", 1)
	c.Set("recurring|2025-07", 2)
	c.Set("paycheck|2025-06", 3)

	assert.Equal(t, 2, c.DeletePrefix("recurring|"))
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Zero(t, c.Size())

	hits, misses := c.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
}

func TestManager_CleanNow(t *testing.T) {
	c := NewLRUCache[int](10, time.Nanosecond)
	c.Set("a", 1)
	time.Sleep(time.Millisecond)

	m := NewManager(nil)
	m.Register(c)
	assert.Equal(t, 1, m.CleanNow())

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
