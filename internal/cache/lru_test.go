package cache

import (
	"testing"
	"time"
)

// TestLRUCachePerformance verifies basic operation cost stays small
func TestLRUCachePerformance(t *testing.T) {
	c := NewLRUCache[[]int](3, 100*time.Millisecond)

	start := time.Now()
	for i := 0; i < 1000; i++ {
		key := "test-key"
		c.Set(key, []int{i})

		if _, found := c.Get(key); !found {
			t.Errorf("Cache miss on iteration %d", i)
		}
	}
	duration := time.Since(start)

	t.Logf("1000 cache operations took %v", duration)

	if duration > 100*time.Millisecond {
		t.Errorf("Cache operations too slow: %v", duration)
	}
}

// TestLRUCacheEviction tests size-based eviction
func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Set("key4", "value4") // Should evict key1

	if _, found := c.Get("key1"); found {
		t.Error("key1 should have been evicted")
	}
	for _, k := range []string{"key2", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
}

func TestLRUCacheRecentlyUsedSurvives(t *testing.T) {
	c := NewLRUCache[string](2, 0)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3") // b is least recently used

	if _, found := c.Get("b"); found {
		t.Error("b should have been evicted")
	}
	if v, found := c.Get("a"); !found || v != "1" {
		t.Errorf("a = %q, %v; want 1, true", v, found)
	}
}

// TestLRUCacheTTLExpiration tests time-based expiration
func TestLRUCacheTTLExpiration(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](100, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("key1", "value1")

	if _, found := c.Get("key1"); !found {
		t.Error("key1 should exist immediately")
	}

	now = now.Add(61 * time.Second)

	if _, found := c.Get("key1"); found {
		t.Error("key1 should have expired")
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0 after expired read", c.Size())
	}
}

func TestLRUCacheZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, 0)
	c.now = func() time.Time { return now }

	c.Set("key", "value")
	now = now.Add(365 * 24 * time.Hour)

	if _, found := c.Get("key"); !found {
		t.Error("entry without TTL should never expire")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Errorf("CleanExpired() = %d, want 0", n)
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }

	c.Set("old1", 1)
	c.Set("old2", 2)
	now = now.Add(2 * time.Second)
	c.Set("fresh", 3)

	if n := c.CleanExpired(); n != 2 {
		t.Errorf("CleanExpired() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache[int](10, 0)
	c.Set("k", 1)
	c.Delete("k")
	c.Delete("missing")

	if _, found := c.Get("k"); found {
		t.Error("k should be gone after Delete")
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	now = now.Add(time.Minute)

	m := NewManager()
	m.Register(c)
	if n := m.CleanNow(); n != 1 {
		t.Errorf("CleanNow() = %d, want 1", n)
	}

	m.StartCleanup(10 * time.Millisecond)
	m.Stop()
	m.Stop() // second stop is a no-op
}
