package nexus

import (
	"testing"
	"time"
)

func TestResultCache_MissThenHit(t *testing.T) {
	c := NewResultCache(CacheConfig{Capacity: 10, TTL: time.Minute})
	now := time.Now()
	opts := SearchOptions{MaxResults: 10}

	if _, ok := c.Get("idx", "query", opts, now); ok {
		t.Fatalf("expected a miss on empty cache")
	}
	c.Set("idx", "query", opts, []SearchHit{{DocID: "a", Score: 1}}, now)
	hits, ok := c.Get("idx", "query", opts, now)
	if !ok || len(hits) != 1 || hits[0].DocID != "a" {
		t.Fatalf("expected a hit returning the stored value, got %+v ok=%v", hits, ok)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got %+v", stats)
	}
}

func TestResultCache_TTLExpiry(t *testing.T) {
	c := NewResultCache(CacheConfig{Capacity: 10, TTL: time.Millisecond})
	now := time.Now()
	opts := SearchOptions{MaxResults: 10}
	c.Set("idx", "q", opts, []SearchHit{{DocID: "a"}}, now)

	later := now.Add(time.Hour)
	if _, ok := c.Get("idx", "q", opts, later); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestResultCache_LRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewResultCache(CacheConfig{Capacity: 2, TTL: time.Hour, Policy: PolicyLRU})
	now := time.Now()
	opts := SearchOptions{MaxResults: 10}

	c.Set("idx", "a", opts, []SearchHit{{DocID: "a"}}, now)
	c.Set("idx", "b", opts, []SearchHit{{DocID: "b"}}, now)
	// touch "a" so "b" becomes least-recently-used
	c.Get("idx", "a", opts, now)
	c.Set("idx", "c", opts, []SearchHit{{DocID: "c"}}, now)

	if _, ok := c.Get("idx", "b", opts, now); ok {
		t.Fatalf("expected 'b' to have been evicted as least-recently-used")
	}
	if _, ok := c.Get("idx", "a", opts, now); !ok {
		t.Fatalf("expected 'a' to survive eviction")
	}
	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Fatalf("expected 1 eviction, got %d", stats.Evictions)
	}
}

func TestResultCache_MRUEvictsMostRecentlyUsed(t *testing.T) {
	c := NewResultCache(CacheConfig{Capacity: 2, TTL: time.Hour, Policy: PolicyMRU})
	now := time.Now()
	opts := SearchOptions{MaxResults: 10}

	c.Set("idx", "a", opts, []SearchHit{{DocID: "a"}}, now)
	c.Set("idx", "b", opts, []SearchHit{{DocID: "b"}}, now)
	// "b" is most-recently-touched (just set); a subsequent insert should
	// evict it under MRU policy.
	c.Set("idx", "c", opts, []SearchHit{{DocID: "c"}}, now)

	if _, ok := c.Get("idx", "b", opts, now); ok {
		t.Fatalf("expected 'b' to have been evicted as most-recently-used")
	}
}

func TestResultCache_DifferentOptionsAreDifferentKeys(t *testing.T) {
	c := NewResultCache(CacheConfig{Capacity: 10, TTL: time.Hour})
	now := time.Now()
	c.Set("idx", "q", SearchOptions{MaxResults: 10}, []SearchHit{{DocID: "a"}}, now)
	if _, ok := c.Get("idx", "q", SearchOptions{MaxResults: 20}, now); ok {
		t.Fatalf("expected a different maxResults to produce a cache miss")
	}
}
