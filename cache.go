package nexus

import (
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RESULT CACHE (§4.7)
// ═══════════════════════════════════════════════════════════════════════════════
// ResultCache is a bounded, TTL-gated cache of search results keyed by
// (indexName, query, canonicalized options). Eviction follows either an
// LRU or MRU policy over a doubly-linked access list; hit/miss/eviction
// counters and access-frequency analysis back the §4.7 stats surface.
//
// Grounded on thirawat27-wut/internal/search/engine.go's
// cache map[string]*cachedResult / cacheTTL pattern (a mutex-guarded map
// with per-entry expiry), generalized here into an explicit doubly-linked
// eviction list so both LRU and MRU policies, and capacity eviction, are
// possible - the teacher's map alone only supports TTL expiry.
// ═══════════════════════════════════════════════════════════════════════════════

// CachePolicy selects which end of the access list is evicted first.
type CachePolicy int

const (
	PolicyLRU CachePolicy = iota // evict least-recently-used
	PolicyMRU                    // evict most-recently-used
)

// CacheConfig bounds a ResultCache.
type CacheConfig struct {
	Capacity int
	TTL      time.Duration
	Policy   CachePolicy
}

// DefaultCacheConfig matches spec.md's stated defaults: capacity 1000,
// TTL 5 minutes, LRU eviction.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Capacity: 1000, TTL: 5 * time.Minute, Policy: PolicyLRU}
}

type cacheEntry struct {
	key         uint64
	value       []SearchHit
	expiresAt   time.Time
	accessCount int
	prev, next  *cacheEntry
}

// ResultCache caches SearchHit slices keyed by query signature.
type ResultCache struct {
	mu      sync.Mutex
	cfg     CacheConfig
	entries map[uint64]*cacheEntry
	head    *cacheEntry // most-recently-touched end
	tail    *cacheEntry // least-recently-touched end

	hits, misses, evictions uint64
}

// NewResultCache constructs an empty cache.
func NewResultCache(cfg CacheConfig) *ResultCache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &ResultCache{cfg: cfg, entries: make(map[uint64]*cacheEntry)}
}

// cacheKey digests (indexName, query, opts) with xxhash over their
// goccy/go-json encoding, which writes struct fields in declaration order
// and map keys sorted; slice order (e.g. AllowedFields) is kept as given, so
// the same fields listed in another order give a different key.
func cacheKey(indexName, query string, opts SearchOptions) uint64 {
	payload, _ := json.Marshal(struct {
		Index string
		Query string
		Opts  SearchOptions
	}{indexName, query, opts})
	h := xxhash.New()
	h.Write(payload)
	return h.Sum64()
}

// Get returns the cached hits for (indexName, query, opts) if present and
// unexpired, recording a hit or miss either way.
func (c *ResultCache) Get(indexName, query string, opts SearchOptions, now time.Time) ([]SearchHit, bool) {
	key := cacheKey(indexName, query, opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || now.After(entry.expiresAt) {
		if ok {
			c.removeEntry(entry)
		}
		c.misses++
		return nil, false
	}
	entry.accessCount++
	c.touch(entry)
	c.hits++
	return entry.value, true
}

// Set stores hits for (indexName, query, opts), evicting per policy if the
// cache is at capacity.
func (c *ResultCache) Set(indexName, query string, opts SearchOptions, hits []SearchHit, now time.Time) {
	key := cacheKey(indexName, query, opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		existing.value = hits
		existing.expiresAt = now.Add(c.cfg.TTL)
		c.touch(existing)
		return
	}

	if len(c.entries) >= c.cfg.Capacity {
		c.evictOne()
	}

	entry := &cacheEntry{key: key, value: hits, expiresAt: now.Add(c.cfg.TTL)}
	c.entries[key] = entry
	c.pushFront(entry)
}

// SetPolicy swaps the eviction policy; the existing access list ordering is
// reused as-is, since LRU/MRU differ only in which end is evicted.
func (c *ResultCache) SetPolicy(policy CachePolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Policy = policy
}

func (c *ResultCache) evictOne() {
	var victim *cacheEntry
	switch c.cfg.Policy {
	case PolicyMRU:
		victim = c.head
	default:
		victim = c.tail
	}
	if victim == nil {
		return
	}
	c.removeEntry(victim)
	c.evictions++
}

// touch moves entry to the front (most-recently-touched) of the list.
func (c *ResultCache) touch(entry *cacheEntry) {
	if c.head == entry {
		return
	}
	c.unlink(entry)
	c.pushFront(entry)
}

func (c *ResultCache) pushFront(entry *cacheEntry) {
	entry.prev = nil
	entry.next = c.head
	if c.head != nil {
		c.head.prev = entry
	}
	c.head = entry
	if c.tail == nil {
		c.tail = entry
	}
}

func (c *ResultCache) unlink(entry *cacheEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		c.head = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		c.tail = entry.prev
	}
	entry.prev, entry.next = nil, nil
}

func (c *ResultCache) removeEntry(entry *cacheEntry) {
	c.unlink(entry)
	delete(c.entries, entry.key)
}

// CacheStats summarizes hit/miss/eviction behavior and access distribution.
type CacheStats struct {
	Hits                uint64
	Misses              uint64
	Evictions           uint64
	Size                int
	HitRate             float64
	AverageAccessCount  float64
}

// Stats computes a snapshot of the cache's counters and access distribution.
func (c *ResultCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
	total := c.hits + c.misses
	if total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	if len(c.entries) > 0 {
		sum := 0
		for _, e := range c.entries {
			sum += e.accessCount
		}
		stats.AverageAccessCount = float64(sum) / float64(len(c.entries))
	}
	return stats
}

// topKeyCount pairs a cache key with its access count for TopKeys ranking.
type topKeyCount struct {
	key   uint64
	count int
}

// TopKeys returns up to n cache keys ordered by descending access count.
func (c *ResultCache) TopKeys(n int) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	ranked := make([]topKeyCount, 0, len(c.entries))
	for k, e := range c.entries {
		ranked = append(ranked, topKeyCount{key: k, count: e.accessCount})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].count > ranked[j].count })
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]uint64, len(ranked))
	for i, r := range ranked {
		out[i] = r.key
	}
	return out
}
