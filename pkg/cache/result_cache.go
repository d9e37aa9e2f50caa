// Package cache provides a bounded LRU cache with TTL expiration for
// search responses.
//
// Repeated searches against the same knowledge-base snapshot skip
// embedding and scoring entirely. Keys hash everything that affects the
// result, so the cache never needs partial invalidation: a rebuild simply
// calls Clear.
//
// Usage:
//
//	c := cache.New[*Response](256, 5*time.Minute)
//	key := cache.Key(fingerprint, model, query, optionsString)
//	if resp, ok := c.Get(key); ok {
//		return resp
//	}
//	resp := search(query)
//	c.Put(key, resp)
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultMaxSize is used when a non-positive size is requested.
const DefaultMaxSize = 1000

// Cache is a thread-safe LRU cache.
type Cache[V any] struct {
	mu sync.Mutex

	maxSize int
	ttl     time.Duration
	enabled bool
	now     func() time.Time

	list  *list.List
	items map[uint64]*list.Element

	hits   atomic.Uint64
	misses atomic.Uint64
}

type entry[V any] struct {
	key       uint64
	value     V
	expiresAt time.Time
}

// New creates a cache holding at most maxSize entries, each valid for ttl
// (0 means entries only leave through LRU eviction).
func New[V any](maxSize int, ttl time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		enabled: true,
		now:     time.Now,
		list:    list.New(),
		items:   make(map[uint64]*list.Element, maxSize),
	}
}

// Key hashes parts into a cache key. Parts are length-prefixed so
// ("ab", "c") and ("a", "bc") differ.
func Key(parts ...string) uint64 {
	d := xxhash.New()
	var lenBuf [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := range lenBuf {
			lenBuf[i] = byte(n >> (8 * i))
		}
		_, _ = d.Write(lenBuf[:])
		_, _ = d.WriteString(p)
	}
	return d.Sum64()
}

// Get returns a live entry and marks it most recently used.
func (c *Cache[V]) Get(key uint64) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		c.misses.Add(1)
		return zero, false
	}
	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	e := elem.Value.(*entry[V])
	if c.ttl > 0 && c.now().After(e.expiresAt) {
		c.removeElement(elem)
		c.misses.Add(1)
		return zero, false
	}
	c.list.MoveToFront(elem)
	c.hits.Add(1)
	return e.value, true
}

// Put adds or replaces an entry, evicting the least recently used one
// when full.
func (c *Cache[V]) Put(key uint64, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}
	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.list.MoveToFront(elem)
		return
	}
	for c.list.Len() >= c.maxSize {
		c.removeElement(c.list.Back())
	}
	c.items[key] = c.list.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
}

// Clear drops every entry. Statistics are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list.Init()
	c.items = make(map[uint64]*list.Element, c.maxSize)
}

// Len returns the number of entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

// SetEnabled turns the cache on or off. Disabling drops all entries.
func (c *Cache[V]) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.list.Init()
		c.items = make(map[uint64]*list.Element, c.maxSize)
	}
}

// Stats holds cache performance statistics.
type Stats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"maxSize"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hitRate"` // percent
}

// Stats returns a snapshot of the counters.
func (c *Cache[V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	return Stats{
		Size:    c.Len(),
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: rate,
	}
}

// removeElement must be called with mu held.
func (c *Cache[V]) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	c.list.Remove(elem)
	delete(c.items, elem.Value.(*entry[V]).key)
}
