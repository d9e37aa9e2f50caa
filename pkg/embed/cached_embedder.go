package embed

import (
	"container/list"
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// DefaultQueryCacheSize bounds the number of vectors kept by a
// CachedEmbedder when no size is given.
const DefaultQueryCacheSize = 1000

// CachedEmbedder wraps an Embedder with an LRU cache keyed by model and
// text, so repeated queries and query variants skip the provider.
//
// Only successful results are cached. Safe for concurrent use.
//
// Example:
//
//	base := embed.NewOllama(nil)
//	cached := embed.NewCachedEmbedder(base, 1000)
//
//	vec1, _ := cached.Embed(ctx, "hello world") // provider call
//	vec2, _ := cached.Embed(ctx, "hello world") // cache hit
type CachedEmbedder struct {
	base Embedder

	mu      sync.Mutex
	cache   map[uint64]*list.Element
	lru     *list.List
	maxSize int

	hits   atomic.Uint64
	misses atomic.Uint64
}

type cacheEntry struct {
	key       uint64
	embedding []float32
}

// NewCachedEmbedder creates a cached embedder. maxSize <= 0 uses
// DefaultQueryCacheSize.
func NewCachedEmbedder(base Embedder, maxSize int) *CachedEmbedder {
	if maxSize <= 0 {
		maxSize = DefaultQueryCacheSize
	}
	return &CachedEmbedder{
		base:    base,
		cache:   make(map[uint64]*list.Element, maxSize),
		lru:     list.New(),
		maxSize: maxSize,
	}
}

func (c *CachedEmbedder) key(text string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(c.base.Model())
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(strconv.Itoa(len(text)))
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(text)
	return d.Sum64()
}

func (c *CachedEmbedder) lookup(key uint64) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		c.hits.Add(1)
		return elem.Value.(*cacheEntry).embedding, true
	}
	c.misses.Add(1)
	return nil, false
}

// store adds an entry. Callers must hold c.mu.
func (c *CachedEmbedder) store(key uint64, embedding []float32) {
	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return
	}
	for c.lru.Len() >= c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.lru.Remove(oldest)
		delete(c.cache, oldest.Value.(*cacheEntry).key)
	}
	c.cache[key] = c.lru.PushFront(&cacheEntry{key: key, embedding: embedding})
}

// Embed returns the cached vector for text or asks the wrapped embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok := c.lookup(key); ok {
		return vec, nil
	}

	embedding, err := c.base.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.store(key, embedding)
	c.mu.Unlock()
	return embedding, nil
}

// EmbedBatch serves cached texts from memory and sends only the misses
// to the wrapped embedder, in one batch.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	var missKeys []uint64

	for i, text := range texts {
		key := c.key(text)
		if vec, ok := c.lookup(key); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
		missKeys = append(missKeys, key)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	embeddings, err := c.base.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(missTexts) {
		return nil, ErrBatchSizeMismatch
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for j, embedding := range embeddings {
		results[missIdx[j]] = embedding
		c.store(missKeys[j], embedding)
	}
	return results, nil
}

// Dimensions returns the wrapped embedder's dimensions.
func (c *CachedEmbedder) Dimensions() int { return c.base.Dimensions() }

// Model returns the wrapped embedder's model.
func (c *CachedEmbedder) Model() string { return c.base.Model() }

// CacheStats holds cache statistics.
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"` // percentage, 0-100
}

// Stats returns a snapshot of cache statistics.
func (c *CachedEmbedder) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()

	c.mu.Lock()
	size := c.lru.Len()
	c.mu.Unlock()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	return CacheStats{
		Size:    size,
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

// Clear drops every cached vector. Statistics are kept.
func (c *CachedEmbedder) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[uint64]*list.Element, c.maxSize)
	c.lru.Init()
}
