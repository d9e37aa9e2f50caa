// Package embedcache holds node embeddings for one knowledge-base version.
//
// A Cache is bound to an embedding model and a graph fingerprint. Entries
// are keyed by node id and remember the content hash they were computed
// from, so a vector is only served while the node text is unchanged. When
// the model or the fingerprint changes the whole cache is replaced; there
// is no partial invalidation.
package embedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/embed"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/storage"
)

// KeyPrefix prefixes every persisted cache key.
const KeyPrefix = "embeddings:"

// Key returns the store key for a (model, fingerprint) pair.
func Key(model, fingerprint string) string {
	return KeyPrefix + model + ":" + fingerprint
}

// Entry is one cached node vector.
type Entry struct {
	NodeID             string    `json:"nodeId"`
	ContentFingerprint string    `json:"contentFingerprint"`
	Vector             []float32 `json:"vector"`
}

// Cache maps node ids to vectors for one (model, fingerprint) pair.
// Safe for concurrent use.
type Cache struct {
	model       string
	fingerprint string

	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty cache.
func New(model, fingerprint string) *Cache {
	return &Cache{
		model:       model,
		fingerprint: fingerprint,
		entries:     make(map[string]Entry),
	}
}

// Model returns the embedding model the cache belongs to.
func (c *Cache) Model() string { return c.model }

// Fingerprint returns the knowledge-base fingerprint the cache belongs to.
func (c *Cache) Fingerprint() string { return c.fingerprint }

// Valid reports whether the cache can serve the given model and graph.
func (c *Cache) Valid(model, fingerprint string) bool {
	return c != nil && c.model == model && c.fingerprint == fingerprint
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get returns the vector for a node if it was computed from the same
// content hash.
func (c *Cache) Get(nodeID, contentHash string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[nodeID]
	if !ok || e.ContentFingerprint != contentHash || len(e.Vector) == 0 {
		return nil, false
	}
	return e.Vector, true
}

// Put stores a vector. Empty vectors are ignored.
func (c *Cache) Put(nodeID, contentHash string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[nodeID] = Entry{NodeID: nodeID, ContentFingerprint: contentHash, Vector: vec}
}

// Vectors returns the valid vectors of the graph's nodes keyed by node id.
// Nodes without a valid entry are absent.
func (c *Cache) Vectors(g *kgraph.Graph) map[string][]float32 {
	out := make(map[string][]float32, g.Len())
	if g.Len() == 0 {
		return out
	}
	for _, n := range g.Ordered() {
		if v, ok := c.Get(n.ID, n.ContentHash); ok {
			out[n.ID] = v
		}
	}
	return out
}

// PopulateOptions configures Populate.
type PopulateOptions struct {
	Batch  embed.BatchOptions
	Logger *zap.Logger
}

// PopulateStats reports what Populate did.
type PopulateStats struct {
	Reused   int
	Embedded int
	Failed   int
}

// Populate embeds every node of g that has no valid entry. Nodes whose
// embedding fails are logged and left out; they still take part in
// symbolic scoring. Only context cancellation is returned as an error.
func (c *Cache) Populate(ctx context.Context, g *kgraph.Graph, e embed.Embedder, opts PopulateOptions) (PopulateStats, error) {
	var stats PopulateStats
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Batch.Logger == nil {
		opts.Batch.Logger = log
	}

	var missing []*kgraph.Node
	for _, n := range g.Ordered() {
		if _, ok := c.Get(n.ID, n.ContentHash); ok {
			stats.Reused++
			continue
		}
		missing = append(missing, n)
	}
	if len(missing) == 0 {
		return stats, nil
	}

	texts := make([]string, len(missing))
	for i, n := range missing {
		texts[i] = n.Content
	}
	res, err := embed.EmbedAll(ctx, e, texts, opts.Batch)
	if err != nil {
		return stats, err
	}
	for i, n := range missing {
		if vec := res.Vectors[i]; len(vec) > 0 {
			c.Put(n.ID, n.ContentHash, vec)
			stats.Embedded++
		} else {
			stats.Failed++
		}
	}

	log.Info("embedding cache populated",
		zap.String("model", c.model),
		zap.String("fingerprint", c.fingerprint),
		zap.Int("reused", stats.Reused),
		zap.Int("embedded", stats.Embedded),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

// snapshot is the persisted form of a cache.
type snapshot struct {
	Model       string    `json:"model"`
	Fingerprint string    `json:"fingerprint"`
	SavedAt     time.Time `json:"savedAt"`
	Entries     []Entry   `json:"entries"`
}

// Load reads the cache for (model, fingerprint) from store. A missing or
// mismatched payload yields an empty cache and found=false.
func Load(ctx context.Context, store storage.Store, model, fingerprint string) (cache *Cache, found bool, err error) {
	data, err := store.Get(ctx, Key(model, fingerprint))
	if errors.Is(err, storage.ErrNotFound) {
		return New(model, fingerprint), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading embedding cache: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("decoding embedding cache: %w", err)
	}
	if snap.Model != model || snap.Fingerprint != fingerprint {
		return New(model, fingerprint), false, nil
	}

	c := New(model, fingerprint)
	for _, e := range snap.Entries {
		c.Put(e.NodeID, e.ContentFingerprint, e.Vector)
	}
	return c, true, nil
}

// Save writes the cache to store and removes caches persisted for the same
// model under other fingerprints.
func (c *Cache) Save(ctx context.Context, store storage.Store) error {
	c.mu.RLock()
	snap := snapshot{
		Model:       c.model,
		Fingerprint: c.fingerprint,
		SavedAt:     time.Now().UTC(),
		Entries:     make([]Entry, 0, len(c.entries)),
	}
	for _, e := range c.entries {
		snap.Entries = append(snap.Entries, e)
	}
	c.mu.RUnlock()
	sort.Slice(snap.Entries, func(i, j int) bool { return snap.Entries[i].NodeID < snap.Entries[j].NodeID })

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding embedding cache: %w", err)
	}
	key := Key(c.model, c.fingerprint)
	if err := store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("saving embedding cache: %w", err)
	}

	stale, err := store.Keys(ctx, KeyPrefix+c.model+":")
	if err != nil {
		return fmt.Errorf("listing embedding caches: %w", err)
	}
	for _, k := range stale {
		// Model names may contain ':'; only drop keys of this exact model.
		if k == key || strings.Contains(strings.TrimPrefix(k, KeyPrefix+c.model+":"), ":") {
			continue
		}
		if err := store.Delete(ctx, k); err != nil {
			return fmt.Errorf("removing stale embedding cache: %w", err)
		}
	}
	return nil
}
