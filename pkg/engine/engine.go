// Package engine is the retrieval service: it owns the current knowledge
// base snapshot (graph, BM25 index, node embeddings), the query embedding
// cache, the response cache and the last reasoning chain.
//
// Rebuild constructs a complete new snapshot and swaps it in with a single
// pointer store, so searches running concurrently with a rebuild see
// either the old or the new knowledge base, never a mix. Several engines
// can run side by side; nothing is package-global.
//
// Example:
//
//	eng, err := engine.New(engine.Config{Embedder: embedder, Store: store})
//	if err != nil {
//		return err
//	}
//	if _, err := eng.Rebuild(ctx, records); err != nil {
//		return err
//	}
//	resp, err := eng.Search(ctx, "transactions over $400", engine.DefaultSearchOptions())
package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/cache"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/decay"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/embed"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/entity"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/hybrid"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/query"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/reasoning"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/search"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/storage"
)

// ErrEmbeddingUnavailable is returned when the query cannot be embedded.
// The underlying provider error is wrapped alongside it.
var ErrEmbeddingUnavailable = errors.New("could not generate embeddings, verify model availability")

// ErrNoEmbedder is returned by New without an embedder.
var ErrNoEmbedder = errors.New("engine requires an embedder")

// Defaults for Config.
const (
	DefaultResultCacheSize = 256
	DefaultResultCacheTTL  = 5 * time.Minute
	// ContextKeywordLimit caps the keywords borrowed from conversation
	// context.
	ContextKeywordLimit = 5
)

// Config wires an Engine. Only Embedder is required.
type Config struct {
	Embedder embed.Embedder
	// Store persists node embeddings across restarts. Defaults to an
	// in-memory store.
	Store  storage.Store
	Logger *zap.Logger

	AllPairsLimit   int
	BM25            search.BM25Params
	Batch           embed.BatchOptions
	QueryCacheSize  int
	// ResultCacheSize bounds the response cache. Negative disables it.
	ResultCacheSize int
	ResultCacheTTL  time.Duration

	Weights hybrid.Weights
	RRFK    float64
	MMR     search.MMROptions
	Expand  query.ExpandOptions
	// Decay enables temporal relevance when set.
	Decay *decay.Decay

	Now func() time.Time
}

// snapshot is one immutable knowledge-base version.
type snapshot struct {
	// gen increases with every rebuild, so responses computed against an
	// older snapshot never match a newer one's cache keys.
	gen     uint64
	graph   *kgraph.Graph
	vectors map[string][]float32
	scorer  *hybrid.Scorer
}

// Engine answers searches against the current snapshot. It is safe for
// concurrent use.
type Engine struct {
	cfg       Config
	log       *zap.Logger
	embedder  *embed.CachedEmbedder
	store     storage.Store
	builder   *kgraph.Builder
	extractor *entity.Extractor
	results   *cache.Cache[*Response]

	// rebuildMu serializes rebuilds and guards gen. Searches never take it.
	rebuildMu sync.Mutex
	gen       uint64
	snap      atomic.Pointer[snapshot]
	last      atomic.Pointer[reasoning.Chain]
}

// New creates an engine with an empty knowledge base.
func New(cfg Config) (*Engine, error) {
	if cfg.Embedder == nil {
		return nil, ErrNoEmbedder
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Store == nil {
		cfg.Store = storage.NewMemoryStore()
	}
	if cfg.QueryCacheSize <= 0 {
		cfg.QueryCacheSize = embed.DefaultQueryCacheSize
	}
	cacheEnabled := cfg.ResultCacheSize >= 0
	if cfg.ResultCacheSize <= 0 {
		cfg.ResultCacheSize = DefaultResultCacheSize
	}
	switch {
	case cfg.ResultCacheTTL == 0:
		cfg.ResultCacheTTL = DefaultResultCacheTTL
	case cfg.ResultCacheTTL < 0:
		cfg.ResultCacheTTL = 0 // LRU eviction only
	}
	if cfg.BM25 == (search.BM25Params{}) {
		cfg.BM25 = search.DefaultBM25Params()
	}
	if cfg.Weights == (hybrid.Weights{}) {
		cfg.Weights = hybrid.DefaultWeights()
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = search.DefaultRRFK
	}
	if cfg.MMR == (search.MMROptions{}) {
		cfg.MMR = search.DefaultMMROptions()
	}
	if cfg.Expand == (query.ExpandOptions{}) {
		cfg.Expand = query.DefaultExpandOptions()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Batch.Logger == nil {
		cfg.Batch.Logger = cfg.Logger
	}

	builderOpts := []kgraph.BuilderOption{kgraph.WithClock(cfg.Now)}
	if cfg.AllPairsLimit != 0 {
		builderOpts = append(builderOpts, kgraph.WithAllPairsLimit(cfg.AllPairsLimit))
	}

	e := &Engine{
		cfg:       cfg,
		log:       cfg.Logger,
		embedder:  embed.NewCachedEmbedder(cfg.Embedder, cfg.QueryCacheSize),
		store:     cfg.Store,
		builder:   kgraph.NewBuilder(builderOpts...),
		extractor: entity.NewExtractor(),
		results:   cache.New[*Response](cfg.ResultCacheSize, cfg.ResultCacheTTL),
	}
	e.results.SetEnabled(cacheEnabled)
	e.snap.Store(&snapshot{graph: &kgraph.Graph{}, scorer: hybrid.NewScorer(nil, nil, nil)})
	return e, nil
}

// Model returns the embedding model name.
func (e *Engine) Model() string {
	return e.embedder.Model()
}

// Graph returns the current knowledge graph. It must not be modified.
func (e *Engine) Graph() *kgraph.Graph {
	return e.snap.Load().graph
}

// LastExplanation returns the reasoning chain of the most recent search.
func (e *Engine) LastExplanation() (reasoning.Chain, bool) {
	c := e.last.Load()
	if c == nil {
		return reasoning.Chain{}, false
	}
	return *c, true
}

// Stats describes the current snapshot and caches.
type Stats struct {
	Nodes         int              `json:"nodes"`
	Relations     int              `json:"relations"`
	Fingerprint   string           `json:"fingerprint"`
	BuiltAt       time.Time        `json:"builtAt"`
	EmbeddedNodes int              `json:"embeddedNodes"`
	Model         string           `json:"model"`
	QueryCache    embed.CacheStats `json:"queryCache"`
	ResultCache   cache.Stats      `json:"resultCache"`
}

// Stats returns engine statistics.
func (e *Engine) Stats() Stats {
	s := e.snap.Load()
	return Stats{
		Nodes:         s.graph.Len(),
		Relations:     len(s.graph.Relations),
		Fingerprint:   s.graph.Fingerprint,
		BuiltAt:       s.graph.BuiltAt,
		EmbeddedNodes: len(s.vectors),
		Model:         e.Model(),
		QueryCache:    e.embedder.Stats(),
		ResultCache:   e.results.Stats(),
	}
}
