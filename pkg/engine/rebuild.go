package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/embedcache"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/hybrid"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/search"
)

// BuildStats reports what a rebuild did.
type BuildStats struct {
	Nodes       int           `json:"nodes"`
	Relations   int           `json:"relations"`
	Fingerprint string        `json:"fingerprint"`
	CacheHit    bool          `json:"cacheHit"`
	Reused      int           `json:"reused"`
	Embedded    int           `json:"embedded"`
	Failed      int           `json:"failed"`
	Duration    time.Duration `json:"duration"`
}

// Rebuild indexes records and replaces the current snapshot. Node
// embeddings are read from the store when a cache for the same model and
// fingerprint exists; missing ones are computed and the cache is saved.
// On error the previous snapshot stays in place.
func (e *Engine) Rebuild(ctx context.Context, records []kgraph.Record) (BuildStats, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	start := time.Now()
	g, err := e.builder.Build(records)
	if err != nil {
		return BuildStats{}, fmt.Errorf("building knowledge graph: %w", err)
	}
	e.log.Info("knowledge graph built",
		zap.Int("nodes", g.Len()),
		zap.Int("relations", len(g.Relations)),
		zap.String("fingerprint", g.Fingerprint),
		zap.Duration("duration", time.Since(start)))

	docs := make([]search.Document, 0, g.Len())
	for _, n := range g.Ordered() {
		docs = append(docs, search.Document{ID: n.ID, Content: n.Content})
	}
	idx := search.NewBM25Index(docs, e.cfg.BM25)

	model := e.embedder.Model()
	emb, found, err := embedcache.Load(ctx, e.store, model, g.Fingerprint)
	if err != nil {
		// A corrupt or unreadable cache is recomputed rather than fatal.
		e.log.Warn("embedding cache unreadable, recomputing", zap.Error(err))
		emb, found = embedcache.New(model, g.Fingerprint), false
	}
	e.log.Debug("embedding cache lookup",
		zap.String("model", model),
		zap.String("fingerprint", g.Fingerprint),
		zap.Bool("hit", found),
		zap.Int("entries", emb.Len()))

	// Documents are embedded with the base embedder; the query cache is
	// for query texts only.
	pop, err := emb.Populate(ctx, g, e.cfg.Embedder, embedcache.PopulateOptions{Batch: e.cfg.Batch, Logger: e.log})
	if err != nil {
		return BuildStats{}, fmt.Errorf("embedding knowledge base: %w", err)
	}
	if !found || pop.Embedded > 0 {
		if err := emb.Save(ctx, e.store); err != nil {
			return BuildStats{}, err
		}
		e.log.Debug("embedding cache saved", zap.String("key", embedcache.Key(model, g.Fingerprint)))
	}

	vectors := emb.Vectors(g)
	e.gen++
	e.snap.Store(&snapshot{
		gen:     e.gen,
		graph:   g,
		vectors: vectors,
		scorer:  hybrid.NewScorer(g, idx, vectors),
	})
	e.results.Clear()

	return BuildStats{
		Nodes:       g.Len(),
		Relations:   len(g.Relations),
		Fingerprint: g.Fingerprint,
		CacheHit:    found,
		Reused:      pop.Reused,
		Embedded:    pop.Embedded,
		Failed:      pop.Failed,
		Duration:    time.Since(start),
	}, nil
}
