package engine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/cache"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/hybrid"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/query"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/reasoning"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/search"
)

// Status describes the outcome of a search that did not fail.
type Status string

const (
	StatusOK                 Status = "ok"
	StatusEmptyKnowledgeBase Status = "empty_knowledge_base"
	StatusNoResults          Status = "no_results"
)

// User-facing messages for the empty states.
const (
	MessageEmptyKnowledgeBase = "no documents in knowledge base"
	MessageNoResults          = "no results above the threshold; try lowering the threshold, rephrasing the query or adding documents"
)

// Option bounds.
const (
	MinTopK = 1
	MaxTopK = 100
)

// SearchOptions controls one search.
type SearchOptions struct {
	TopK      int     `json:"topK"`
	Threshold float64 `json:"threshold"`
	// UseHybrid combines semantic and symbolic signals. When false only
	// embedding similarity is used.
	UseHybrid bool `json:"useHybrid"`
	// UseEnhanced fuses per-signal rankings of every query variant.
	UseEnhanced   bool `json:"useEnhanced"`
	ShowReasoning bool `json:"showReasoning"`
	// ConversationContext is recent conversation text. In enhanced mode
	// its keywords form an extra query variant.
	ConversationContext string `json:"conversationContext,omitempty"`
}

// DefaultSearchOptions returns top 10, threshold 0.3, hybrid basic mode.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		TopK:      10,
		Threshold: hybrid.DefaultMinScore,
		UseHybrid: true,
	}
}

// normalize clamps TopK to [MinTopK, MaxTopK] and Threshold to [0, 1].
func (o SearchOptions) normalize() SearchOptions {
	o.TopK = min(MaxTopK, max(MinTopK, o.TopK))
	if math.IsNaN(o.Threshold) {
		o.Threshold = hybrid.DefaultMinScore
	}
	o.Threshold = min(1, max(0, o.Threshold))
	o.ConversationContext = strings.TrimSpace(o.ConversationContext)
	return o
}

func (o SearchOptions) mode() hybrid.Mode {
	switch {
	case !o.UseHybrid:
		return hybrid.ModeSemantic
	case o.UseEnhanced:
		return hybrid.ModeEnhanced
	default:
		return hybrid.ModeBasic
	}
}

// Response is the result of a search. Results must be treated as read-only;
// cached responses share them.
type Response struct {
	QueryID   string           `json:"queryId"`
	Query     string           `json:"query"`
	Status    Status           `json:"status"`
	Message   string           `json:"message,omitempty"`
	Mode      hybrid.Mode      `json:"mode"`
	Results   []hybrid.Result  `json:"results"`
	Reasoning string           `json:"reasoning,omitempty"`
	Chain     *reasoning.Chain `json:"chain,omitempty"`
	Cached    bool             `json:"cached"`
	Duration  time.Duration    `json:"duration"`

	chain reasoning.Chain
}

// Search runs a query against the current snapshot. Empty knowledge bases
// and empty result sets are reported through Status, not as errors. If the
// query cannot be embedded the error wraps ErrEmbeddingUnavailable.
func (e *Engine) Search(ctx context.Context, q string, opts SearchOptions) (*Response, error) {
	start := time.Now()
	opts = opts.normalize()
	q = strings.TrimSpace(q)
	queryID := uuid.NewString()
	log := e.log.With(zap.String("query_id", queryID))

	s := e.snap.Load()
	if s.graph.Len() == 0 {
		return &Response{
			QueryID: queryID,
			Query:   q,
			Status:  StatusEmptyKnowledgeBase,
			Message: MessageEmptyKnowledgeBase,
			Mode:    opts.mode(),
		}, nil
	}

	key := e.cacheKey(s, q, opts)
	if cached, ok := e.results.Get(key); ok {
		resp := *cached
		resp.QueryID = queryID
		resp.Cached = true
		resp.Duration = time.Since(start)
		chain := resp.chain
		e.last.Store(&chain)
		log.Debug("search served from cache", zap.String("query", q))
		return &resp, nil
	}

	a := query.AnalyzeWith(e.extractor, q, e.cfg.Expand)
	if opts.UseEnhanced && opts.ConversationContext != "" {
		kws := query.ContextKeywords(opts.ConversationContext, q, ContextKeywordLimit)
		if v, ok := query.ContextVariant(q, kws); ok {
			a.Variants = append(a.Variants, v)
		}
	}

	hopts := hybrid.Options{
		Mode:     opts.mode(),
		Weights:  e.cfg.Weights,
		MinScore: opts.Threshold,
		RRFK:     e.cfg.RRFK,
		Decay:    e.cfg.Decay,
		Now:      e.cfg.Now,
	}
	results, err := e.score(ctx, s, a, hopts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn("query embedding failed", zap.String("query", q), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	results = e.diversify(s, results, opts.TopK)

	chain := reasoning.Build(a, s.graph, results)
	resp := &Response{
		QueryID: queryID,
		Query:   q,
		Status:  StatusOK,
		Mode:    hopts.Mode,
		Results: results,
		chain:   chain,
	}
	if len(results) == 0 {
		resp.Status = StatusNoResults
		resp.Message = MessageNoResults
	}
	if opts.ShowReasoning {
		resp.Reasoning = chain.String()
		resp.Chain = &chain
	}
	e.last.Store(&chain)

	resp.Duration = time.Since(start)
	// The cache owns its own copy; hits copy it again before writing.
	stored := *resp
	e.results.Put(key, &stored)

	log.Info("search completed",
		zap.String("mode", string(hopts.Mode)),
		zap.Int("results", len(results)),
		zap.Duration("duration", resp.Duration))
	return resp, nil
}

// score runs the scorer, once per sub-query for decomposed queries. Sub-query
// results are merged keeping each node's best score.
func (e *Engine) score(ctx context.Context, s *snapshot, a query.Analysis, opts hybrid.Options) ([]hybrid.Result, error) {
	subs := a.Decomposition.SubQueries
	if len(subs) <= 1 {
		return s.scorer.Score(ctx, a, e.embedQuery, opts)
	}

	best := make(map[string]hybrid.Result)
	lists := make([][]search.RankedItem, 0, len(subs))
	for _, sub := range subs {
		sa := query.AnalyzeWith(e.extractor, sub, e.cfg.Expand)
		res, err := s.scorer.Score(ctx, sa, e.embedQuery, opts)
		if err != nil {
			return nil, err
		}
		items := make([]search.RankedItem, len(res))
		for i, r := range res {
			items[i] = search.RankedItem{ID: r.NodeID, Score: r.Score}
			if prev, ok := best[r.NodeID]; !ok || r.Score > prev.Score {
				best[r.NodeID] = r
			}
		}
		lists = append(lists, items)
	}

	merged := search.MergeMax(lists...)
	out := make([]hybrid.Result, len(merged))
	for i, item := range merged {
		out[i] = best[item.ID]
	}
	return out, nil
}

// diversify reranks with MMR and keeps at most topK results.
func (e *Engine) diversify(s *snapshot, results []hybrid.Result, topK int) []hybrid.Result {
	if len(results) == 0 {
		return nil
	}
	cands := make([]search.Candidate, len(results))
	byID := make(map[string]hybrid.Result, len(results))
	for i, r := range results {
		cands[i] = search.Candidate{ID: r.NodeID, Score: r.Score, Content: r.Content}
		byID[r.NodeID] = r
	}
	picked := search.MMRRerank(cands, s.vectors, topK, e.cfg.MMR)
	out := make([]hybrid.Result, len(picked))
	for i, c := range picked {
		out[i] = byID[c.ID]
	}
	return out
}

func (e *Engine) embedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.Embed(ctx, text)
}

// cacheKey identifies a response within one snapshot generation. The query
// is case sensitive because entity extraction is.
func (e *Engine) cacheKey(s *snapshot, q string, opts SearchOptions) uint64 {
	return cache.Key(
		strconv.FormatUint(s.gen, 10),
		s.graph.Fingerprint,
		e.embedder.Model(),
		q,
		fmt.Sprintf("%d|%g|%t|%t|%t", opts.TopK, opts.Threshold, opts.UseHybrid, opts.UseEnhanced, opts.ShowReasoning),
		opts.ConversationContext,
	)
}
