package hybrid

import (
	"context"
	"fmt"
	"sort"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/entity"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/query"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/search"
)

// EmbedFunc embeds a query text.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Scorer ranks the nodes of one graph snapshot. It is safe for concurrent
// use; nothing is mutated after NewScorer.
type Scorer struct {
	graph     *kgraph.Graph
	bm25      *search.BM25Index
	vectors   map[string][]float32
	extractor *entity.Extractor

	nodes []*kgraph.Node
	pos   map[string]int
}

// NewScorer prepares a scorer. idx may be nil, in which case the BM25
// signal is zero. vectors maps node id to embedding; nodes without one get
// a zero semantic signal.
func NewScorer(g *kgraph.Graph, idx *search.BM25Index, vectors map[string][]float32) *Scorer {
	sc := &Scorer{
		graph:     g,
		bm25:      idx,
		vectors:   vectors,
		extractor: entity.NewExtractor(),
		pos:       make(map[string]int),
	}
	if g != nil {
		sc.nodes = g.Ordered()
		for i, n := range sc.nodes {
			sc.pos[n.ID] = i
		}
	}
	return sc
}

// Len returns the number of scorable nodes.
func (sc *Scorer) Len() int {
	return len(sc.nodes)
}

// Score ranks the graph against an analyzed query. Results are sorted by
// descending score, ties in graph order, and only results at or above the
// mode's threshold are returned. Any embedding error fails the call.
func (sc *Scorer) Score(ctx context.Context, a query.Analysis, embed EmbedFunc, opts Options) ([]Result, error) {
	opts = opts.withDefaults()
	if len(sc.nodes) == 0 {
		return nil, nil
	}

	original, err := sc.prepare(ctx, embed, a.Query, a.Entities, a.Keywords, a)
	if err != nil {
		return nil, err
	}
	base := sc.computeSignals(original, opts)

	scores := make([]float64, len(sc.nodes))
	matched := make([][]string, len(sc.nodes))
	switch opts.Mode {
	case ModeSemantic:
		for i, s := range base {
			scores[i] = s.semantic
		}
	case ModeEnhanced:
		if err := sc.fuseVariants(ctx, a, embed, base, opts, scores, matched); err != nil {
			return nil, err
		}
	default:
		for i, s := range base {
			scores[i] = s.weighted(opts.Weights)
		}
	}

	now := opts.Now()
	threshold := opts.threshold()
	var results []Result
	for i, n := range sc.nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := scores[i]
		exp := explain(base[i])
		exp.MatchedVariants = matched[i]
		if opts.Decay != nil {
			r := opts.Decay.Relevance(n.Metadata.CreatedAt, now)
			score *= r
			exp.TemporalRelevance = &r
		}
		if score <= 0 || score < threshold {
			continue
		}
		results = append(results, Result{
			NodeID:      n.ID,
			Title:       n.Title,
			Content:     n.Content,
			Score:       score,
			Explanation: exp,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// fuseVariants fills scores with the enhanced-mode fusion of every variant.
func (sc *Scorer) fuseVariants(ctx context.Context, a query.Analysis, embed EmbedFunc, base []signals, opts Options, scores []float64, matched [][]string) error {
	variants := a.Variants
	if len(variants) == 0 {
		variants = []query.Variant{{Text: a.Query, Weight: query.WeightOriginal, Source: query.SourceOriginal}}
	}

	weighted := make([]search.WeightedList, 0, len(variants))
	for vi, v := range variants {
		sig := base
		if vi > 0 || v.Text != a.Query {
			res := sc.extractor.Extract(v.Text)
			q, err := sc.prepare(ctx, embed, v.Text, res.Entities, res.Keywords, a)
			if err != nil {
				return err
			}
			q.DataListing = query.IsDataListing(v.Text, len(res.Entities))
			sig = sc.computeSignals(q, opts)
		}
		fused := search.ReciprocalRankFusion(sc.rankedLists(sig), opts.RRFK)
		for _, item := range fused {
			i := sc.pos[item.ID]
			matched[i] = append(matched[i], v.Text)
		}
		weighted = append(weighted, search.WeightedList{Weight: v.Weight, Items: fused})
	}

	for _, item := range search.WeightedFusion(weighted) {
		scores[sc.pos[item.ID]] = item.Score
	}
	return nil
}

// prepare embeds a variant and attaches the query-level comparison.
func (sc *Scorer) prepare(ctx context.Context, embed EmbedFunc, text string, ents []entity.Entity, kws []string, a query.Analysis) (Query, error) {
	q := Query{
		Text:        text,
		Entities:    ents,
		Keywords:    kws,
		Comparison:  a.Comparison,
		DataListing: a.DataListing,
	}
	if embed == nil {
		return q, nil
	}
	vec, err := embed(ctx, text)
	if err != nil {
		return Query{}, fmt.Errorf("embedding query %q: %w", text, err)
	}
	q.Embedding = vec
	return q, nil
}

func explain(s signals) Explanation {
	return Explanation{
		SemanticScore:    s.semantic,
		EntityScore:      s.entity,
		KeywordScore:     s.keyword,
		GraphScore:       s.graph,
		BM25Score:        s.bm25,
		DensityBonus:     s.density,
		EntityMatches:    s.entityMatches,
		KeywordMatches:   s.keywordMatches,
		GraphConnections: s.connections,
	}
}
