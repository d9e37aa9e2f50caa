package hybrid

import (
	"strings"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/entity"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/math/vector"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/query"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/search"
)

// Query is one query variant prepared for scoring.
type Query struct {
	Text        string
	Embedding   []float32
	Entities    []entity.Entity
	Keywords    []string
	Comparison  query.Comparison
	DataListing bool
}

// signals holds every per-node score for one query variant.
type signals struct {
	semantic float64
	entity   float64
	keyword  float64
	graph    float64
	bm25     float64
	density  float64

	entityMatches  []EntityMatch
	keywordMatches []string
	connections    []GraphConnection
}

// weighted is the basic-mode score.
func (s signals) weighted(w Weights) float64 {
	return w.Semantic*s.semantic + w.Entity*s.entity + w.Keyword*s.keyword + w.Graph*s.graph
}

// computeSignals scores every node of the graph, in graph order.
func (sc *Scorer) computeSignals(q Query, opts Options) []signals {
	out := make([]signals, len(sc.nodes))
	m := newMatcher(q, opts)

	// Entity matches come first: the graph signal needs to know which
	// neighbors match the query.
	matched := make([]bool, len(sc.nodes))
	for i, n := range sc.nodes {
		out[i].entity, out[i].density, out[i].entityMatches = m.entityScore(n)
		matched[i] = len(out[i].entityMatches) > 0
	}

	var bm25 map[string]float64
	if sc.bm25 != nil {
		hits := sc.bm25.Search(q.Text, 0)
		bm25 = make(map[string]float64, len(hits))
		for _, h := range hits {
			bm25[h.ID] = h.Score
		}
	}

	for i, n := range sc.nodes {
		s := &out[i]
		if vec, ok := sc.vectors[n.ID]; ok && len(q.Embedding) > 0 {
			s.semantic = max(0, vector.CosineSimilarity(q.Embedding, vec))
		}
		s.keyword, s.keywordMatches = keywordScore(q.Keywords, n)
		s.graph, s.connections = sc.graphScore(n, matched)
		s.bm25 = bm25[n.ID]
	}
	return out
}

// keywordScore is the fraction of query keywords present on the node.
func keywordScore(keywords []string, n *kgraph.Node) (float64, []string) {
	if len(keywords) == 0 {
		return 0, nil
	}
	var hits []string
	for _, kw := range keywords {
		if n.HasKeyword(kw) {
			hits = append(hits, kw)
		}
	}
	return float64(len(hits)) / float64(len(keywords)), hits
}

// graphScore adds weight × NeighborFactor for each relation whose other
// endpoint matches a query entity.
func (sc *Scorer) graphScore(n *kgraph.Node, matched []bool) (float64, []GraphConnection) {
	var score float64
	var conns []GraphConnection
	for _, r := range n.Relations {
		other := r.Other(n.ID)
		idx, ok := sc.pos[other]
		if !ok || !matched[idx] {
			continue
		}
		score += r.Weight * NeighborFactor
		conns = append(conns, GraphConnection{NodeID: other, Kind: r.Kind, Weight: r.Weight})
	}
	return min(1, score), conns
}

// matcher evaluates the entity signal for one query.
type matcher struct {
	q        Query
	opts     Options
	criteria int
	// plain are the query entities matched by value.
	plain []entity.Entity
	// moneyComparison is set when money entities are matched by the
	// comparison bounds instead of by value.
	moneyComparison bool
}

func newMatcher(q Query, opts Options) matcher {
	m := matcher{q: q, opts: opts}
	for _, e := range q.Entities {
		if q.Comparison.Active() && e.Kind == entity.KindMoney {
			m.moneyComparison = true
			continue
		}
		m.plain = append(m.plain, e)
	}
	// All money query entities collapse into one criterion under a
	// comparison, which holds even if the bound's amount was not extracted
	// as an entity.
	if q.Comparison.Active() {
		m.moneyComparison = true
	}
	m.criteria = len(m.plain)
	if m.moneyComparison {
		m.criteria++
	}
	return m
}

// entityScore returns the normalized entity score, the density bonus
// included in it, and the matches.
func (m matcher) entityScore(n *kgraph.Node) (float64, float64, []EntityMatch) {
	var raw float64
	var matches []EntityMatch

	for _, qe := range m.plain {
		qv := qe.NormalizedString()
		for _, ne := range n.Entities {
			if ne.Kind != qe.Kind || !valuesMatch(qv, ne.NormalizedString()) {
				continue
			}
			b := m.opts.boost(qe.Kind)
			raw += b
			matches = append(matches, EntityMatch{Kind: ne.Kind, Value: ne.Value, Boost: b})
			break
		}
	}

	if m.moneyComparison {
		b := m.opts.boost(entity.KindMoney) * ComparisonBoostFactor
		note := m.q.Comparison.Annotation()
		satisfied := false
		for _, ne := range n.Entities {
			if ne.Kind != entity.KindMoney {
				continue
			}
			if v, ok := ne.Number(); ok && m.q.Comparison.Matches(v) {
				satisfied = true
				matches = append(matches, EntityMatch{Kind: ne.Kind, Value: ne.Value + " " + note, Boost: b})
			}
		}
		if satisfied {
			raw += b
		}
	}

	var density float64
	if m.q.DataListing && len(m.q.Entities) == 0 {
		density = min(1, float64(len(n.Entities))/densityEntityTarget) * DensityBonusScale
		raw += density
	}

	criteria := m.criteria
	if criteria == 0 {
		if density == 0 {
			return 0, 0, matches
		}
		criteria = 1
	}
	return clamp01(raw / float64(criteria)), density, matches
}

// valuesMatch compares normalized values: equal, or one contains the other.
func valuesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}

// rankedLists turns signals into the five per-signal rankings used by
// enhanced mode. Only positive scores are listed; ties keep graph order.
func (sc *Scorer) rankedLists(sig []signals) [][]search.RankedItem {
	getters := []func(signals) float64{
		func(s signals) float64 { return s.semantic },
		func(s signals) float64 { return s.entity },
		func(s signals) float64 { return s.keyword },
		func(s signals) float64 { return s.graph },
		func(s signals) float64 { return s.bm25 },
	}
	lists := make([][]search.RankedItem, 0, len(getters))
	for _, get := range getters {
		var list []search.RankedItem
		for i, s := range sig {
			if v := get(s); v > 0 {
				list = append(list, search.RankedItem{ID: sc.nodes[i].ID, Score: v})
			}
		}
		search.SortRanked(list)
		lists = append(lists, list)
	}
	return lists
}
