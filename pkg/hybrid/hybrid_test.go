package hybrid

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/decay"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/embed/embedtest"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/query"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/search"
)

func transactionGraph(t *testing.T) *kgraph.Graph {
	t.Helper()
	g, err := kgraph.Build([]kgraph.Record{
		{ID: 1, Title: "January", Content: "Transaction on 2024-01-10 for $50 at CoffeeShop"},
		{ID: 2, Title: "February", Content: "Transaction on 2024-02-10 for $500 at Electronics"},
	})
	require.NoError(t, err)
	return g
}

func bm25For(g *kgraph.Graph) *search.BM25Index {
	var docs []search.Document
	for _, n := range g.Ordered() {
		docs = append(docs, search.Document{ID: n.ID, Content: n.Content})
	}
	return search.NewBM25Index(docs, search.DefaultBM25Params())
}

func sameVectors(g *kgraph.Graph, v []float32) map[string][]float32 {
	out := make(map[string][]float32)
	for _, id := range g.NodeIDs() {
		out[id] = v
	}
	return out
}

func constEmbed(v []float32) EmbedFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return v, nil
	}
}

func TestScore_ComparisonQuery(t *testing.T) {
	g := transactionGraph(t)
	sc := NewScorer(g, bm25For(g), sameVectors(g, []float32{0.5, 0.8660254}))

	a := query.Analyze("transactions over $400", query.DefaultExpandOptions())
	results, err := sc.Score(context.Background(), a, constEmbed([]float32{1, 0}), DefaultOptions())
	require.NoError(t, err)

	// doc-1 scores 0.45*0.5 + 0.1*(1/3*0.5), below the threshold.
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "doc-2", r.NodeID)
	assert.Equal(t, "February", r.Title)
	assert.InDelta(t, 0.525, r.Score, 1e-6)

	exp := r.Explanation
	assert.InDelta(t, 0.5, exp.SemanticScore, 1e-6)
	assert.Equal(t, 1.0, exp.EntityScore)
	assert.Zero(t, exp.KeywordScore)
	assert.Zero(t, exp.GraphScore)
	require.Len(t, exp.EntityMatches, 1)
	assert.Equal(t, "$500 (>400)", exp.EntityMatches[0].Value)
	assert.Equal(t, 5.0, exp.EntityMatches[0].Boost)
	assert.Nil(t, exp.TemporalRelevance)
}

func TestScore_GraphSignalFromMatchingNeighbor(t *testing.T) {
	g := transactionGraph(t)
	sc := NewScorer(g, nil, sameVectors(g, []float32{0.5, 0.8660254}))

	opts := DefaultOptions()
	opts.MinScore = 0.1
	a := query.Analyze("transactions over $400", query.DefaultExpandOptions())
	results, err := sc.Score(context.Background(), a, constEmbed([]float32{1, 0}), opts)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, []string{"doc-2", "doc-1"}, []string{results[0].NodeID, results[1].NodeID})
	low := results[1]
	assert.InDelta(t, 1.0/6.0, low.Explanation.GraphScore, 1e-9)
	assert.InDelta(t, 0.225+0.1/6.0, low.Score, 1e-6)
	require.Len(t, low.Explanation.GraphConnections, 1)
	assert.Equal(t, "doc-2", low.Explanation.GraphConnections[0].NodeID)
	assert.Equal(t, kgraph.RelationSameTopic, low.Explanation.GraphConnections[0].Kind)
}

func TestScore_EntityValueMatch(t *testing.T) {
	g, err := kgraph.Build([]kgraph.Record{
		{ID: 1, Title: "Billing", Content: "Send invoices to billing@acme.io every month"},
		{ID: 2, Title: "Support", Content: "Support tickets are answered within a day"},
	})
	require.NoError(t, err)
	sc := NewScorer(g, bm25For(g), nil)

	a := query.Analyze("who uses billing@acme.io", query.DefaultExpandOptions())
	results, err := sc.Score(context.Background(), a, nil, Options{MinScore: 0.2})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].NodeID)
	assert.Equal(t, 1.0, results[0].Explanation.EntityScore)
	assert.Positive(t, results[0].Explanation.BM25Score)
}

func TestScore_DataListingDensity(t *testing.T) {
	g := transactionGraph(t)
	sc := NewScorer(g, nil, nil)

	a := query.Analyze("show all payments", query.DefaultExpandOptions())
	require.True(t, a.DataListing)
	results, err := sc.Score(context.Background(), a, nil, Options{MinScore: 0.01})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		exp := r.Explanation
		assert.Positive(t, exp.DensityBonus)
		assert.InDelta(t, math.Min(1, exp.DensityBonus), exp.EntityScore, 1e-9)
	}
}

func TestScore_SemanticMode(t *testing.T) {
	g := transactionGraph(t)
	vectors := map[string][]float32{
		"doc-1": {1, 0},
		"doc-2": {0, 1},
	}
	sc := NewScorer(g, nil, vectors)

	a := query.Analyze("transactions over $400", query.DefaultExpandOptions())
	results, err := sc.Score(context.Background(), a, constEmbed([]float32{1, 0}),
		Options{Mode: ModeSemantic, MinScore: 0.3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].NodeID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func purchaseGraph(t *testing.T) *kgraph.Graph {
	t.Helper()
	g, err := kgraph.Build([]kgraph.Record{
		{ID: 1, Title: "Cafe", Content: "Coffee purchase of $50 at the corner cafe"},
		{ID: 2, Title: "Store", Content: "Laptop purchase of $500 from Electronics store"},
	})
	require.NoError(t, err)
	require.Empty(t, g.Relations)
	return g
}

func TestScore_EnhancedMode(t *testing.T) {
	g := purchaseGraph(t)
	sc := NewScorer(g, bm25For(g), sameVectors(g, []float32{0.5, 0.8660254}))

	a := query.Analyze("purchases over $400", query.DefaultExpandOptions())
	require.Greater(t, len(a.Variants), 1)
	opts := DefaultOptions()
	opts.Mode = ModeEnhanced

	results, err := sc.Score(context.Background(), a, constEmbed([]float32{1, 0}), opts)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "doc-2", results[0].NodeID)
	for _, r := range results {
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.GreaterOrEqual(t, r.Score, DefaultMinScore*EnhancedThresholdFactor)
		assert.Contains(t, r.Explanation.MatchedVariants, a.Query)
	}
	// Explanations describe the original query.
	require.NotEmpty(t, results[0].Explanation.EntityMatches)
	assert.Equal(t, "$500 (>400)", results[0].Explanation.EntityMatches[0].Value)
}

func TestScore_Decay(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	g, err := kgraph.Build([]kgraph.Record{
		{ID: 1, Title: "Old", Content: "Quarterly report archive", CreatedAt: now.AddDate(0, 0, -365).UnixMilli()},
		{ID: 2, Title: "New", Content: "Quarterly report draft", CreatedAt: now.UnixMilli()},
	})
	require.NoError(t, err)
	sc := NewScorer(g, nil, sameVectors(g, []float32{1, 0}))

	opts := Options{
		Mode:  ModeSemantic,
		Decay: decay.New(decay.DefaultConfig()),
		Now:   func() time.Time { return now },
	}
	a := query.Analyze("quarterly report", query.DefaultExpandOptions())
	results, err := sc.Score(context.Background(), a, constEmbed([]float32{1, 0}), opts)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "doc-2", results[0].NodeID)
	require.NotNil(t, results[0].Explanation.TemporalRelevance)
	assert.InDelta(t, 1.0, *results[0].Explanation.TemporalRelevance, 1e-9)

	old := results[1]
	want := 0.5 + 0.5*math.Exp(-1)
	assert.InDelta(t, want, old.Score, 1e-6)
	assert.InDelta(t, want, *old.Explanation.TemporalRelevance, 1e-6)
}

func TestScore_EmbeddingFailure(t *testing.T) {
	g := transactionGraph(t)
	sc := NewScorer(g, nil, nil)
	fake := &embedtest.Fake{FailTexts: map[string]bool{"transactions": true}}

	a := query.Analyze("transactions", query.DefaultExpandOptions())
	_, err := sc.Score(context.Background(), a, fake.Embed, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, embedtest.ErrFake))
}

func TestScore_EmptyGraph(t *testing.T) {
	called := false
	embed := func(ctx context.Context, text string) ([]float32, error) {
		called = true
		return []float32{1}, nil
	}
	results, err := NewScorer(nil, nil, nil).Score(context.Background(),
		query.Analyze("anything", query.DefaultExpandOptions()), embed, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, called)
}

func TestValuesMatch(t *testing.T) {
	assert.True(t, valuesMatch("acme", "acme"))
	assert.True(t, valuesMatch("acme corp", "acme"))
	assert.False(t, valuesMatch("acme", "globex"))
	assert.False(t, valuesMatch("", "acme"))
}
