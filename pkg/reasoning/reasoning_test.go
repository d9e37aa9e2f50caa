package reasoning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/hybrid"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/query"
)

func kinds(c Chain) []StepKind {
	var out []StepKind
	for _, s := range c.Steps {
		out = append(out, s.Kind)
	}
	return out
}

func testGraph(t *testing.T) *kgraph.Graph {
	t.Helper()
	g, err := kgraph.Build([]kgraph.Record{
		{ID: 1, Content: "Transaction on 2024-01-10 for $50 at CoffeeShop"},
		{ID: 2, Content: "Transaction on 2024-02-10 for $500 at Electronics"},
	})
	require.NoError(t, err)
	return g
}

func TestBuild_AllSteps(t *testing.T) {
	a := query.Analyze("transactions over $400", query.DefaultExpandOptions())
	results := []hybrid.Result{{
		NodeID: "doc-2",
		Score:  0.525,
		Explanation: hybrid.Explanation{
			SemanticScore: 0.5,
			EntityScore:   1,
			GraphConnections: []hybrid.GraphConnection{
				{NodeID: "doc-1", Kind: kgraph.RelationSameTopic, Weight: 1.0 / 3.0},
			},
		},
	}}

	c := Build(a, testGraph(t), results)
	assert.Equal(t, []StepKind{StepParse, StepSearch, StepFilter, StepInfer}, kinds(c))
	assert.Equal(t, "transactions over $400", c.Query)

	want := (ParseConfidence + SearchConfidence + FilterConfidence + InferConfidence) / 4
	assert.InDelta(t, want, c.Confidence, 1e-9)

	assert.Contains(t, c.Steps[0].Details, "comparison: (>400)")
	assert.Equal(t, "Searched 2 nodes, 1 results above threshold", c.Steps[1].Description)
	assert.Equal(t, "Filtered by entity types: money", c.Steps[2].Description)
	assert.Equal(t, []string{"doc-2 linked to doc-1 via same_topic (0.33)"}, c.Steps[3].Details)
}

func TestBuild_Decomposed(t *testing.T) {
	a := query.Analyze("coffee vs electronics", query.DefaultExpandOptions())
	c := Build(a, testGraph(t), nil)
	assert.Equal(t, []StepKind{StepParse, StepDecompose, StepSearch}, kinds(c))
	assert.Equal(t, []string{"coffee", "electronics"}, c.Steps[1].Details)
}

func TestBuild_MinimalChain(t *testing.T) {
	a := query.Analyze("coffee", query.DefaultExpandOptions())
	c := Build(a, nil, nil)
	assert.Equal(t, []StepKind{StepParse, StepSearch}, kinds(c))
	assert.InDelta(t, (ParseConfidence+SearchConfidence)/2, c.Confidence, 1e-9)
}

func TestBuild_Deterministic(t *testing.T) {
	a := query.Analyze("payments to billing@acme.io over $100", query.DefaultExpandOptions())
	g := testGraph(t)
	assert.Equal(t, Build(a, g, nil), Build(a, g, nil))
}

func TestChain_Format(t *testing.T) {
	a := query.Analyze("transactions over $400", query.DefaultExpandOptions())
	out := Build(a, testGraph(t), nil).String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], `Reasoning for "transactions over $400"`))
	assert.Contains(t, out, "1. [parse] Found 1 entities")
	assert.Contains(t, out, "2. [search] Searched 2 nodes, 0 results above threshold (80%)")
	assert.Contains(t, out, "   - comparison: (>400)")
}
