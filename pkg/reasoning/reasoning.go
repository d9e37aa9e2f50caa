// Package reasoning turns a scored search into a readable trace of the
// steps the engine took: parsing, decomposition, search, entity filtering
// and graph inference.
//
// Step confidences are fixed heuristics. The chain confidence is their
// arithmetic mean.
package reasoning

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/entity"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/hybrid"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/query"
)

// StepKind names a reasoning step.
type StepKind string

const (
	StepParse     StepKind = "parse"
	StepDecompose StepKind = "decompose"
	StepSearch    StepKind = "search"
	StepFilter    StepKind = "filter"
	StepInfer     StepKind = "infer"
)

// Fixed step confidences.
const (
	ParseConfidence     = 0.95
	DecomposeConfidence = 0.85
	SearchConfidence    = 0.80
	FilterConfidence    = 0.90
	InferConfidence     = 0.70
)

// maxExplained caps how many results the search and infer steps describe.
const maxExplained = 3

// Step is one entry of a chain.
type Step struct {
	Kind        StepKind `json:"type"`
	Description string   `json:"description"`
	Details     []string `json:"details,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// Chain is the ordered trace of one search.
type Chain struct {
	Query      string  `json:"query"`
	Steps      []Step  `json:"steps"`
	Confidence float64 `json:"confidence"`
}

// Build derives the chain for results scored against a. The output is
// fully determined by its inputs.
func Build(a query.Analysis, g *kgraph.Graph, results []hybrid.Result) Chain {
	c := Chain{Query: a.Query}

	c.Steps = append(c.Steps, parseStep(a))
	if len(a.Decomposition.SubQueries) > 1 {
		c.Steps = append(c.Steps, Step{
			Kind:        StepDecompose,
			Description: fmt.Sprintf("Split %s query into %d sub-queries", a.Decomposition.Kind, len(a.Decomposition.SubQueries)),
			Details:     append([]string(nil), a.Decomposition.SubQueries...),
			Confidence:  DecomposeConfidence,
		})
	}
	c.Steps = append(c.Steps, searchStep(g, results))
	if len(a.Entities) > 0 {
		c.Steps = append(c.Steps, filterStep(a))
	}
	if s, ok := inferStep(results); ok {
		c.Steps = append(c.Steps, s)
	}

	var sum float64
	for _, s := range c.Steps {
		sum += s.Confidence
	}
	c.Confidence = sum / float64(len(c.Steps))
	return c
}

func parseStep(a query.Analysis) Step {
	var details []string
	for _, e := range a.Entities {
		details = append(details, fmt.Sprintf("%s: %s", e.Kind, e.Value))
	}
	if len(a.Keywords) > 0 {
		details = append(details, "keywords: "+strings.Join(a.Keywords, ", "))
	}
	if a.Comparison.Active() {
		details = append(details, "comparison: "+a.Comparison.Annotation())
	}
	return Step{
		Kind:        StepParse,
		Description: fmt.Sprintf("Found %d entities and %d keywords", len(a.Entities), len(a.Keywords)),
		Details:     details,
		Confidence:  ParseConfidence,
	}
}

func searchStep(g *kgraph.Graph, results []hybrid.Result) Step {
	var details []string
	for i, r := range results {
		if i == maxExplained {
			break
		}
		e := r.Explanation
		details = append(details, fmt.Sprintf("%s scored %.3f (semantic %.2f, entity %.2f, keyword %.2f, graph %.2f)",
			r.NodeID, r.Score, e.SemanticScore, e.EntityScore, e.KeywordScore, e.GraphScore))
	}
	return Step{
		Kind:        StepSearch,
		Description: fmt.Sprintf("Searched %d nodes, %d results above threshold", g.Len(), len(results)),
		Details:     details,
		Confidence:  SearchConfidence,
	}
}

func filterStep(a query.Analysis) Step {
	seen := make(map[entity.Kind]struct{})
	var kinds []string
	for _, e := range a.Entities {
		if _, ok := seen[e.Kind]; ok {
			continue
		}
		seen[e.Kind] = struct{}{}
		kinds = append(kinds, string(e.Kind))
	}
	sort.Strings(kinds)
	return Step{
		Kind:        StepFilter,
		Description: "Filtered by entity types: " + strings.Join(kinds, ", "),
		Confidence:  FilterConfidence,
	}
}

func inferStep(results []hybrid.Result) (Step, bool) {
	var details []string
	for _, r := range results {
		for _, conn := range r.Explanation.GraphConnections {
			details = append(details, fmt.Sprintf("%s linked to %s via %s (%.2f)", r.NodeID, conn.NodeID, conn.Kind, conn.Weight))
		}
		if len(details) >= maxExplained {
			break
		}
	}
	if len(details) == 0 {
		return Step{}, false
	}
	return Step{
		Kind:        StepInfer,
		Description: "Inferred relevance from related nodes",
		Details:     details,
		Confidence:  InferConfidence,
	}, true
}

// String renders the chain as numbered lines.
func (c Chain) String() string {
	var b strings.Builder
	_ = c.Format(&b)
	return b.String()
}

// Format writes the chain to w.
func (c Chain) Format(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Reasoning for %q (confidence %.0f%%)\n", c.Query, c.Confidence*100); err != nil {
		return err
	}
	for i, s := range c.Steps {
		if _, err := fmt.Fprintf(w, "%d. [%s] %s (%.0f%%)\n", i+1, s.Kind, s.Description, s.Confidence*100); err != nil {
			return err
		}
		for _, d := range s.Details {
			if _, err := fmt.Fprintf(w, "   - %s\n", d); err != nil {
				return err
			}
		}
	}
	return nil
}
