package search

import (
	"math"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/math/vector"
)

// Candidate is a result considered for diversity reranking.
type Candidate struct {
	ID      string
	Score   float64
	Content string
}

// MMROptions configures MMRRerank.
type MMROptions struct {
	// Lambda balances relevance (1.0) against diversity (0.0).
	Lambda float64
	// DiversityThreshold excludes a candidate whose similarity to an
	// already selected result exceeds it. Zero or negative disables it.
	DiversityThreshold float64
}

// DefaultMMROptions returns lambda 0.7 and threshold 0.85.
func DefaultMMROptions() MMROptions {
	return MMROptions{Lambda: 0.7, DiversityThreshold: 0.85}
}

// DefaultDiversityFilterThreshold is the similarity above which
// DiversityFilter drops a candidate.
const DefaultDiversityFilterThreshold = 0.9

// MMRRerank applies Maximal Marginal Relevance and returns at most k
// candidates.
//
// Formula: MMR(d) = λ·relevance(d) − (1−λ)·max(sim(d, selected))
//
// Relevance is the candidate's score. Similarity is cosine over
// embeddings when both candidates have one and Jaccard over content words
// otherwise. Selection is greedy: the most relevant candidate first, then
// repeatedly the remaining candidate with the best MMR value. Fewer than k
// results come back when the pool runs out.
//
// Reference: Carbonell & Goldstein (1998)
// "The Use of MMR, Diversity-Based Reranking for Reordering Documents
// and Producing Summaries"
func MMRRerank(cands []Candidate, embeddings map[string][]float32, k int, opts MMROptions) []Candidate {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	lambda := opts.Lambda
	if lambda < 0 || lambda > 1 || math.IsNaN(lambda) {
		lambda = DefaultMMROptions().Lambda
	}

	sim := newSimilarity(cands, embeddings)
	remaining := make([]int, len(cands))
	for i := range cands {
		remaining[i] = i
	}
	selected := make([]int, 0, k)

	for len(selected) < k && len(remaining) > 0 {
		bestPos := -1
		bestMMR := math.Inf(-1)

		for pos, ci := range remaining {
			maxSim := 0.0
			for _, si := range selected {
				if s := sim.between(ci, si); s > maxSim {
					maxSim = s
				}
			}
			if opts.DiversityThreshold > 0 && maxSim > opts.DiversityThreshold {
				continue
			}
			mmr := lambda*cands[ci].Score - (1-lambda)*maxSim
			if mmr > bestMMR {
				bestMMR = mmr
				bestPos = pos
			}
		}
		if bestPos < 0 {
			break
		}
		selected = append(selected, remaining[bestPos])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	out := make([]Candidate, len(selected))
	for i, ci := range selected {
		out[i] = cands[ci]
	}
	return out
}

// DiversityFilter keeps candidates in order, dropping any whose similarity
// to an already kept candidate exceeds threshold. A non-positive threshold
// uses DefaultDiversityFilterThreshold.
func DiversityFilter(cands []Candidate, embeddings map[string][]float32, threshold float64) []Candidate {
	if threshold <= 0 {
		threshold = DefaultDiversityFilterThreshold
	}
	sim := newSimilarity(cands, embeddings)
	var kept []int
	for i := range cands {
		redundant := false
		for _, j := range kept {
			if sim.between(i, j) > threshold {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, i)
		}
	}
	out := make([]Candidate, len(kept))
	for i, ci := range kept {
		out[i] = cands[ci]
	}
	return out
}

type similarity struct {
	cands      []Candidate
	embeddings map[string][]float32
	words      []map[string]struct{}
}

func newSimilarity(cands []Candidate, embeddings map[string][]float32) *similarity {
	return &similarity{
		cands:      cands,
		embeddings: embeddings,
		words:      make([]map[string]struct{}, len(cands)),
	}
}

func (s *similarity) between(i, j int) float64 {
	a, b := s.embeddings[s.cands[i].ID], s.embeddings[s.cands[j].ID]
	if len(a) > 0 && len(b) > 0 {
		return vector.CosineSimilarity(a, b)
	}
	return vector.Jaccard(s.wordSet(i), s.wordSet(j))
}

func (s *similarity) wordSet(i int) map[string]struct{} {
	if s.words[i] == nil {
		s.words[i] = vector.WordSet(s.cands[i].Content)
	}
	return s.words[i]
}
