package search

import (
	"math"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/entity"
)

// BM25Params holds the BM25 tuning constants.
type BM25Params struct {
	K1 float64 `yaml:"k1"` // term frequency saturation
	B  float64 `yaml:"b"`  // length normalization
}

// DefaultBM25Params returns k1=1.5, b=0.75.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.5, B: 0.75}
}

// Document is one text to index.
type Document struct {
	ID      string
	Content string
}

// BM25Index is an immutable inverted index with BM25 scoring.
//
// Tokenization is shared with keyword extraction (entity.Tokenize), so the
// same stop words and minimum token length apply to both.
//
// Example:
//
//	idx := search.NewBM25Index([]search.Document{
//		{ID: "a", Content: "invoice overdue"},
//		{ID: "b", Content: "meeting notes"},
//	}, search.DefaultBM25Params())
//	hits := idx.Search("overdue invoice", 10) // [{a ...}]
type BM25Index struct {
	params BM25Params

	// term -> docID -> term frequency
	invertedIndex map[string]map[string]int

	// docID -> token count
	docLengths map[string]int

	avgDocLength float64
	docCount     int

	// insertion order for deterministic iteration
	order []string
}

// NewBM25Index indexes docs. Documents without any token are not indexed;
// a repeated id replaces the earlier document.
func NewBM25Index(docs []Document, params BM25Params) *BM25Index {
	if params.K1 <= 0 {
		params.K1 = DefaultBM25Params().K1
	}
	if params.B < 0 || params.B > 1 {
		params.B = DefaultBM25Params().B
	}

	idx := &BM25Index{
		params:        params,
		invertedIndex: make(map[string]map[string]int),
		docLengths:    make(map[string]int),
	}
	for _, d := range docs {
		idx.add(d.ID, d.Content)
	}

	var total int
	for _, l := range idx.docLengths {
		total += l
	}
	if idx.docCount > 0 {
		idx.avgDocLength = float64(total) / float64(idx.docCount)
	}
	return idx
}

func (idx *BM25Index) add(id, text string) {
	tokens := entity.Tokenize(text)
	if len(tokens) == 0 {
		return
	}
	if _, exists := idx.docLengths[id]; exists {
		for _, docs := range idx.invertedIndex {
			delete(docs, id)
		}
	} else {
		idx.docCount++
		idx.order = append(idx.order, id)
	}
	idx.docLengths[id] = len(tokens)

	for _, tok := range tokens {
		docs := idx.invertedIndex[tok]
		if docs == nil {
			docs = make(map[string]int)
			idx.invertedIndex[tok] = docs
		}
		docs[id]++
	}
}

// Count returns the number of indexed documents.
func (idx *BM25Index) Count() int {
	return idx.docCount
}

// Params returns the scoring constants in use.
func (idx *BM25Index) Params() BM25Params {
	return idx.params
}

// IDF computes log((N - df + 0.5) / (df + 0.5) + 1), which stays
// non-negative even for terms present in every document.
func (idx *BM25Index) IDF(term string) float64 {
	df := float64(len(idx.invertedIndex[term]))
	n := float64(idx.docCount)
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

// ScoreDocument scores a single indexed document. Unknown ids score 0.
func (idx *BM25Index) ScoreDocument(query, id string) float64 {
	docLen, ok := idx.docLengths[id]
	if !ok {
		return 0
	}
	var score float64
	for _, term := range queryTerms(query) {
		tf := idx.invertedIndex[term][id]
		if tf == 0 {
			continue
		}
		score += idx.termScore(term, tf, docLen)
	}
	return score
}

// Search returns documents containing at least one query term, ordered by
// descending score and then by indexing order. A non-positive limit
// returns every match.
func (idx *BM25Index) Search(query string, limit int) []RankedItem {
	if idx.docCount == 0 {
		return nil
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for _, term := range terms {
		for id, tf := range idx.invertedIndex[term] {
			scores[id] += idx.termScore(term, tf, idx.docLengths[id])
		}
	}

	results := make([]RankedItem, 0, len(scores))
	for _, id := range idx.order {
		if s, ok := scores[id]; ok {
			results = append(results, RankedItem{ID: id, Score: s})
		}
	}
	SortRanked(results)
	return truncate(results, limit)
}

func (idx *BM25Index) termScore(term string, tf, docLen int) float64 {
	k1, b := idx.params.K1, idx.params.B
	f := float64(tf)
	norm := 1.0
	if idx.avgDocLength > 0 {
		norm = 1 - b + b*float64(docLen)/idx.avgDocLength
	}
	return idx.IDF(term) * f * (k1 + 1) / (f + k1*norm)
}

// queryTerms tokenizes a query and drops repeated terms.
func queryTerms(query string) []string {
	tokens := entity.Tokenize(query)
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
