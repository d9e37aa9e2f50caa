// Package vector provides the similarity measures shared by the scorer and
// the diversity reranker.
//
// Dense similarity (cosine) is used whenever both sides carry an embedding.
// Sparse similarity (Jaccard over word sets) is the fallback for content
// that has no cached embedding.
package vector

import (
	"math"
	"strings"
	"unicode"
)

// CosineSimilarity calculates cosine similarity between two float32 vectors.
// Returns value in range [-1, 1] where 1 = identical, 0 = orthogonal, -1 = opposite.
//
// Vectors of different dimensionality (for example embeddings produced by two
// different models) and zero vectors yield 0 rather than an error.
//
// Uses float64 accumulation for precision, even with float32 inputs.
//
// Example:
//
//	a := []float32{1.0, 2.0, 3.0}
//	b := []float32{4.0, 5.0, 6.0}
//	sim := CosineSimilarity(a, b)  // Returns 0.9746318461970762
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProd, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProd += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProd / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push identical vectors a hair past 1.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim
}

// WordSet returns the set of lowercased words longer than two characters.
func WordSet(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets have similarity 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// JaccardStrings is Jaccard over two string slices treated as sets.
func JaccardStrings(a, b []string) float64 {
	return Jaccard(toSet(a), toSet(b))
}

// TextSimilarity is Jaccard similarity over the word sets of two texts.
func TextSimilarity(a, b string) float64 {
	return Jaccard(WordSet(a), WordSet(b))
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
