// Package search provides the ranking primitives shared by the retrieval
// engine: a BM25 lexical index, rank fusion and diversity reranking.
//
// Everything in this package operates on immutable inputs and is safe for
// concurrent use once constructed.
package search

import "sort"

// RankedItem is a scored entry of a ranked list.
type RankedItem struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SortRanked sorts items by descending score. Equal scores keep their
// relative order, so callers control tie-breaking through input order.
func SortRanked(items []RankedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}

func truncate(items []RankedItem, limit int) []RankedItem {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
