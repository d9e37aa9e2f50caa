package search

// DefaultRRFK is the standard RRF smoothing constant.
const DefaultRRFK = 60

// Bounds of the rescaled RRF output. Keeping fused scores in a fixed band
// lets downstream code apply absolute thresholds to them.
const (
	fusedMax   = 1.0
	fusedMin   = 0.2
	fusedEqual = 0.5
)

// ReciprocalRankFusion merges ranked lists using RRF.
//
// The item at 0-indexed rank r of a list contributes 1/(k + r + 1); an id's
// contributions across lists are summed. Only rank matters, so lists with
// incompatible score scales (cosine, BM25, entity boosts) fuse cleanly.
//
// The output is sorted descending and rescaled linearly so the best item
// scores 1.0 and the worst 0.2. If every item ties, all score 0.5. Empty
// lists are skipped; k <= 0 uses DefaultRRFK.
//
// Example:
//
//	fused := search.ReciprocalRankFusion([][]search.RankedItem{
//		{{ID: "a"}, {ID: "b"}, {ID: "c"}},
//		{{ID: "b"}, {ID: "a"}, {ID: "c"}},
//	}, 60)
//	// a and b score 1.0, c scores 0.2
//
// Reference: Cormack, Clarke & Buettcher (2009)
// "Reciprocal Rank Fusion outperforms Condorcet and individual Rank
// Learning Methods."
func ReciprocalRankFusion(lists [][]RankedItem, k float64) []RankedItem {
	if k <= 0 {
		k = DefaultRRFK
	}

	scores := make(map[string]float64)
	var order []string
	for _, list := range lists {
		for r, item := range list {
			if _, seen := scores[item.ID]; !seen {
				order = append(order, item.ID)
			}
			scores[item.ID] += 1 / (k + float64(r) + 1)
		}
	}
	if len(order) == 0 {
		return nil
	}

	fused := make([]RankedItem, len(order))
	for i, id := range order {
		fused[i] = RankedItem{ID: id, Score: scores[id]}
	}
	SortRanked(fused)
	rescale(fused)
	return fused
}

// rescale maps sorted scores onto [fusedMin, fusedMax].
func rescale(items []RankedItem) {
	hi, lo := items[0].Score, items[len(items)-1].Score
	if hi == lo {
		for i := range items {
			items[i].Score = fusedEqual
		}
		return
	}
	span := hi - lo
	for i := range items {
		items[i].Score = fusedMin + (fusedMax-fusedMin)*(items[i].Score-lo)/span
	}
}

// WeightedList is a ranked list with a fusion weight.
type WeightedList struct {
	Weight float64
	Items  []RankedItem
}

// WeightedFusion combines scored lists linearly: each id scores
// Σ(w·s) / Σw, where the denominator sums the weights of every non-empty
// list with a positive weight and absent ids count as 0 in a list.
// Output is sorted descending, ties in first-seen order.
func WeightedFusion(lists []WeightedList) []RankedItem {
	var totalWeight float64
	scores := make(map[string]float64)
	var order []string
	for _, l := range lists {
		if l.Weight <= 0 || len(l.Items) == 0 {
			continue
		}
		totalWeight += l.Weight
		for _, item := range l.Items {
			if _, seen := scores[item.ID]; !seen {
				order = append(order, item.ID)
			}
			scores[item.ID] += l.Weight * item.Score
		}
	}
	if totalWeight == 0 {
		return nil
	}

	fused := make([]RankedItem, len(order))
	for i, id := range order {
		fused[i] = RankedItem{ID: id, Score: scores[id] / totalWeight}
	}
	SortRanked(fused)
	return fused
}

// MergeMax merges lists keeping the highest score seen per id.
func MergeMax(lists ...[]RankedItem) []RankedItem {
	best := make(map[string]float64)
	var order []string
	for _, list := range lists {
		for _, item := range list {
			prev, seen := best[item.ID]
			if !seen {
				order = append(order, item.ID)
			}
			if !seen || item.Score > prev {
				best[item.ID] = item.Score
			}
		}
	}
	out := make([]RankedItem, len(order))
	for i, id := range order {
		out[i] = RankedItem{ID: id, Score: best[id]}
	}
	SortRanked(out)
	return out
}
