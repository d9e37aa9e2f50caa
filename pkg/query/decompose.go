package query

import (
	"regexp"
	"strings"
)

// Kind classifies the shape of a query.
type Kind string

const (
	KindSimple      Kind = "simple"
	KindComparison  Kind = "comparison"
	KindList        Kind = "list"
	KindAggregation Kind = "aggregation"
	KindTemporal    Kind = "temporal"
)

// Decomposition is the result of Decompose. Only comparisons produce more
// than one sub-query; the other kinds are tags over the original query.
type Decomposition struct {
	Kind       Kind     `json:"kind"`
	SubQueries []string `json:"subQueries"`
}

var (
	comparisonPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*(?:compare\s+)?(.+?)\s+(?:vs\.?|versus)\s+(.+?)\s*\??\s*$`),
		regexp.MustCompile(`(?i)^\s*compare\s+(.+?)\s+(?:to|with|and)\s+(.+?)\s*\??\s*$`),
		regexp.MustCompile(`(?i)\bdifference\s+between\s+(.+?)\s+and\s+(.+?)\s*\??\s*$`),
	}
	aggregationRe = regexp.MustCompile(`(?i)\b(?:how\s+many|how\s+much|count|total|sum|average|number\s+of)\b`)
	listRe        = regexp.MustCompile(`(?i)^\s*(?:list|show|enumerate|give\s+me)\b|\ball\b|\bevery\b`)
	temporalRe    = regexp.MustCompile(`(?i)\b(?:when|before|after|since|during|latest|recent|recently|last\s+(?:week|month|year)|this\s+(?:week|month|year)|in\s+\d{4})\b`)
)

// Decompose splits comparison queries ("X vs Y", "compare X to Y",
// "difference between X and Y") into two sub-queries and tags list,
// aggregation and temporal queries.
func Decompose(q string) Decomposition {
	q = strings.TrimSpace(q)
	for _, re := range comparisonPatterns {
		if m := re.FindStringSubmatch(q); m != nil {
			a, b := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
			if a != "" && b != "" {
				return Decomposition{Kind: KindComparison, SubQueries: []string{a, b}}
			}
		}
	}

	kind := KindSimple
	switch {
	case aggregationRe.MatchString(q):
		kind = KindAggregation
	case listRe.MatchString(q):
		kind = KindList
	case temporalRe.MatchString(q):
		kind = KindTemporal
	}
	return Decomposition{Kind: kind, SubQueries: []string{q}}
}
