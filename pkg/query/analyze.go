// Package query analyzes search queries before scoring: entity and keyword
// extraction, money comparisons ("over $400"), decomposition of compound
// questions and expansion into weighted variants.
//
// Every function here is pure.
package query

import (
	"strings"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/entity"
)

// DataListingTriggers are words that mark a query asking to list records
// ("show all transactions"). A word matches a trigger exactly or with a
// trailing "s".
var DataListingTriggers = []string{
	"list", "show", "find", "all", "every", "detail", "transaction",
	"date", "record", "entry", "entries", "item", "payment", "purchase",
	"history", "statement", "invoice", "expense", "order",
}

// IsDataListing reports whether q asks for a listing and carries no
// entity to match against.
func IsDataListing(q string, entityCount int) bool {
	if entityCount > 0 {
		return false
	}
	for _, w := range words(q) {
		for _, t := range DataListingTriggers {
			if w == t || w == t+"s" {
				return true
			}
		}
	}
	return false
}

// Analysis is everything derived from a query before scoring.
type Analysis struct {
	Query         string          `json:"query"`
	Entities      []entity.Entity `json:"entities"`
	Keywords      []string        `json:"keywords"`
	Comparison    Comparison      `json:"comparison"`
	Decomposition Decomposition   `json:"decomposition"`
	Variants      []Variant       `json:"variants"`
	DataListing   bool            `json:"dataListing"`
}

// Analyze runs the full analysis with the given expansion options.
func Analyze(q string, opts ExpandOptions) Analysis {
	return AnalyzeWith(entity.NewExtractor(), q, opts)
}

// AnalyzeWith is Analyze with a caller-supplied extractor.
func AnalyzeWith(x *entity.Extractor, q string, opts ExpandOptions) Analysis {
	q = strings.TrimSpace(q)
	res := x.Extract(q)
	return Analysis{
		Query:         q,
		Entities:      res.Entities,
		Keywords:      res.Keywords,
		Comparison:    DetectComparison(q),
		Decomposition: Decompose(q),
		Variants:      Expand(q, opts),
		DataListing:   IsDataListing(q, len(res.Entities)),
	}
}

// ContextKeywords returns up to n keywords of a conversation excerpt that
// do not already occur in q, in keyword-rank order.
func ContextKeywords(conversation, q string, n int) []string {
	if n <= 0 || strings.TrimSpace(conversation) == "" {
		return nil
	}
	inQuery := make(map[string]struct{})
	for _, w := range words(q) {
		inQuery[w] = struct{}{}
	}
	var out []string
	for _, kw := range entity.ExtractKeywords(conversation, entity.DefaultKeywordLimit) {
		if _, ok := inQuery[kw]; ok {
			continue
		}
		out = append(out, kw)
		if len(out) == n {
			break
		}
	}
	return out
}

// ContextVariant builds the conversation-context variant: the query followed
// by the context keywords. ok is false when the context adds nothing.
func ContextVariant(q string, keywords []string) (Variant, bool) {
	if len(keywords) == 0 {
		return Variant{}, false
	}
	return Variant{
		Text:   strings.TrimSpace(q) + " " + strings.Join(keywords, " "),
		Weight: WeightContext,
		Source: SourceContext,
	}, true
}
