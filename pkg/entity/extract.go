package entity

import (
	"sort"
	"unicode/utf8"
)

// DefaultKeywordLimit is the number of keywords returned by Extract.
const DefaultKeywordLimit = 20

// contextRadius is how many bytes of surrounding text are kept per entity.
const contextRadius = 30

// Extractor applies a rule table to text. The zero value is not usable;
// construct one with NewExtractor.
type Extractor struct {
	rules        []Rule
	keywordLimit int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRules replaces the rule table. Order is priority.
func WithRules(rules []Rule) Option {
	return func(e *Extractor) { e.rules = rules }
}

// WithKeywordLimit sets how many keywords are returned.
func WithKeywordLimit(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.keywordLimit = n
		}
	}
}

// NewExtractor creates an extractor over DefaultRules.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{rules: DefaultRules, keywordLimit: DefaultKeywordLimit}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = NewExtractor()

// Extract runs the default extractor.
func Extract(text string) Result {
	return defaultExtractor.Extract(text)
}

// Extract finds entities and keywords in text. It never fails: text that
// matches a rule but cannot be normalized still yields an entity with a nil
// Normalized value.
//
// Returned entities are sorted by position and their spans never overlap.
func (x *Extractor) Extract(text string) Result {
	res := Result{Keywords: ExtractKeywords(text, x.keywordLimit)}
	if text == "" {
		return res
	}

	claimed := make([]bool, len(text))
	for _, rule := range x.rules {
		for _, loc := range rule.Match(text) {
			start, end := loc[0], loc[1]
			if start >= end || isClaimed(claimed, start, end) {
				continue
			}
			for i := start; i < end; i++ {
				claimed[i] = true
			}

			value := text[start:end]
			var normalized any
			if rule.Normalize != nil {
				normalized = rule.Normalize(value)
			}
			res.Entities = append(res.Entities, Entity{
				Kind:       rule.Kind,
				Value:      value,
				Normalized: normalized,
				Confidence: RuleConfidence,
				Span:       Span{Start: start, End: end},
				Context:    surrounding(text, start, end),
			})
		}
	}

	sort.SliceStable(res.Entities, func(i, j int) bool {
		return res.Entities[i].Span.Start < res.Entities[j].Span.Start
	})
	return res
}

func isClaimed(claimed []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}

// surrounding returns a window of text around [start, end), snapped to rune
// boundaries.
func surrounding(text string, start, end int) string {
	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	to := end + contextRadius
	if to > len(text) {
		to = len(text)
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return text[from:to]
}
