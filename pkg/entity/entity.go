// Package entity recognizes typed entities (dates, money, contacts,
// identifiers, ...) and ranked keywords in free text.
//
// Extraction is pure pattern matching: an ordered table of rules is applied
// to the text and the first rule to claim a byte range wins. Rules are
// ordered most-specific first, so an ISO date is claimed before the generic
// large-number rule can see its digits.
//
// Example:
//
//	res := entity.Extract("Invoice #123 for $500.00 due on 2024-01-15")
//	for _, e := range res.Entities {
//		fmt.Printf("%s %q -> %v\n", e.Kind, e.Value, e.Normalized)
//	}
//	// money "$500.00" -> 500
//	// date "2024-01-15" -> 2024-01-15 00:00:00 +0000 UTC
package entity

import (
	"strconv"
	"strings"
	"time"
)

// Kind is the closed set of entity types the extractor can emit.
type Kind string

const (
	KindDate         Kind = "date"
	KindTime         Kind = "time"
	KindDateTime     Kind = "datetime"
	KindMoney        Kind = "money"
	KindPercentage   Kind = "percentage"
	KindEmail        Kind = "email"
	KindPhone        Kind = "phone"
	KindURL          Kind = "url"
	KindNumber       Kind = "number"
	KindCard         Kind = "card"
	KindAccount      Kind = "account"
	KindPerson       Kind = "person"
	KindOrganization Kind = "organization"
	KindLocation     Kind = "location"
	KindDuration     Kind = "duration"
	KindOrdinal      Kind = "ordinal"
	KindKeyword      Kind = "keyword"
)

// RuleConfidence is the fixed confidence assigned to every rule-based match.
const RuleConfidence = 0.9

// Span is a half-open byte range [Start, End) into the source text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether two spans share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Entity is one typed match. Entities are values; nothing mutates them
// after extraction.
//
// Normalized holds a float64 (money, percentage, number, ordinal, duration
// in seconds), a time.Time (date, datetime) or a string (everything else).
// It is nil when the matched text could not be normalized.
type Entity struct {
	Kind       Kind    `json:"type"`
	Value      string  `json:"value"`
	Normalized any     `json:"normalized,omitempty"`
	Confidence float64 `json:"confidence"`
	Span       Span    `json:"span"`
	Context    string  `json:"context,omitempty"`
}

// Number returns the numeric normalized value, if there is one.
func (e Entity) Number() (float64, bool) {
	f, ok := e.Normalized.(float64)
	return f, ok
}

// Time returns the date/datetime normalized value, if there is one.
func (e Entity) Time() (time.Time, bool) {
	t, ok := e.Normalized.(time.Time)
	return t, ok
}

// NormalizedString renders the normalized value in a canonical, lowercased
// form, falling back to the raw matched text.
func (e Entity) NormalizedString() string {
	switch v := e.Normalized.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		if e.Kind == KindDateTime {
			return v.UTC().Format(time.RFC3339)
		}
		return v.Format("2006-01-02")
	case string:
		return strings.ToLower(v)
	default:
		return strings.ToLower(strings.TrimSpace(e.Value))
	}
}

// Key is the index key used by the knowledge graph: "type:normalized".
func (e Entity) Key() string {
	return string(e.Kind) + ":" + e.NormalizedString()
}

// Result is the outcome of one extraction call.
type Result struct {
	Entities []Entity `json:"entities"`
	Keywords []string `json:"keywords"`
}

// ByKind returns the entities of the given kind, in text order.
func (r Result) ByKind(kind Kind) []Entity {
	var out []Entity
	for _, e := range r.Entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
