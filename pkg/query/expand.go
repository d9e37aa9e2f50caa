package query

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/entity"
)

// Variant weights.
const (
	WeightOriginal           = 1.0
	WeightSynonym            = 0.8
	WeightAcronymExpansion   = 0.9
	WeightAcronymContraction = 0.85
	WeightKeyTerms           = 0.7
	WeightContext            = 0.6
)

// Source names where a variant came from.
type Source string

const (
	SourceOriginal           Source = "original"
	SourceSynonym            Source = "synonym"
	SourceAcronymExpansion   Source = "acronym_expansion"
	SourceAcronymContraction Source = "acronym_contraction"
	SourceKeyTerms           Source = "key_terms"
	SourceContext            Source = "context"
)

// Variant is one rewritten form of a query.
type Variant struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
	Source Source  `json:"source"`
}

// ExpandOptions configures Expand.
type ExpandOptions struct {
	IncludeSynonyms bool
	IncludeAcronyms bool
	// MaxExpansions caps the variants added to the original query.
	// Zero or less means DefaultMaxExpansions.
	MaxExpansions int
}

// DefaultMaxExpansions is the expansion cap used when none is set.
const DefaultMaxExpansions = 5

// DefaultExpandOptions enables everything with up to 5 expansions.
func DefaultExpandOptions() ExpandOptions {
	return ExpandOptions{IncludeSynonyms: true, IncludeAcronyms: true, MaxExpansions: DefaultMaxExpansions}
}

// Synonyms maps a lowercase term to substitutes, most useful first.
var Synonyms = map[string][]string{
	"auth":        {"authentication", "authorization"},
	"login":       {"sign in", "authentication"},
	"config":      {"configuration", "settings"},
	"settings":    {"configuration", "preferences"},
	"doc":         {"document", "documentation"},
	"docs":        {"documentation", "documents"},
	"db":          {"database"},
	"repo":        {"repository"},
	"env":         {"environment"},
	"error":       {"failure", "exception"},
	"bug":         {"defect", "issue"},
	"fix":         {"resolve", "repair"},
	"buy":         {"purchase"},
	"purchase":    {"buy", "order"},
	"payment":     {"transaction", "charge"},
	"payments":    {"transactions", "charges"},
	"transaction": {"payment", "purchase"},
	"invoice":     {"bill", "receipt"},
	"bill":        {"invoice"},
	"cost":        {"price", "expense"},
	"price":       {"cost", "amount"},
	"spend":       {"expense", "cost"},
	"customer":    {"client"},
	"client":      {"customer"},
	"employee":    {"staff", "worker"},
	"meeting":     {"appointment", "call"},
	"deadline":    {"due date"},
	"revenue":     {"income", "sales"},
	"profit":      {"earnings", "income"},
	"salary":      {"pay", "wage"},
	"phone":       {"telephone", "mobile"},
	"address":     {"location"},
	"car":         {"vehicle", "automobile"},
	"fast":        {"quick", "rapid"},
	"big":         {"large"},
	"small":       {"little", "minor"},
	"start":       {"begin", "launch"},
	"end":         {"finish", "close"},
	"delete":      {"remove"},
	"create":      {"add", "make"},
	"update":      {"modify", "change"},
}

// Acronyms maps a lowercase acronym to its expansion.
var Acronyms = map[string]string{
	"api":  "application programming interface",
	"ai":   "artificial intelligence",
	"ml":   "machine learning",
	"nlp":  "natural language processing",
	"llm":  "large language model",
	"rag":  "retrieval augmented generation",
	"ui":   "user interface",
	"ux":   "user experience",
	"db":   "database",
	"sql":  "structured query language",
	"kpi":  "key performance indicator",
	"roi":  "return on investment",
	"eta":  "estimated time of arrival",
	"faq":  "frequently asked questions",
	"hr":   "human resources",
	"pto":  "paid time off",
	"sla":  "service level agreement",
	"crm":  "customer relationship management",
	"erp":  "enterprise resource planning",
	"ceo":  "chief executive officer",
	"cfo":  "chief financial officer",
	"cto":  "chief technology officer",
	"q1":   "first quarter",
	"q2":   "second quarter",
	"q3":   "third quarter",
	"q4":   "fourth quarter",
	"yoy":  "year over year",
	"eod":  "end of day",
	"asap": "as soon as possible",
	"vpn":  "virtual private network",
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// words returns the lowercase words of q in order.
func words(q string) []string {
	return wordRe.FindAllString(strings.ToLower(q), -1)
}

func replaceWord(q, word, with string) string {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	return re.ReplaceAllLiteralString(q, with)
}

// Expand returns the original query at weight 1.0 followed by up to
// MaxExpansions rewritten variants, deduplicated by exact text.
func Expand(q string, opts ExpandOptions) []Variant {
	q = strings.TrimSpace(q)
	out := []Variant{{Text: q, Weight: WeightOriginal, Source: SourceOriginal}}
	if q == "" {
		return out
	}
	limit := opts.MaxExpansions
	if limit <= 0 {
		limit = DefaultMaxExpansions
	}
	seen := map[string]struct{}{q: {}}
	add := func(text string, weight float64, src Source) bool {
		if len(out)-1 >= limit {
			return false
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return true
		}
		if _, dup := seen[text]; dup {
			return true
		}
		seen[text] = struct{}{}
		out = append(out, Variant{Text: text, Weight: weight, Source: src})
		return true
	}

	tokens := words(q)
	lowerQ := strings.ToLower(q)

	if opts.IncludeSynonyms {
		for _, tok := range tokens {
			for _, syn := range Synonyms[tok] {
				if !add(replaceWord(q, tok, syn), WeightSynonym, SourceSynonym) {
					return out
				}
			}
		}
	}

	if opts.IncludeAcronyms {
		for _, tok := range tokens {
			if exp, ok := Acronyms[tok]; ok {
				if !add(replaceWord(q, tok, exp), WeightAcronymExpansion, SourceAcronymExpansion) {
					return out
				}
			}
		}
		for _, acr := range sortedKeys(Acronyms) {
			exp := Acronyms[acr]
			if strings.Contains(lowerQ, exp) {
				re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(exp) + `\b`)
				if !add(re.ReplaceAllLiteralString(q, strings.ToUpper(acr)), WeightAcronymContraction, SourceAcronymContraction) {
					return out
				}
			}
		}
	}

	if len(tokens) > 2 {
		var key []string
		for _, tok := range tokens {
			if !entity.IsStopWord(tok) {
				key = append(key, tok)
			}
		}
		if len(key) > 0 && len(key) < len(tokens) {
			add(strings.Join(key, " "), WeightKeyTerms, SourceKeyTerms)
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
