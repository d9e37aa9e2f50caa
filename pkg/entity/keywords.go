package entity

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// MinTokenLength is the shortest token kept by Tokenize.
const MinTokenLength = 3

// stopWords is shared by keyword extraction and the BM25 index.
var stopWords = map[string]bool{
	"a": true, "about": true, "above": true, "after": true, "again": true,
	"also": true, "am": true, "an": true, "and": true, "any": true,
	"are": true, "as": true, "at": true, "be": true, "been": true, "before": true,
	"being": true, "below": true, "between": true, "both": true, "but": true,
	"by": true, "can": true, "could": true, "did": true, "do": true, "does": true,
	"doing": true, "down": true, "during": true, "each": true, "few": true,
	"for": true, "from": true, "further": true, "greater": true, "had": true,
	"has": true, "have": true, "having": true, "he": true, "her": true,
	"here": true, "hers": true, "him": true, "his": true, "how": true,
	"i": true, "if": true, "in": true, "into": true, "is": true, "it": true,
	"its": true, "just": true, "less": true, "me": true, "more": true,
	"most": true, "my": true, "no": true, "nor": true, "not": true, "now": true,
	"of": true, "off": true, "on": true, "once": true, "only": true, "or": true,
	"other": true, "our": true, "ours": true, "out": true, "over": true,
	"own": true, "same": true, "she": true, "should": true, "so": true,
	"some": true, "such": true, "than": true, "that": true, "the": true,
	"their": true, "theirs": true, "them": true, "then": true, "there": true,
	"these": true, "they": true, "this": true, "those": true, "through": true,
	"to": true, "too": true, "under": true, "until": true, "up": true,
	"very": true, "was": true, "we": true, "were": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "who": true,
	"whom": true, "why": true, "will": true, "with": true, "would": true,
	"you": true, "your": true, "yours": true,
}

// IsStopWord reports whether a lowercased word is filtered by Tokenize.
func IsStopWord(word string) bool {
	return stopWords[word]
}

// Tokenize lowercases text, splits it on anything that is not a letter or
// digit, and drops stop words and tokens shorter than MinTokenLength.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})

	tokens := words[:0]
	for _, w := range words {
		if len([]rune(w)) < MinTokenLength || stopWords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

func isNumeral(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return word != ""
}

// ExtractKeywords returns the top n keywords of text scored by
// frequency × (1 + ln(length)). Pure numerals are skipped. Ties are broken
// alphabetically so the output is deterministic.
func ExtractKeywords(text string, n int) []string {
	if n <= 0 {
		n = DefaultKeywordLimit
	}

	freq := make(map[string]int)
	for _, tok := range Tokenize(text) {
		if isNumeral(tok) {
			continue
		}
		freq[tok]++
	}
	if len(freq) == 0 {
		return nil
	}

	type scored struct {
		word  string
		score float64
	}
	ranked := make([]scored, 0, len(freq))
	for w, f := range freq {
		ranked = append(ranked, scored{w, float64(f) * (1 + math.Log(float64(len([]rune(w)))))})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].word < ranked[j].word
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.word
	}
	return out
}
