package query

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	greaterThanRe = regexp.MustCompile(`(?i)(?:\b(?:over|above|exceeding|more\s+than|greater\s+than|at\s+least)|>=?)\s*\$\s?(\d[\d,]*(?:\.\d+)?)\s*(k|thousand|m|million)?\b`)
	lessThanRe    = regexp.MustCompile(`(?i)(?:\b(?:under|below|less\s+than|cheaper\s+than|at\s+most)|<=?)\s*\$\s?(\d[\d,]*(?:\.\d+)?)\s*(k|thousand|m|million)?\b`)
)

// Comparison is a numeric money constraint found in a query, such as
// "over $400". Nil bounds are absent.
type Comparison struct {
	MoneyGreaterThan *float64 `json:"moneyGreaterThan,omitempty"`
	MoneyLessThan    *float64 `json:"moneyLessThan,omitempty"`
}

// Active reports whether any bound is set.
func (c Comparison) Active() bool {
	return c.MoneyGreaterThan != nil || c.MoneyLessThan != nil
}

// Matches reports whether v satisfies every bound.
func (c Comparison) Matches(v float64) bool {
	if !c.Active() {
		return false
	}
	if c.MoneyGreaterThan != nil && v <= *c.MoneyGreaterThan {
		return false
	}
	if c.MoneyLessThan != nil && v >= *c.MoneyLessThan {
		return false
	}
	return true
}

// Annotation renders the bounds as "(>400)", "(<100)" or "(>100,<600)".
func (c Comparison) Annotation() string {
	var parts []string
	if c.MoneyGreaterThan != nil {
		parts = append(parts, ">"+formatAmount(*c.MoneyGreaterThan))
	}
	if c.MoneyLessThan != nil {
		parts = append(parts, "<"+formatAmount(*c.MoneyLessThan))
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// DetectComparison extracts "over $X" / "under $Y" style bounds. When a
// direction appears more than once the first occurrence wins.
func DetectComparison(q string) Comparison {
	var c Comparison
	if m := greaterThanRe.FindStringSubmatch(q); m != nil {
		if v, ok := parseAmount(m[1], m[2]); ok {
			c.MoneyGreaterThan = &v
		}
	}
	if m := lessThanRe.FindStringSubmatch(q); m != nil {
		if v, ok := parseAmount(m[1], m[2]); ok {
			c.MoneyLessThan = &v
		}
	}
	return c
}

func parseAmount(num, magnitude string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(magnitude) {
	case "k", "thousand":
		v *= 1e3
	case "m", "million":
		v *= 1e6
	}
	return v, true
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
