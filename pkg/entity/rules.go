package entity

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Matcher returns the [start, end) byte offsets of every candidate match.
type Matcher func(text string) [][]int

// Normalizer converts matched text into a typed value; nil means "could not
// normalize" and the entity is still emitted.
type Normalizer func(value string) any

// Rule is one row of the extraction table.
type Rule struct {
	Name      string
	Kind      Kind
	Match     Matcher
	Normalize Normalizer
}

// pattern builds a Matcher from a regular expression.
func pattern(expr string) Matcher {
	re := regexp.MustCompile(expr)
	return func(text string) [][]int {
		return re.FindAllStringIndex(text, -1)
	}
}

// trimmed wraps a Matcher and drops trailing punctuation from each match.
func trimmed(m Matcher, cutset string) Matcher {
	return func(text string) [][]int {
		locs := m(text)
		for _, loc := range locs {
			for loc[1] > loc[0] && strings.ContainsRune(cutset, rune(text[loc[1]-1])) {
				loc[1]--
			}
		}
		return locs
	}
}

const monthNames = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

// DefaultRules is the extraction table in priority order. Earlier rules win
// overlapping byte ranges, so the list runs from most to least specific.
var DefaultRules = []Rule{
	{
		Name:      "datetime_iso",
		Kind:      KindDateTime,
		Match:     pattern(`\b\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?`),
		Normalize: normalizeDateTime,
	},
	{
		Name:      "date_iso",
		Kind:      KindDate,
		Match:     pattern(`\b\d{4}-\d{2}-\d{2}\b`),
		Normalize: layouts("2006-01-02"),
	},
	{
		Name:      "date_us",
		Kind:      KindDate,
		Match:     pattern(`\b\d{1,2}/\d{1,2}/(?:\d{4}|\d{2})\b`),
		Normalize: layouts("1/2/2006", "1/2/06"),
	},
	{
		Name:      "date_eu",
		Kind:      KindDate,
		Match:     pattern(`\b\d{1,2}\.\d{1,2}\.\d{4}\b`),
		Normalize: layouts("2.1.2006"),
	},
	{
		Name: "date_written",
		Kind: KindDate,
		Match: pattern(`(?i)\b(?:` + monthNames + `)\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b` +
			`|\b\d{1,2}(?:st|nd|rd|th)?\s+(?:` + monthNames + `)\.?,?\s+\d{4}\b`),
		Normalize: normalizeWrittenDate,
	},
	{
		Name:      "email",
		Kind:      KindEmail,
		Match:     pattern(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		Normalize: lowerString,
	},
	{
		Name:      "url",
		Kind:      KindURL,
		Match:     trimmed(pattern(`\bhttps?://[^\s<>"']+|\bwww\.[^\s<>"']+`), ".,;:!?)]}"),
		Normalize: lowerString,
	},
	{
		Name:      "card",
		Kind:      KindCard,
		Match:     pattern(`\b(?:\d{4}[ -]?){3}\d{4}\b|(?:\*{2,}|[xX]{4,})[ -]?\d{4}\b|(?i)\bending\s+in\s+\d{4}\b`),
		Normalize: lastDigits(4),
	},
	{
		Name:      "account",
		Kind:      KindAccount,
		Match:     pattern(`(?i)\b(?:account|acct)\.?\s*(?:number|num|no\.?|#)?\s*[:#]?\s*[0-9xX*]{0,12}\d{4}\b|\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`),
		Normalize: accountID,
	},
	{
		Name:      "phone",
		Kind:      KindPhone,
		Match:     pattern(`(?:\+\d{1,3}[\s.-]?)?(?:\(\d{3}\)\s?|\b\d{3}[\s.-])\d{3}[\s.-]\d{4}\b`),
		Normalize: digitsOnly,
	},
	{
		Name:      "money_symbol",
		Kind:      KindMoney,
		Match:     pattern(`[$€£¥₹]\s?\d{1,3}(?:,\d{3})+(?:\.\d+)?(?:\s?(?:million|billion|thousand|[kKmMbB])\b)?|[$€£¥₹]\s?\d+(?:\.\d+)?(?:\s?(?:million|billion|thousand|[kKmMbB])\b)?`),
		Normalize: normalizeMoney,
	},
	{
		Name:      "money_code",
		Kind:      KindMoney,
		Match:     pattern(`\b(?:USD|EUR|GBP|JPY|CAD|AUD|INR|CHF)\s?\d[\d,]*(?:\.\d+)?\b|(?i)\b\d[\d,]*(?:\.\d+)?\s?(?:usd|eur|gbp|jpy|cad|aud|inr|chf|dollars?|euros?|pounds?|bucks)\b`),
		Normalize: normalizeMoney,
	},
	{
		Name:      "percentage",
		Kind:      KindPercentage,
		Match:     pattern(`(?i)\b\d+(?:\.\d+)?\s?(?:%|percent\b|pct\b)`),
		Normalize: normalizePercentage,
	},
	{
		Name:      "time",
		Kind:      KindTime,
		Match:     pattern(`(?i)\b(?:[01]?\d|2[0-3]):[0-5]\d(?::[0-5]\d)?(?:\s?[ap]\.?m\b\.?)?|(?i)\b(?:1[0-2]|0?[1-9])\s?[ap]\.?m\b\.?`),
		Normalize: normalizeClock,
	},
	{
		Name:      "duration",
		Kind:      KindDuration,
		Match:     pattern(`(?i)\b\d+(?:\.\d+)?\s?(?:seconds?|secs?|minutes?|mins?|hours?|hrs?|days?|weeks?|wks?|months?|years?|yrs?)\b`),
		Normalize: normalizeDuration,
	},
	{
		Name:      "person_titled",
		Kind:      KindPerson,
		Match:     pattern(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?`),
		Normalize: lowerString,
	},
	{
		Name:      "organization_suffix",
		Kind:      KindOrganization,
		Match:     pattern(`\b[A-Z][A-Za-z&]*(?:\s+[A-Z][A-Za-z&]*)*\s+(?:Inc|LLC|Ltd|Corp|Corporation|Company|GmbH|Bank|University)\b\.?`),
		Normalize: lowerString,
	},
	{
		Name:      "location_city_state",
		Kind:      KindLocation,
		Match:     pattern(`\b[A-Z][a-z]+(?:\s[A-Z][a-z]+)?,\s(?:[A-Z]{2}|USA|UK)\b`),
		Normalize: lowerString,
	},
	{
		Name:      "ordinal",
		Kind:      KindOrdinal,
		Match:     pattern(`(?i)\b\d+(?:st|nd|rd|th)\b|(?i)\b(?:first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth)\b`),
		Normalize: normalizeOrdinal,
	},
	{
		// Bare amounts with exactly two decimals read as money ("total 42.50").
		Name:      "money_bare",
		Kind:      KindMoney,
		Match:     pattern(`\b\d{1,3}(?:,\d{3})+\.\d{2}\b|\b\d+\.\d{2}\b`),
		Normalize: normalizeMoney,
	},
	{
		Name:      "number",
		Kind:      KindNumber,
		Match:     pattern(`\b\d{1,3}(?:,\d{3})+(?:\.\d+)?\b|\b\d+\.\d+\b|\b\d{4,}\b`),
		Normalize: normalizeNumber,
	},
}

func layouts(formats ...string) Normalizer {
	return func(value string) any {
		for _, f := range formats {
			if t, err := time.Parse(f, strings.TrimSpace(value)); err == nil {
				return t
			}
		}
		return nil
	}
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z07:00",
}

func normalizeDateTime(value string) any {
	for _, f := range dateTimeLayouts {
		if t, err := time.Parse(f, value); err == nil {
			return t.UTC()
		}
	}
	return nil
}

var ordinalSuffix = regexp.MustCompile(`(?i)(\d)(st|nd|rd|th)\b`)

func normalizeWrittenDate(value string) any {
	cleaned := ordinalSuffix.ReplaceAllString(value, "$1")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	t, err := dateparse.ParseIn(cleaned, time.UTC)
	if err != nil {
		return nil
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var magnitudes = map[string]float64{
	"k": 1e3, "thousand": 1e3,
	"m": 1e6, "million": 1e6,
	"b": 1e9, "billion": 1e9,
}

// normalizeMoney strips currency markers and thousands separators.
func normalizeMoney(value string) any {
	lower := strings.ToLower(strings.TrimSpace(value))
	multiplier := 1.0
	for _, suffix := range []string{"thousand", "million", "billion", "k", "m", "b"} {
		if strings.HasSuffix(lower, suffix) {
			rest := strings.TrimSpace(strings.TrimSuffix(lower, suffix))
			if rest != "" && rest[len(rest)-1] >= '0' && rest[len(rest)-1] <= '9' {
				multiplier = magnitudes[suffix]
				lower = rest
			}
			break
		}
	}
	var b strings.Builder
	for _, r := range lower {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(strings.Trim(b.String(), "."), 64)
	if err != nil {
		return nil
	}
	return f * multiplier
}

func normalizePercentage(value string) any {
	lower := strings.ToLower(value)
	for _, s := range []string{"%", "percent", "pct"} {
		lower = strings.ReplaceAll(lower, s, "")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(lower), 64)
	if err != nil {
		return nil
	}
	return f
}

func normalizeNumber(value string) any {
	f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return nil
	}
	return f
}

var clockParts = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?(?::(\d{2}))?\s?(?:([ap])\.?m\.?)?$`)

// normalizeClock renders a time of day as 24h "15:04".
func normalizeClock(value string) any {
	m := clockParts.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return nil
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	switch strings.ToLower(m[4]) {
	case "p":
		if hour < 12 {
			hour += 12
		}
	case "a":
		if hour == 12 {
			hour = 0
		}
	}
	if hour > 23 || minute > 59 {
		return nil
	}
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC).Format("15:04")
}

var durationUnits = []struct {
	prefix  string
	seconds float64
}{
	{"sec", 1},
	{"min", 60},
	{"hour", 3600},
	{"hr", 3600},
	{"day", 86400},
	{"week", 7 * 86400},
	{"wk", 7 * 86400},
	{"month", 30 * 86400},
	{"year", 365 * 86400},
	{"yr", 365 * 86400},
}

// normalizeDuration converts "3 days" into seconds.
func normalizeDuration(value string) any {
	lower := strings.ToLower(value)
	i := 0
	for i < len(lower) && (lower[i] == '.' || (lower[i] >= '0' && lower[i] <= '9')) {
		i++
	}
	n, err := strconv.ParseFloat(lower[:i], 64)
	if err != nil {
		return nil
	}
	unit := strings.TrimSpace(lower[i:])
	for _, u := range durationUnits {
		if strings.HasPrefix(unit, u.prefix) {
			return n * u.seconds
		}
	}
	return nil
}

var ordinalWords = map[string]float64{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

func normalizeOrdinal(value string) any {
	lower := strings.ToLower(value)
	if f, ok := ordinalWords[lower]; ok {
		return f
	}
	digits := strings.TrimRight(lower, "stndrh")
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil
	}
	return f
}

func lowerString(value string) any {
	return strings.ToLower(strings.TrimSpace(value))
}

func digitsOnly(value string) any {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	return b.String()
}

func lastDigits(n int) Normalizer {
	return func(value string) any {
		d, ok := digitsOnly(value).(string)
		if !ok || len(d) < n {
			return nil
		}
		return d[len(d)-n:]
	}
}

// accountID keeps the trailing identifier of an "account no. 1234" match.
func accountID(value string) any {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ' ' || r == ':' || r == '#'
	})
	if len(fields) == 0 {
		return nil
	}
	return strings.ToLower(fields[len(fields)-1])
}
