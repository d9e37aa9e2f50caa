package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_InvoiceSentence(t *testing.T) {
	res := Extract("Invoice #123 for $500.00 due on 2024-01-15")

	money := res.ByKind(KindMoney)
	require.Len(t, money, 1)
	assert.Equal(t, "$500.00", money[0].Value)
	amount, ok := money[0].Number()
	require.True(t, ok)
	assert.InDelta(t, 500.00, amount, 1e-9)
	assert.Equal(t, RuleConfidence, money[0].Confidence)

	dates := res.ByKind(KindDate)
	require.Len(t, dates, 1)
	d, ok := dates[0].Time()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "date:2024-01-15", dates[0].Key())

	assert.Len(t, res.Entities, 2, "the #123 reference is not an entity")
	assert.Equal(t, []string{"invoice", "due"}, res.Keywords)
}

func TestExtract_SpansNeverOverlap(t *testing.T) {
	inputs := []string{
		"Invoice #123 for $500.00 due on 2024-01-15",
		"Paid $1,250.50 on 2024-03-01T10:30:00Z to acct #98765432 via card ending in 4242",
		"Call (555) 123-4567 or mail ops@example.com before 5pm, 12.5% fee, 3 weeks",
		"Meeting with Dr. Jane Smith at Acme Corp in Austin, TX on January 15th, 2024",
		"Numbers 1234567 and 3.14159 and 1,000,000 and 2nd place",
		"",
		"日本語のテキスト $30 と 2024-02-02",
	}
	for _, in := range inputs {
		res := Extract(in)
		for i := 0; i < len(res.Entities); i++ {
			for j := i + 1; j < len(res.Entities); j++ {
				assert.False(t, res.Entities[i].Span.Overlaps(res.Entities[j].Span),
					"%q: %v overlaps %v", in, res.Entities[i], res.Entities[j])
			}
			assert.Equal(t, in[res.Entities[i].Span.Start:res.Entities[i].Span.End], res.Entities[i].Value)
		}
	}
}

func TestExtract_ISODatePrecedesNumber(t *testing.T) {
	res := Extract("Report 2024-06-30")
	assert.Empty(t, res.ByKind(KindNumber))
	require.Len(t, res.ByKind(KindDate), 1)
}

func TestExtract_MalformedDateKeepsEntity(t *testing.T) {
	res := Extract("due 2024-13-45")
	dates := res.ByKind(KindDate)
	require.Len(t, dates, 1)
	assert.Nil(t, dates[0].Normalized)
	assert.Equal(t, "date:2024-13-45", dates[0].Key())
}

func TestExtract_WrittenDate(t *testing.T) {
	res := Extract("Paid on January 15th, 2024 in full")
	dates := res.ByKind(KindDate)
	require.Len(t, dates, 1)
	d, ok := dates[0].Time()
	require.True(t, ok)
	assert.Equal(t, "2024-01-15", d.Format("2006-01-02"))
}

func TestExtract_MoneyNotations(t *testing.T) {
	tests := []struct {
		text string
		want float64
	}{
		{"cost $1,250.50 total", 1250.50},
		{"budget EUR 300 approved", 300},
		{"about 45 dollars", 45},
		{"raised $2.5 million", 2.5e6},
		{"Total: 42.50", 42.50},
		{"£99", 99},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			money := Extract(tt.text).ByKind(KindMoney)
			require.Len(t, money, 1)
			got, ok := money[0].Number()
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestExtract_ContactsAndMeasures(t *testing.T) {
	res := Extract("Contact John.Doe@Example.com or (555) 123-4567, rate 4.5%, within 30 days, at 3:30 PM")

	email := res.ByKind(KindEmail)
	require.Len(t, email, 1)
	assert.Equal(t, "john.doe@example.com", email[0].Normalized)

	phone := res.ByKind(KindPhone)
	require.Len(t, phone, 1)
	assert.Equal(t, "5551234567", phone[0].Normalized)

	pct := res.ByKind(KindPercentage)
	require.Len(t, pct, 1)
	assert.Equal(t, 4.5, pct[0].Normalized)

	dur := res.ByKind(KindDuration)
	require.Len(t, dur, 1)
	assert.Equal(t, float64(30*86400), dur[0].Normalized)

	clock := res.ByKind(KindTime)
	require.Len(t, clock, 1)
	assert.Equal(t, "15:30", clock[0].Normalized)
}

func TestExtract_ContextWindow(t *testing.T) {
	res := Extract("The quarterly payment of $75 was received late")
	money := res.ByKind(KindMoney)
	require.Len(t, money, 1)
	assert.Contains(t, money[0].Context, "payment of $75 was")
}

func TestExtract_CustomRuleTable(t *testing.T) {
	x := NewExtractor(WithRules([]Rule{{
		Name:  "ticket",
		Kind:  KindAccount,
		Match: pattern(`\bTKT-\d+\b`),
	}}), WithKeywordLimit(1))

	res := x.Extract("see TKT-42 and TKT-7 tickets")
	require.Len(t, res.Entities, 2)
	assert.Nil(t, res.Entities[0].Normalized)
	assert.Equal(t, "account:tkt-42", res.Entities[0].Key())
	assert.Len(t, res.Keywords, 1)
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Hello, World! This is a TEST-123 of the API.")
	assert.Equal(t, []string{"hello", "world", "test", "123", "api"}, tokens)
}

func TestExtractKeywords_Scoring(t *testing.T) {
	kws := ExtractKeywords("apple apple banana kiwi 2024", 2)
	assert.Equal(t, []string{"apple", "banana"}, kws)
	assert.Nil(t, ExtractKeywords("the of 42", 5))
}
