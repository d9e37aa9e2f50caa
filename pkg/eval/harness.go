// Package eval measures retrieval quality of the search engine against
// suites of labelled queries.
//
// A suite lists queries together with the node IDs a good answer should
// contain. The harness runs every query through a Searcher and reports the
// usual IR metrics:
//   - Precision@K and Recall@K
//   - MRR (rank of the first relevant hit)
//   - NDCG@K, using graded relevance when the case provides it
//   - MAP and hit rate
//
// Example:
//
//	h := eval.NewHarness(eng)
//	if err := h.LoadSuite("testdata/suite.json"); err != nil {
//		return err
//	}
//	res, err := h.Run(ctx)
//	if err != nil {
//		return err
//	}
//	eval.NewReporter(os.Stdout).PrintSummary(res)
package eval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/engine"
)

// RecallDepth is the TopK used for cases that do not set their own options.
const RecallDepth = 50

// ErrNoTestCases is returned by Run when nothing was added to the harness.
var ErrNoTestCases = errors.New("no test cases defined")

// Searcher is the part of the engine the harness drives.
type Searcher interface {
	Search(ctx context.Context, q string, opts engine.SearchOptions) (*engine.Response, error)
}

// TestCase is a single labelled query.
type TestCase struct {
	Name  string `json:"name"`
	Query string `json:"query"`

	// Expected holds the relevant node IDs.
	Expected []string `json:"expected"`

	// RelevanceGrades maps node ID to a 0-3 grade for NDCG. When nil every
	// expected node has grade 1.
	RelevanceGrades map[string]int `json:"relevance_grades,omitempty"`

	Tags    []string              `json:"tags,omitempty"`
	Options *engine.SearchOptions `json:"options,omitempty"`
}

// HasTag reports whether the case carries tag.
func (tc TestCase) HasTag(tag string) bool {
	return slices.Contains(tc.Tags, tag)
}

// TestSuite is the on-disk format read by LoadSuite.
type TestSuite struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Version     string     `json:"version"`
	Created     time.Time  `json:"created"`
	TestCases   []TestCase `json:"test_cases"`
}

// Metrics holds per-case or averaged metrics.
type Metrics struct {
	Precision1  float64 `json:"precision@1"`
	Precision5  float64 `json:"precision@5"`
	Precision10 float64 `json:"precision@10"`

	Recall5  float64 `json:"recall@5"`
	Recall10 float64 `json:"recall@10"`
	Recall50 float64 `json:"recall@50"`

	MRR     float64 `json:"mrr"`
	NDCG5   float64 `json:"ndcg@5"`
	NDCG10  float64 `json:"ndcg@10"`
	MAP     float64 `json:"map"`
	HitRate float64 `json:"hit_rate"`
}

func (m *Metrics) add(o Metrics) {
	m.Precision1 += o.Precision1
	m.Precision5 += o.Precision5
	m.Precision10 += o.Precision10
	m.Recall5 += o.Recall5
	m.Recall10 += o.Recall10
	m.Recall50 += o.Recall50
	m.MRR += o.MRR
	m.NDCG5 += o.NDCG5
	m.NDCG10 += o.NDCG10
	m.MAP += o.MAP
	m.HitRate += o.HitRate
}

func (m *Metrics) scale(f float64) {
	m.Precision1 *= f
	m.Precision5 *= f
	m.Precision10 *= f
	m.Recall5 *= f
	m.Recall10 *= f
	m.Recall50 *= f
	m.MRR *= f
	m.NDCG5 *= f
	m.NDCG10 *= f
	m.MAP *= f
	m.HitRate *= f
}

// TestResult is the outcome of one case.
type TestResult struct {
	TestCase   TestCase      `json:"test_case"`
	Metrics    Metrics       `json:"metrics"`
	Returned   []string      `json:"returned"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	SearchMode string        `json:"search_mode"`
	Status     string        `json:"status"`
	Passed     bool          `json:"passed"`
}

// EvalResult is the outcome of a whole run.
type EvalResult struct {
	SuiteName string        `json:"suite_name"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`

	// Aggregate averages the cases that did not error.
	Aggregate Metrics      `json:"aggregate"`
	Results   []TestResult `json:"results"`

	TotalTests  int `json:"total_tests"`
	PassedTests int `json:"passed_tests"`
	FailedTests int `json:"failed_tests"`

	Thresholds Thresholds `json:"thresholds"`
}

// Thresholds are the minimum per-case values for a pass.
type Thresholds struct {
	Precision10 float64 `json:"precision@10"`
	Recall10    float64 `json:"recall@10"`
	MRR         float64 `json:"mrr"`
	NDCG10      float64 `json:"ndcg@10"`
	HitRate     float64 `json:"hit_rate"`
}

// DefaultThresholds returns the thresholds used when none are set.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Precision10: 0.1,
		Recall10:    0.3,
		MRR:         0.5,
		NDCG10:      0.5,
		HitRate:     0.8,
	}
}

func (t Thresholds) pass(m Metrics) bool {
	return m.Precision10 >= t.Precision10 &&
		m.MRR >= t.MRR &&
		m.HitRate >= t.HitRate
}

// Harness runs test cases against a Searcher.
type Harness struct {
	searcher Searcher

	mu         sync.RWMutex
	suiteName  string
	testCases  []TestCase
	thresholds Thresholds
}

// NewHarness creates a harness for s.
func NewHarness(s Searcher) *Harness {
	return &Harness{
		searcher:   s,
		suiteName:  "default",
		thresholds: DefaultThresholds(),
	}
}

// SetThresholds replaces the pass thresholds.
func (h *Harness) SetThresholds(t Thresholds) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.thresholds = t
}

// AddTestCase appends one case.
func (h *Harness) AddTestCase(tc TestCase) {
	h.AddTestCases([]TestCase{tc})
}

// AddTestCases appends cases in order.
func (h *Harness) AddTestCases(cases []TestCase) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.testCases = append(h.testCases, cases...)
}

// LoadSuite reads a TestSuite from a JSON file and appends its cases.
func (h *Harness) LoadSuite(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading suite: %w", err)
	}
	var suite TestSuite
	if err := json.Unmarshal(data, &suite); err != nil {
		return fmt.Errorf("parsing suite %s: %w", path, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if suite.Name != "" {
		h.suiteName = suite.Name
	}
	h.testCases = append(h.testCases, suite.TestCases...)
	return nil
}

// Run executes every case in order. A failing search is recorded on its
// TestResult and counts as a failed case; only context cancellation aborts
// the run.
func (h *Harness) Run(ctx context.Context) (*EvalResult, error) {
	h.mu.RLock()
	cases := slices.Clone(h.testCases)
	thresholds := h.thresholds
	name := h.suiteName
	h.mu.RUnlock()

	if len(cases) == 0 {
		return nil, ErrNoTestCases
	}

	start := time.Now()
	res := &EvalResult{
		SuiteName:  name,
		Timestamp:  start,
		Results:    make([]TestResult, 0, len(cases)),
		TotalTests: len(cases),
		Thresholds: thresholds,
	}

	valid := 0
	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tr := h.runTestCase(ctx, tc)
		if tr.Error == "" {
			valid++
			res.Aggregate.add(tr.Metrics)
			tr.Passed = thresholds.pass(tr.Metrics)
		}
		if tr.Passed {
			res.PassedTests++
		} else {
			res.FailedTests++
		}
		res.Results = append(res.Results, tr)
	}
	if valid > 0 {
		res.Aggregate.scale(1 / float64(valid))
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (h *Harness) runTestCase(ctx context.Context, tc TestCase) TestResult {
	start := time.Now()

	opts := engine.DefaultSearchOptions()
	opts.TopK = RecallDepth
	if tc.Options != nil {
		opts = *tc.Options
	}

	resp, err := h.searcher.Search(ctx, tc.Query, opts)
	if err != nil {
		return TestResult{TestCase: tc, Error: err.Error(), Duration: time.Since(start)}
	}

	returned := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		returned[i] = r.NodeID
	}
	return TestResult{
		TestCase:   tc,
		Metrics:    computeMetrics(tc, returned),
		Returned:   returned,
		Duration:   time.Since(start),
		SearchMode: string(resp.Mode),
		Status:     string(resp.Status),
	}
}

func computeMetrics(tc TestCase, returned []string) Metrics {
	expected := make(map[string]bool, len(tc.Expected))
	for _, id := range tc.Expected {
		expected[id] = true
	}
	grades := tc.RelevanceGrades
	if grades == nil {
		grades = make(map[string]int, len(tc.Expected))
		for _, id := range tc.Expected {
			grades[id] = 1
		}
	}

	return Metrics{
		Precision1:  precision(returned, expected, 1),
		Precision5:  precision(returned, expected, 5),
		Precision10: precision(returned, expected, 10),
		Recall5:     recall(returned, expected, 5),
		Recall10:    recall(returned, expected, 10),
		Recall50:    recall(returned, expected, 50),
		MRR:         mrr(returned, expected),
		NDCG5:       ndcg(returned, grades, 5),
		NDCG10:      ndcg(returned, grades, 10),
		MAP:         averagePrecision(returned, expected),
		HitRate:     hitRate(returned, expected),
	}
}

func hitsAt(returned []string, expected map[string]bool, k int) int {
	n := 0
	for _, id := range returned[:min(k, len(returned))] {
		if expected[id] {
			n++
		}
	}
	return n
}

// precision is relevant-in-top-k / k.
func precision(returned []string, expected map[string]bool, k int) float64 {
	if k <= 0 || len(returned) == 0 {
		return 0
	}
	return float64(hitsAt(returned, expected, k)) / float64(k)
}

// recall is relevant-in-top-k / total relevant.
func recall(returned []string, expected map[string]bool, k int) float64 {
	if len(expected) == 0 || k <= 0 {
		return 0
	}
	return float64(hitsAt(returned, expected, k)) / float64(len(expected))
}

func mrr(returned []string, expected map[string]bool) float64 {
	for i, id := range returned {
		if expected[id] {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// gain is the exponential DCG gain (2^grade - 1) discounted by log2(rank+1).
func gain(grade, i int) float64 {
	return (math.Pow(2, float64(grade)) - 1) / math.Log2(float64(i+2))
}

func ndcg(returned []string, grades map[string]int, k int) float64 {
	ideal := idealDCG(grades, k)
	if ideal == 0 {
		return 0
	}
	return dcg(returned, grades, k) / ideal
}

func dcg(returned []string, grades map[string]int, k int) float64 {
	sum := 0.0
	for i, id := range returned[:min(max(k, 0), len(returned))] {
		sum += gain(grades[id], i)
	}
	return sum
}

func idealDCG(grades map[string]int, k int) float64 {
	sorted := make([]int, 0, len(grades))
	for _, g := range grades {
		sorted = append(sorted, g)
	}
	slices.Sort(sorted)
	slices.Reverse(sorted)

	sum := 0.0
	for i, g := range sorted[:min(max(k, 0), len(sorted))] {
		sum += gain(g, i)
	}
	return sum
}

func averagePrecision(returned []string, expected map[string]bool) float64 {
	if len(expected) == 0 {
		return 0
	}
	sum, seen := 0.0, 0
	for i, id := range returned {
		if expected[id] {
			seen++
			sum += float64(seen) / float64(i+1)
		}
	}
	return sum / float64(len(expected))
}

func hitRate(returned []string, expected map[string]bool) float64 {
	if hitsAt(returned, expected, len(returned)) > 0 {
		return 1
	}
	return 0
}
