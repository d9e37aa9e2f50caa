package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/embed/embedtest"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/engine"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/hybrid"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
)

// stubSearcher answers from a fixed table of node IDs per query.
type stubSearcher struct {
	answers map[string][]string
	fail    map[string]error
	opts    []engine.SearchOptions
}

func (s *stubSearcher) Search(_ context.Context, q string, opts engine.SearchOptions) (*engine.Response, error) {
	s.opts = append(s.opts, opts)
	if err := s.fail[q]; err != nil {
		return nil, err
	}
	resp := &engine.Response{Query: q, Status: engine.StatusOK, Mode: hybrid.ModeBasic}
	for _, id := range s.answers[q] {
		resp.Results = append(resp.Results, hybrid.Result{NodeID: id})
	}
	return resp, nil
}

func TestPrecision(t *testing.T) {
	expected := map[string]bool{"a": true, "b": true, "c": true}

	assert.Equal(t, 1.0, precision([]string{"a", "b", "c", "d", "e"}, expected, 3))
	assert.Equal(t, 0.6, precision([]string{"a", "x", "b", "y", "c"}, expected, 5))
	assert.Equal(t, 0.0, precision([]string{"x", "y", "z"}, expected, 3))
	assert.Equal(t, 0.0, precision(nil, expected, 3))
	// Short result lists are still divided by k.
	assert.Equal(t, 0.1, precision([]string{"a"}, expected, 10))
}

func TestRecall(t *testing.T) {
	expected := map[string]bool{"a": true, "b": true, "c": true, "d": true}

	assert.Equal(t, 1.0, recall([]string{"a", "b", "c", "d", "x"}, expected, 10))
	assert.Equal(t, 0.5, recall([]string{"a", "b", "x", "y", "z"}, expected, 5))
	assert.Equal(t, 0.25, recall([]string{"x", "a", "b"}, expected, 2))
	assert.Equal(t, 0.0, recall([]string{"a"}, map[string]bool{}, 10))
}

func TestMRR(t *testing.T) {
	expected := map[string]bool{"target": true}

	assert.Equal(t, 1.0, mrr([]string{"target", "x"}, expected))
	assert.Equal(t, 0.5, mrr([]string{"x", "target"}, expected))
	assert.InDelta(t, 1.0/3, mrr([]string{"x", "y", "target"}, expected), 1e-9)
	assert.Equal(t, 0.0, mrr([]string{"x", "y"}, expected))
}

func TestNDCG(t *testing.T) {
	grades := map[string]int{"a": 3, "b": 2, "c": 1}

	assert.InDelta(t, 1.0, ndcg([]string{"a", "b", "c"}, grades, 3), 1e-9)
	assert.Less(t, ndcg([]string{"c", "b", "a"}, grades, 3), 1.0)
	assert.Equal(t, 0.0, ndcg([]string{"x", "y"}, grades, 3))
	assert.Equal(t, 0.0, ndcg([]string{"a"}, map[string]int{}, 3))
}

func TestAveragePrecision(t *testing.T) {
	expected := map[string]bool{"a": true, "b": true}

	assert.Equal(t, 1.0, averagePrecision([]string{"a", "b", "x"}, expected))
	// (1/2 + 2/4) / 2
	assert.Equal(t, 0.5, averagePrecision([]string{"x", "a", "y", "b"}, expected))
	assert.Equal(t, 0.0, averagePrecision([]string{"a"}, map[string]bool{}))
}

func TestHitRate(t *testing.T) {
	expected := map[string]bool{"a": true}
	assert.Equal(t, 1.0, hitRate([]string{"x", "a"}, expected))
	assert.Equal(t, 0.0, hitRate([]string{"x"}, expected))
	assert.Equal(t, 0.0, hitRate(nil, expected))
}

func TestHarness_NoTestCases(t *testing.T) {
	_, err := NewHarness(&stubSearcher{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoTestCases)
}

func TestHarness_Run(t *testing.T) {
	s := &stubSearcher{
		answers: map[string][]string{
			"perfect": {"a", "b"},
			"missing": {"x", "y"},
		},
		fail: map[string]error{"broken": errors.New("model offline")},
	}
	h := NewHarness(s)
	h.AddTestCases([]TestCase{
		{Name: "perfect", Query: "perfect", Expected: []string{"a", "b"}},
		{Name: "missing", Query: "missing", Expected: []string{"a"}},
		{Name: "broken", Query: "broken", Expected: []string{"a"}},
	})

	res, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "default", res.SuiteName)
	assert.Equal(t, 3, res.TotalTests)
	assert.Equal(t, 1, res.PassedTests)
	assert.Equal(t, 2, res.FailedTests)
	require.Len(t, res.Results, 3)

	perfect := res.Results[0]
	assert.True(t, perfect.Passed)
	assert.Equal(t, []string{"a", "b"}, perfect.Returned)
	assert.Equal(t, "basic", perfect.SearchMode)
	assert.Equal(t, "ok", perfect.Status)
	assert.Equal(t, 1.0, perfect.Metrics.MRR)
	assert.Equal(t, 0.2, perfect.Metrics.Precision10)

	assert.False(t, res.Results[1].Passed)
	assert.Equal(t, "model offline", res.Results[2].Error)

	// Errored cases are left out of the averages.
	assert.Equal(t, 0.5, res.Aggregate.MRR)
	assert.Equal(t, 0.5, res.Aggregate.HitRate)

	for _, o := range s.opts {
		assert.Equal(t, RecallDepth, o.TopK)
		assert.True(t, o.UseHybrid)
	}
}

func TestHarness_CaseOptions(t *testing.T) {
	s := &stubSearcher{}
	h := NewHarness(s)
	h.AddTestCase(TestCase{
		Name:    "enhanced",
		Query:   "q",
		Options: &engine.SearchOptions{TopK: 5, UseHybrid: true, UseEnhanced: true},
	})

	_, err := h.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, s.opts, 1)
	assert.Equal(t, 5, s.opts[0].TopK)
	assert.True(t, s.opts[0].UseEnhanced)
}

func TestHarness_Canceled(t *testing.T) {
	h := NewHarness(&stubSearcher{})
	h.AddTestCase(TestCase{Name: "q", Query: "q"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHarness_LoadSuite(t *testing.T) {
	suite := TestSuite{
		Name:    "transactions",
		Version: "1",
		TestCases: []TestCase{
			{Name: "big", Query: "q", Expected: []string{"doc-2"}, Tags: []string{"comparison"}},
		},
	}
	data, err := json.Marshal(suite)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "suite.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	h := NewHarness(&stubSearcher{answers: map[string][]string{"q": {"doc-2"}}})
	require.NoError(t, h.LoadSuite(path))

	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "transactions", res.SuiteName)
	assert.True(t, res.Results[0].TestCase.HasTag("comparison"))
	assert.False(t, res.Results[0].TestCase.HasTag("listing"))

	assert.Error(t, h.LoadSuite(filepath.Join(t.TempDir(), "missing.json")))
}

func TestHarness_Engine(t *testing.T) {
	fake := &embedtest.Fake{
		Vectors: map[string][]float32{"transactions over $400": {1, 0}},
		Default: []float32{0.5, 0.8660254},
	}
	eng, err := engine.New(engine.Config{Embedder: fake})
	require.NoError(t, err)
	_, err = eng.Rebuild(context.Background(), []kgraph.Record{
		{ID: 1, Title: "January", Content: "Transaction on 2024-01-10 for $50 at CoffeeShop"},
		{ID: 2, Title: "February", Content: "Transaction on 2024-02-10 for $500 at Electronics"},
	})
	require.NoError(t, err)

	h := NewHarness(eng)
	h.AddTestCase(TestCase{
		Name:     "comparison",
		Query:    "transactions over $400",
		Expected: []string{"doc-2"},
	})

	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.PassedTests)
	assert.Equal(t, []string{"doc-2"}, res.Results[0].Returned)
	assert.Equal(t, 1.0, res.Aggregate.MRR)
}

func TestReporter_PrintCompact(t *testing.T) {
	var buf bytes.Buffer
	NewReporter(&buf).PrintCompact(&EvalResult{
		TotalTests:  10,
		PassedTests: 8,
		FailedTests: 2,
		Aggregate:   Metrics{Precision10: 0.75, MRR: 0.85},
	})

	out := buf.String()
	assert.Contains(t, out, "[FAIL]")
	assert.Contains(t, out, "8/10")
	assert.Contains(t, out, "P@10=0.75")
}

func TestReporter_PrintSummaryAndDetails(t *testing.T) {
	res := &EvalResult{
		SuiteName:   "suite",
		TotalTests:  2,
		PassedTests: 1,
		FailedTests: 1,
		Aggregate:   Metrics{Precision10: 0.8, MRR: 0.9},
		Thresholds:  DefaultThresholds(),
		Results: []TestResult{
			{TestCase: TestCase{Name: "ok"}, Passed: true},
			{TestCase: TestCase{Name: "bad"}, Error: "boom"},
		},
	}

	var buf bytes.Buffer
	r := NewReporter(&buf)
	r.PrintSummary(res)
	r.PrintDetails(res)

	out := buf.String()
	assert.Contains(t, out, "suite")
	assert.Contains(t, out, "1/2 passed")
	assert.Contains(t, out, "Precision@10")
	assert.Contains(t, out, "[PASS] 1. ok")
	assert.Contains(t, out, "[ERROR] 2. bad")
	assert.Contains(t, out, "error:  boom")
}

func TestReporter_JSON(t *testing.T) {
	res := &EvalResult{SuiteName: "suite", TotalTests: 1}
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, NewReporter(nil).SaveJSON(res, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back EvalResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "suite", back.SuiteName)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
