package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const rule = "+------------------------------------------------------------------+"

// Reporter renders an EvalResult.
type Reporter struct {
	w io.Writer
}

// NewReporter writes to w, or to stdout when w is nil.
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = os.Stdout
	}
	return &Reporter{w: w}
}

// PrintSummary prints the suite header and the aggregate metric table.
func (r *Reporter) PrintSummary(res *EvalResult) {
	w := r.w

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Suite:    %s\n", res.SuiteName)
	fmt.Fprintf(w, "Time:     %s\n", res.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %v\n", res.Duration.Round(time.Millisecond))

	passRate := 0.0
	if res.TotalTests > 0 {
		passRate = float64(res.PassedTests) / float64(res.TotalTests) * 100
	}
	fmt.Fprintf(w, "Tests:    %d/%d passed (%.1f%%)\n\n", res.PassedTests, res.TotalTests, passRate)

	a, t := res.Aggregate, res.Thresholds
	fmt.Fprintln(w, rule)
	r.row("Precision@1", a.Precision1, -1)
	r.row("Precision@5", a.Precision5, -1)
	r.row("Precision@10", a.Precision10, t.Precision10)
	fmt.Fprintln(w, rule)
	r.row("Recall@5", a.Recall5, -1)
	r.row("Recall@10", a.Recall10, t.Recall10)
	r.row("Recall@50", a.Recall50, -1)
	fmt.Fprintln(w, rule)
	r.row("MRR", a.MRR, t.MRR)
	r.row("NDCG@5", a.NDCG5, -1)
	r.row("NDCG@10", a.NDCG10, t.NDCG10)
	r.row("MAP", a.MAP, -1)
	r.row("Hit Rate", a.HitRate, t.HitRate)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}

// row prints one metric. A negative threshold means the metric has no target.
func (r *Reporter) row(name string, value, threshold float64) {
	mark, target := " ", ""
	if threshold >= 0 {
		mark = "x"
		if value >= threshold {
			mark = "+"
		}
		target = fmt.Sprintf(" (target %.2f)", threshold)
	}
	fmt.Fprintf(r.w, "| %s %-13s %s %.3f%s\n", mark, name, bar(value, 20), value, target)
}

func bar(value float64, width int) string {
	filled := min(width, max(0, int(value*float64(width))))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// PrintDetails prints one block per test case.
func (r *Reporter) PrintDetails(res *EvalResult) {
	w := r.w
	for i, tr := range res.Results {
		state := "PASS"
		switch {
		case tr.Error != "":
			state = "ERROR"
		case !tr.Passed:
			state = "FAIL"
		}

		fmt.Fprintf(w, "[%s] %d. %s\n", state, i+1, tr.TestCase.Name)
		fmt.Fprintf(w, "    query:  %q\n", truncate(tr.TestCase.Query, 60))
		fmt.Fprintf(w, "    mode:   %s  status: %s  took: %v\n",
			tr.SearchMode, tr.Status, tr.Duration.Round(time.Microsecond))
		if tr.Error != "" {
			fmt.Fprintf(w, "    error:  %s\n", tr.Error)
		} else {
			m := tr.Metrics
			fmt.Fprintf(w, "    P@10 %.2f  R@10 %.2f  MRR %.2f  NDCG@10 %.2f\n",
				m.Precision10, m.Recall10, m.MRR, m.NDCG10)
			fmt.Fprintf(w, "    expected %d, returned %d\n", len(tr.TestCase.Expected), len(tr.Returned))
		}
		fmt.Fprintln(w)
	}
}

// PrintJSON writes res as indented JSON.
func (r *Reporter) PrintJSON(res *EvalResult) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// SaveJSON writes res as indented JSON to path.
func (r *Reporter) SaveJSON(res *EvalResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	defer f.Close()
	return NewReporter(f).PrintJSON(res)
}

// PrintCompact prints a one-line summary.
func (r *Reporter) PrintCompact(res *EvalResult) {
	state := "PASS"
	if res.FailedTests > 0 {
		state = "FAIL"
	}
	a := res.Aggregate
	fmt.Fprintf(r.w, "[%s] %d/%d tests | P@10=%.2f R@10=%.2f MRR=%.2f NDCG=%.2f HitRate=%.2f | %v\n",
		state, res.PassedTests, res.TotalTests,
		a.Precision10, a.Recall10, a.MRR, a.NDCG10, a.HitRate,
		res.Duration.Round(time.Millisecond))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
