// Package main provides the nexus CLI: index a knowledge base, search it,
// inspect caches and evaluate retrieval quality.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/embedcache"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/engine"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/eval"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nexus",
		Short: "Hybrid semantic and symbolic search over a knowledge base",
		Long: `nexus indexes a JSON knowledge base into an entity graph, a BM25 index
and cached embeddings, then answers queries by combining semantic
similarity with entity, keyword and graph signals.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "YAML config file")
	root.PersistentFlags().String("env-file", ".env", "dotenv file with NEXUS_* variables")
	root.PersistentFlags().String("log-level", "", "log level (overrides config)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nexus v%s (%s)\n", version, commit)
		},
	})

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Build the graph and embed the knowledge base",
		RunE:  runIndex,
	}
	indexCmd.Flags().String("kb", "", "knowledge base JSON file")
	root.AddCommand(indexCmd)

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
	searchCmd.Flags().String("kb", "", "knowledge base JSON file")
	searchCmd.Flags().Int("top-k", 10, "maximum results")
	searchCmd.Flags().Float64("threshold", 0.3, "minimum score")
	searchCmd.Flags().Bool("semantic", false, "embedding similarity only")
	searchCmd.Flags().Bool("enhanced", false, "fuse rankings across query variants")
	searchCmd.Flags().Bool("reasoning", false, "print the reasoning chain")
	searchCmd.Flags().String("context", "", "recent conversation text for enhanced mode")
	searchCmd.Flags().Bool("json", false, "print the response as JSON")
	root.AddCommand(searchCmd)

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the persisted embedding caches",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show persisted embedding sets per model and fingerprint",
		RunE:  runCacheStats,
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cached embedding",
		RunE:  runCacheClear,
	})
	root.AddCommand(cacheCmd)

	evalCmd := &cobra.Command{
		Use:   "eval",
		Short: "Run a labelled query suite and report IR metrics",
		RunE:  runEval,
	}
	evalCmd.Flags().String("kb", "", "knowledge base JSON file")
	evalCmd.Flags().String("suite", "", "test suite JSON file")
	evalCmd.Flags().String("output", "summary", "summary, detailed, json or compact")
	evalCmd.Flags().String("save", "", "also write results as JSON to this file")
	evalCmd.Flags().String("threshold", "", "override thresholds (p10=0.5,mrr=0.5,hit=0.8)")
	root.AddCommand(evalCmd)

	return root
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	kb, _ := cmd.Flags().GetString("kb")
	stats, err := a.index(cmd.Context(), kb)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Indexed %d nodes, %d relations in %v\n", stats.Nodes, stats.Relations, stats.Duration)
	fmt.Fprintf(w, "  fingerprint: %s\n", stats.Fingerprint)
	fmt.Fprintf(w, "  embeddings:  %d reused, %d computed, %d failed\n", stats.Reused, stats.Embedded, stats.Failed)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	kb, _ := cmd.Flags().GetString("kb")
	if _, err := a.index(cmd.Context(), kb); err != nil {
		return err
	}

	q := strings.Join(args, " ")
	resp, err := a.eng.Search(cmd.Context(), q, a.searchOptions(cmd))
	if err != nil {
		a.log.Error("search failed", zap.String("query", q), zap.Error(err))
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printResponse(cmd.OutOrStdout(), resp)
	return nil
}

func printResponse(w io.Writer, resp *engine.Response) {
	if resp.Status != engine.StatusOK {
		fmt.Fprintln(w, resp.Message)
		return
	}
	fmt.Fprintf(w, "%d results (%s mode, %v)\n\n", len(resp.Results), resp.Mode, resp.Duration)
	for i, r := range resp.Results {
		ex := r.Explanation
		fmt.Fprintf(w, "%d. %s [%s] %.3f\n", i+1, r.Title, r.NodeID, r.Score)
		fmt.Fprintf(w, "   %s\n", snippet(r.Content, 120))
		fmt.Fprintf(w, "   semantic %.2f  entity %.2f  keyword %.2f  graph %.2f\n",
			ex.SemanticScore, ex.EntityScore, ex.KeywordScore, ex.GraphScore)
		for _, m := range ex.EntityMatches {
			fmt.Fprintf(w, "   matched %s %s\n", m.Kind, m.Value)
		}
	}
	if resp.Reasoning != "" {
		fmt.Fprintf(w, "\n%s", resp.Reasoning)
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	keys, err := a.store.Keys(ctx, embedcache.KeyPrefix)
	if err != nil {
		return fmt.Errorf("listing caches: %w", err)
	}
	w := cmd.OutOrStdout()
	if len(keys) == 0 {
		fmt.Fprintln(w, "no cached embeddings")
		return nil
	}
	for _, k := range keys {
		// Model names may contain ':' (ollama tags), fingerprints never do.
		rest := strings.TrimPrefix(k, embedcache.KeyPrefix)
		i := strings.LastIndexByte(rest, ':')
		if i < 0 {
			continue
		}
		model, fp := rest[:i], rest[i+1:]
		c, found, err := embedcache.Load(ctx, a.store, model, fp)
		if err != nil || !found {
			fmt.Fprintf(w, "%-32s %s  unreadable\n", model, fp)
			continue
		}
		fmt.Fprintf(w, "%-32s %s  %d vectors\n", model, fp, c.Len())
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	keys, err := a.store.Keys(cmd.Context(), embedcache.KeyPrefix)
	if err != nil {
		return fmt.Errorf("listing caches: %w", err)
	}
	for _, k := range keys {
		if err := a.store.Delete(cmd.Context(), k); err != nil {
			return fmt.Errorf("deleting %s: %w", k, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached embedding sets\n", len(keys))
	return nil
}

func runEval(cmd *cobra.Command, args []string) error {
	suitePath, _ := cmd.Flags().GetString("suite")
	if suitePath == "" {
		return fmt.Errorf("no suite given, use --suite")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	kb, _ := cmd.Flags().GetString("kb")
	if _, err := a.index(cmd.Context(), kb); err != nil {
		return err
	}

	h := eval.NewHarness(a.eng)
	if err := h.LoadSuite(suitePath); err != nil {
		return err
	}
	if t, _ := cmd.Flags().GetString("threshold"); t != "" {
		h.SetThresholds(parseThresholds(t))
	}

	res, err := h.Run(cmd.Context())
	if err != nil {
		return err
	}

	r := eval.NewReporter(cmd.OutOrStdout())
	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "json":
		if err := r.PrintJSON(res); err != nil {
			return err
		}
	case "compact":
		r.PrintCompact(res)
	case "detailed":
		r.PrintSummary(res)
		r.PrintDetails(res)
	default:
		r.PrintSummary(res)
	}

	if save, _ := cmd.Flags().GetString("save"); save != "" {
		if err := r.SaveJSON(res, save); err != nil {
			return err
		}
	}
	if res.FailedTests > 0 {
		return fmt.Errorf("%d of %d cases below threshold", res.FailedTests, res.TotalTests)
	}
	return nil
}

// parseThresholds reads "p10=0.5,mrr=0.5,hit=0.8" over the defaults.
// Unknown names and unparsable values are ignored.
func parseThresholds(s string) eval.Thresholds {
	t := eval.DefaultThresholds()
	for _, pair := range strings.Split(s, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		switch name {
		case "p10", "precision10":
			t.Precision10 = val
		case "r10", "recall10":
			t.Recall10 = val
		case "mrr":
			t.MRR = val
		case "ndcg", "ndcg10":
			t.NDCG10 = val
		case "hit", "hitrate":
			t.HitRate = val
		}
	}
	return t
}
