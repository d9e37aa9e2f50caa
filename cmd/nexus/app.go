package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/config"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/decay"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/embed"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/engine"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/hybrid"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/logger"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/query"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/search"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/storage"
)

// app holds what every command needs once flags are parsed.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store storage.Store
	eng   *engine.Engine
}

// openApp loads configuration, opens the embedding store and creates an
// engine. The caller must call close.
func openApp(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(cfgPath, envFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	store, err := storage.NewBadgerStore(storage.BadgerOptions{
		DataDir:  cfg.Store.Dir,
		InMemory: cfg.Store.InMemory,
		Logger:   log,
	})
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	a := &app{cfg: cfg, log: log, store: store}
	if a.eng, err = a.newEngine(); err != nil {
		a.close()
		return nil, err
	}
	log.Debug("configuration loaded", zap.Stringer("config", cfg))
	return a, nil
}

func (a *app) newEngine() (*engine.Engine, error) {
	embedder, err := embed.NewEmbedder(a.cfg.EmbedConfig())
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return engine.New(engineConfig(a.cfg, embedder, a.store, a.log))
}

// engineConfig translates the file/env configuration into engine wiring.
func engineConfig(cfg *config.Config, embedder embed.Embedder, store storage.Store, log *zap.Logger) engine.Config {
	s := cfg.Search
	ec := engine.Config{
		Embedder:      embedder,
		Store:         store,
		Logger:        log,
		AllPairsLimit: cfg.Graph.AllPairsLimit,
		BM25:          search.BM25Params{K1: cfg.BM25.K1, B: cfg.BM25.B},
		Batch: embed.BatchOptions{
			BatchSize:   cfg.Embedding.BatchSize,
			Concurrency: cfg.Embedding.Concurrency,
			Logger:      log,
		},
		QueryCacheSize:  cfg.Embedding.QueryCacheSize,
		ResultCacheSize: s.ResultCacheSize,
		ResultCacheTTL:  s.ResultCacheTTL,
		Weights:         weightProfile(s.WeightProfile),
		RRFK:            s.RRFK,
		MMR:             search.MMROptions{Lambda: s.MMRLambda, DiversityThreshold: s.DiversityThreshold},
		Expand: query.ExpandOptions{
			IncludeSynonyms: true,
			IncludeAcronyms: true,
			MaxExpansions:   s.MaxExpansions,
		},
	}
	if s.TemporalDecay {
		ec.Decay = decay.New(decay.DefaultConfig())
	}
	return ec
}

func weightProfile(name string) hybrid.Weights {
	if name == "balanced" {
		return hybrid.BalancedWeights()
	}
	return hybrid.DefaultWeights()
}

// searchOptions starts from the configured defaults and applies any flags
// the user set explicitly.
func (a *app) searchOptions(cmd *cobra.Command) engine.SearchOptions {
	s := a.cfg.Search
	opts := engine.SearchOptions{
		TopK:          s.TopK,
		Threshold:     s.Threshold,
		UseHybrid:     s.UseHybrid,
		UseEnhanced:   s.UseEnhanced,
		ShowReasoning: s.ShowReasoning,
	}
	f := cmd.Flags()
	if f.Changed("top-k") {
		opts.TopK, _ = f.GetInt("top-k")
	}
	if f.Changed("threshold") {
		opts.Threshold, _ = f.GetFloat64("threshold")
	}
	if f.Changed("semantic") {
		semantic, _ := f.GetBool("semantic")
		opts.UseHybrid = !semantic
	}
	if f.Changed("enhanced") {
		opts.UseEnhanced, _ = f.GetBool("enhanced")
	}
	if f.Changed("reasoning") {
		opts.ShowReasoning, _ = f.GetBool("reasoning")
	}
	opts.ConversationContext, _ = f.GetString("context")
	return opts
}

// index loads the knowledge base file and rebuilds the engine from it.
func (a *app) index(ctx context.Context, path string) (engine.BuildStats, error) {
	if path == "" {
		return engine.BuildStats{}, errors.New("no knowledge base given, use --kb")
	}
	f, err := os.Open(path)
	if err != nil {
		return engine.BuildStats{}, fmt.Errorf("opening knowledge base: %w", err)
	}
	defer f.Close()

	records, err := kgraph.DecodeRecords(f)
	if err != nil {
		return engine.BuildStats{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return a.eng.Rebuild(ctx, records)
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing store", zap.Error(err))
	}
	_ = a.log.Sync()
}
