// Package config loads engine configuration.
//
// Values are resolved in order, later sources overriding earlier ones:
//
//  1. built-in defaults (Default)
//  2. an optional YAML file
//  3. an optional .env file, which only fills variables not already set
//  4. NEXUS_* environment variables
//
// Example Usage:
//
//	cfg, err := config.Load("nexus.yaml", ".env")
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	embedder, err := embed.NewEmbedder(cfg.EmbedConfig())
//
// Environment Variables:
//   - NEXUS_EMBEDDING_PROVIDER="ollama" or "openai"
//   - NEXUS_EMBEDDING_URL, NEXUS_EMBEDDING_PATH, NEXUS_EMBEDDING_KEY
//   - NEXUS_EMBEDDING_MODEL="mxbai-embed-large"
//   - NEXUS_EMBEDDING_DIMENSIONS=1024
//   - NEXUS_EMBEDDING_TIMEOUT=30s
//   - NEXUS_EMBEDDING_BATCH_SIZE=50, NEXUS_EMBEDDING_CONCURRENCY=2
//   - NEXUS_SEARCH_TOP_K=10, NEXUS_SEARCH_THRESHOLD=0.3
//   - NEXUS_SEARCH_USE_HYBRID=true, NEXUS_SEARCH_USE_ENHANCED=false
//   - NEXUS_SEARCH_TEMPORAL_DECAY=false
//   - NEXUS_GRAPH_ALL_PAIRS_LIMIT=2000
//   - NEXUS_BM25_K1=1.5, NEXUS_BM25_B=0.75
//   - NEXUS_STORE_DIR="./data", NEXUS_STORE_IN_MEMORY=false
//   - NEXUS_LOG_LEVEL="info"
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/embed"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "NEXUS_"

// Config holds the full engine configuration.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Graph     GraphConfig     `yaml:"graph"`
	BM25      BM25Config      `yaml:"bm25"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	URL        string        `yaml:"url"`
	Path       string        `yaml:"path"`
	Key        string        `yaml:"key"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	// BatchSize and Concurrency shape knowledge-base embedding.
	BatchSize   int `yaml:"batch_size"`
	Concurrency int `yaml:"concurrency"`
	// QueryCacheSize bounds the query embedding LRU.
	QueryCacheSize int `yaml:"query_cache_size"`
}

// SearchConfig holds search defaults and ranking parameters.
type SearchConfig struct {
	TopK          int     `yaml:"top_k"`
	Threshold     float64 `yaml:"threshold"`
	UseHybrid     bool    `yaml:"use_hybrid"`
	UseEnhanced   bool    `yaml:"use_enhanced"`
	ShowReasoning bool    `yaml:"show_reasoning"`
	// WeightProfile is "default" (0.45/0.30/0.15/0.10) or "balanced"
	// (0.5/0.25/0.15/0.1).
	WeightProfile      string        `yaml:"weight_profile"`
	MMRLambda          float64       `yaml:"mmr_lambda"`
	DiversityThreshold float64       `yaml:"diversity_threshold"`
	RRFK               float64       `yaml:"rrf_k"`
	TemporalDecay      bool          `yaml:"temporal_decay"`
	MaxExpansions      int           `yaml:"max_expansions"`
	ResultCacheSize    int           `yaml:"result_cache_size"`
	ResultCacheTTL     time.Duration `yaml:"result_cache_ttl"`
}

// GraphConfig tunes knowledge graph construction.
type GraphConfig struct {
	AllPairsLimit int `yaml:"all_pairs_limit"`
}

// BM25Config holds the BM25 parameters.
type BM25Config struct {
	K1 float64 `yaml:"k1"`
	B  float64 `yaml:"b"`
}

// StoreConfig selects where embeddings are persisted.
type StoreConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration: local Ollama embeddings,
// hybrid basic search, on-disk store under ./data.
func Default() *Config {
	emb := embed.DefaultOllamaConfig()
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:       emb.Provider,
			URL:            emb.APIURL,
			Path:           emb.APIPath,
			Model:          emb.Model,
			Dimensions:     emb.Dimensions,
			Timeout:        emb.Timeout,
			MaxRetries:     emb.MaxRetries,
			BatchSize:      embed.DefaultBatchSize,
			Concurrency:    2,
			QueryCacheSize: embed.DefaultQueryCacheSize,
		},
		Search: SearchConfig{
			TopK:               10,
			Threshold:          0.3,
			UseHybrid:          true,
			WeightProfile:      "default",
			MMRLambda:          0.7,
			DiversityThreshold: 0.85,
			RRFK:               60,
			MaxExpansions:      5,
			ResultCacheSize:    256,
			ResultCacheTTL:     5 * time.Minute,
		},
		Graph: GraphConfig{AllPairsLimit: 2000},
		BM25:  BM25Config{K1: 1.5, B: 0.75},
		Store: StoreConfig{Dir: "./data"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load resolves the configuration from defaults, the YAML file at path
// and the environment, then validates it. Empty paths are skipped, as is
// a missing .env file; a missing YAML file is an error.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Keys missing from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides c with NEXUS_* environment variables. Unparseable
// values are ignored.
func (c *Config) ApplyEnv() {
	e := &c.Embedding
	e.Provider = getEnv("EMBEDDING_PROVIDER", e.Provider)
	e.URL = getEnv("EMBEDDING_URL", e.URL)
	e.Path = getEnv("EMBEDDING_PATH", e.Path)
	e.Key = getEnv("EMBEDDING_KEY", e.Key)
	e.Model = getEnv("EMBEDDING_MODEL", e.Model)
	e.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", e.Dimensions)
	e.Timeout = getEnvDuration("EMBEDDING_TIMEOUT", e.Timeout)
	e.MaxRetries = getEnvInt("EMBEDDING_MAX_RETRIES", e.MaxRetries)
	e.BatchSize = getEnvInt("EMBEDDING_BATCH_SIZE", e.BatchSize)
	e.Concurrency = getEnvInt("EMBEDDING_CONCURRENCY", e.Concurrency)
	e.QueryCacheSize = getEnvInt("EMBEDDING_QUERY_CACHE_SIZE", e.QueryCacheSize)

	s := &c.Search
	s.TopK = getEnvInt("SEARCH_TOP_K", s.TopK)
	s.Threshold = getEnvFloat("SEARCH_THRESHOLD", s.Threshold)
	s.UseHybrid = getEnvBool("SEARCH_USE_HYBRID", s.UseHybrid)
	s.UseEnhanced = getEnvBool("SEARCH_USE_ENHANCED", s.UseEnhanced)
	s.ShowReasoning = getEnvBool("SEARCH_SHOW_REASONING", s.ShowReasoning)
	s.WeightProfile = getEnv("SEARCH_WEIGHT_PROFILE", s.WeightProfile)
	s.MMRLambda = getEnvFloat("SEARCH_MMR_LAMBDA", s.MMRLambda)
	s.DiversityThreshold = getEnvFloat("SEARCH_DIVERSITY_THRESHOLD", s.DiversityThreshold)
	s.RRFK = getEnvFloat("SEARCH_RRF_K", s.RRFK)
	s.TemporalDecay = getEnvBool("SEARCH_TEMPORAL_DECAY", s.TemporalDecay)
	s.MaxExpansions = getEnvInt("SEARCH_MAX_EXPANSIONS", s.MaxExpansions)
	s.ResultCacheSize = getEnvInt("SEARCH_RESULT_CACHE_SIZE", s.ResultCacheSize)
	s.ResultCacheTTL = getEnvDuration("SEARCH_RESULT_CACHE_TTL", s.ResultCacheTTL)

	c.Graph.AllPairsLimit = getEnvInt("GRAPH_ALL_PAIRS_LIMIT", c.Graph.AllPairsLimit)
	c.BM25.K1 = getEnvFloat("BM25_K1", c.BM25.K1)
	c.BM25.B = getEnvFloat("BM25_B", c.BM25.B)
	c.Store.Dir = getEnv("STORE_DIR", c.Store.Dir)
	c.Store.InMemory = getEnvBool("STORE_IN_MEMORY", c.Store.InMemory)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate checks value ranges and returns every problem found.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Embedding.Provider {
	case "ollama":
	case "openai":
		check(c.Embedding.Key != "", "embedding provider openai requires a key")
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	check(c.Embedding.Model != "", "embedding model must be set")
	check(c.Embedding.Dimensions > 0, "invalid embedding dimensions: %d", c.Embedding.Dimensions)
	check(c.Embedding.BatchSize > 0, "invalid embedding batch size: %d", c.Embedding.BatchSize)
	check(c.Embedding.Concurrency > 0, "invalid embedding concurrency: %d", c.Embedding.Concurrency)

	check(c.Search.TopK >= 1 && c.Search.TopK <= 100, "search top_k must be in [1,100], got %d", c.Search.TopK)
	check(c.Search.Threshold >= 0 && c.Search.Threshold <= 1, "search threshold must be in [0,1], got %g", c.Search.Threshold)
	check(c.Search.WeightProfile == "default" || c.Search.WeightProfile == "balanced",
		"unknown weight profile %q", c.Search.WeightProfile)
	check(c.Search.MMRLambda >= 0 && c.Search.MMRLambda <= 1, "mmr_lambda must be in [0,1], got %g", c.Search.MMRLambda)
	check(c.Search.DiversityThreshold >= 0 && c.Search.DiversityThreshold <= 1,
		"diversity_threshold must be in [0,1], got %g", c.Search.DiversityThreshold)
	check(c.Search.RRFK > 0, "rrf_k must be positive, got %g", c.Search.RRFK)

	check(c.BM25.K1 > 0, "bm25 k1 must be positive, got %g", c.BM25.K1)
	check(c.BM25.B >= 0 && c.BM25.B <= 1, "bm25 b must be in [0,1], got %g", c.BM25.B)
	check(c.Store.InMemory || c.Store.Dir != "", "store dir must be set unless in_memory")

	return errors.Join(errs...)
}

// EmbedConfig converts the embedding section for embed.NewEmbedder.
func (c *Config) EmbedConfig() *embed.Config {
	return &embed.Config{
		Provider:   c.Embedding.Provider,
		APIURL:     c.Embedding.URL,
		APIPath:    c.Embedding.Path,
		APIKey:     c.Embedding.Key,
		Model:      c.Embedding.Model,
		Dimensions: c.Embedding.Dimensions,
		Timeout:    c.Embedding.Timeout,
		MaxRetries: c.Embedding.MaxRetries,
	}
}

// String returns a representation safe for logging; the API key is
// omitted.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Embedding: %s/%s, Search: topK=%d threshold=%g hybrid=%v enhanced=%v, Store: %s}",
		c.Embedding.Provider, c.Embedding.Model,
		c.Search.TopK, c.Search.Threshold, c.Search.UseHybrid, c.Search.UseEnhanced,
		c.storeString(),
	)
}

func (c *Config) storeString() string {
	if c.Store.InMemory {
		return "memory"
	}
	return c.Store.Dir
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Try parsing as seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
