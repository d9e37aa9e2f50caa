package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, 0.3, cfg.Search.Threshold)
	assert.True(t, cfg.Search.UseHybrid)
	assert.Equal(t, 1.5, cfg.BM25.K1)
	assert.Equal(t, 2000, cfg.Graph.AllPairsLimit)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := writeFile(t, "nexus.yaml", `
embedding:
  model: nomic-embed-text
  dimensions: 768
  timeout: 10s
search:
  top_k: 5
  use_enhanced: true
  result_cache_ttl: 1m
bm25:
  b: 0.5
store:
  in_memory: true
`)
	cfg, err := Load(path, "")
	require.NoError(t, err)

	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "ollama", cfg.Embedding.Provider, "unset keys keep defaults")
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.True(t, cfg.Search.UseEnhanced)
	assert.Equal(t, time.Minute, cfg.Search.ResultCacheTTL)
	assert.Equal(t, 0.5, cfg.BM25.B)
	assert.Equal(t, 1.5, cfg.BM25.K1)
	assert.True(t, cfg.Store.InMemory)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "nexus.yaml", "search:\n  top_k: 5\n")
	t.Setenv("NEXUS_SEARCH_TOP_K", "7")
	t.Setenv("NEXUS_SEARCH_TEMPORAL_DECAY", "yes")
	t.Setenv("NEXUS_EMBEDDING_TIMEOUT", "45")
	t.Setenv("NEXUS_BM25_K1", "not-a-number")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.TopK)
	assert.True(t, cfg.Search.TemporalDecay)
	assert.Equal(t, 45*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 1.5, cfg.BM25.K1)
}

func TestLoad_DotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "NEXUS_EMBEDDING_MODEL=all-minilm\nNEXUS_LOG_LEVEL=debug\n")
	// Variables already set win over the .env file.
	t.Setenv("NEXUS_LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("NEXUS_EMBEDDING_MODEL") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, "all-minilm", cfg.Embedding.Model)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFiles(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	assert.Error(t, err)

	_, err = Load("", filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "search: [unclosed")
	_, err := Load(path, "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "bert" }, `unknown embedding provider "bert"`},
		{"openai without key", func(c *Config) { c.Embedding.Provider = "openai" }, "requires a key"},
		{"top_k too large", func(c *Config) { c.Search.TopK = 101 }, "top_k"},
		{"threshold out of range", func(c *Config) { c.Search.Threshold = 1.5 }, "threshold"},
		{"bad profile", func(c *Config) { c.Search.WeightProfile = "fancy" }, "weight profile"},
		{"bm25 b", func(c *Config) { c.BM25.B = 2 }, "bm25 b"},
		{"no store dir", func(c *Config) { c.Store.Dir = "" }, "store dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Search.TopK = 0
	cfg.BM25.K1 = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top_k")
	assert.Contains(t, err.Error(), "k1")
}

func TestEmbedConfigAndString(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.Key = "sk-secret"

	ec := cfg.EmbedConfig()
	assert.Equal(t, "openai", ec.Provider)
	assert.Equal(t, "sk-secret", ec.APIKey)
	assert.Equal(t, cfg.Embedding.URL, ec.APIURL)
	assert.NotContains(t, cfg.String(), "sk-secret")
}
