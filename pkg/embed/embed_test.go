package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	retryBackoff = time.Millisecond
}

func testConfig(provider, url string) *Config {
	return &Config{
		Provider:   provider,
		APIURL:     url,
		APIPath:    "/embed",
		APIKey:     "secret",
		Model:      "test-model",
		Dimensions: 3,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	}
}

func TestOllama_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "/embed", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{float32(len(req.Prompt)), 0, 1}})
	}))
	defer srv.Close()

	e := NewOllama(testConfig("ollama", srv.URL))
	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0, 1}, vec)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0, 1}, {2, 0, 1}}, vecs)
	assert.Equal(t, 3, e.Dimensions())
	assert.Equal(t, "test-model", e.Model())
}

func TestOllama_EmptyEmbeddingIsDistinct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding": []}`))
	}))
	defer srv.Close()

	_, err := NewOllama(testConfig("ollama", srv.URL)).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyEmbedding)

	var perr *ProviderError
	assert.False(t, errors.As(err, &perr))
}

func TestOpenAI_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req openaiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		// Answer out of order to exercise index mapping.
		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		var data []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Embedding: []float32{float32(i), 1, 0}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()

	e := NewOpenAI(testConfig("openai", srv.URL))
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1, 0}, {1, 1, 0}, {2, 1, 0}}, vecs)

	vec, err := e.Embed(context.Background(), "single")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, vec)
}

func TestProviderError_StatusAndRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllama(testConfig("ollama", srv.URL)).Embed(context.Background(), "x")
	require.Error(t, err)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusServiceUnavailable, perr.StatusCode)
	assert.Contains(t, perr.Error(), "model not loaded")
	assert.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")
}

func TestProviderError_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewOpenAI(testConfig("openai", srv.URL)).Embed(context.Background(), "x")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.False(t, perr.Temporary())
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetry_SucceedsAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"embedding": [1, 2, 3]}`))
	}))
	defer srv.Close()

	vec, err := NewOllama(testConfig("ollama", srv.URL)).Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vec)
	assert.Equal(t, int32(2), calls.Load())
}

func TestProviderError_Transport(t *testing.T) {
	cfg := testConfig("ollama", "http://127.0.0.1:1")
	cfg.MaxRetries = 0
	_, err := NewOllama(cfg).Embed(context.Background(), "x")

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Zero(t, perr.StatusCode)
	assert.True(t, perr.Temporary())
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(DefaultOllamaConfig())
	require.NoError(t, err)
	assert.IsType(t, &OllamaEmbedder{}, e)

	_, err = NewEmbedder(DefaultOpenAIConfig(""))
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	e, err = NewEmbedder(DefaultOpenAIConfig("sk-test"))
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", e.Model())

	_, err = NewEmbedder(&Config{Provider: "cohere"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
