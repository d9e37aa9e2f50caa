// Package embed provides embedding generation clients.
//
// Supported providers:
//   - Ollama: local open-source models (mxbai-embed-large, nomic-embed-text)
//   - OpenAI: cloud API or any OpenAI-compatible server
//
// Embeddings turn text into fixed-length vectors; texts with similar
// meaning get vectors with a high cosine similarity. The retrieval engine
// uses them for its semantic signal.
//
// Example Usage:
//
//	embedder := embed.NewOllama(embed.DefaultOllamaConfig())
//	vec, err := embedder.Embed(ctx, "overdue invoices")
//	if err != nil {
//		var perr *embed.ProviderError
//		if errors.As(err, &perr) {
//			log.Printf("provider failed with status %d", perr.StatusCode)
//		}
//	}
//
// Provider failures (transport errors, non-200 responses) are reported as
// *ProviderError. A provider that answers successfully but returns no
// vector yields ErrEmptyEmbedding instead, so callers can tell the two
// apart.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Errors returned by embedders.
var (
	ErrEmptyEmbedding    = errors.New("provider returned an empty embedding")
	ErrUnknownProvider   = errors.New("unknown embedding provider")
	ErrMissingAPIKey     = errors.New("openai provider requires an API key")
	ErrBatchSizeMismatch = errors.New("provider returned a different number of embeddings than requested")
)

// ProviderError describes a failed request to an embedding provider.
// StatusCode is 0 for transport-level failures.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s returned %d: %s", e.Provider, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	default:
		return e.Provider + " request failed"
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the request may succeed.
func (e *ProviderError) Temporary() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Embedder generates vector embeddings from text.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Embedder interface {
	// Embed generates embedding for single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one per input
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector dimension
	Dimensions() int

	// Model returns the model name
	Model() string
}

// Config holds embedding provider configuration.
//
// Fields:
//   - Provider: "ollama" or "openai"
//   - APIURL: Base URL for API (e.g., http://localhost:11434)
//   - APIPath: Endpoint path (e.g., /api/embeddings)
//   - APIKey: Authentication key (OpenAI only)
//   - Model: Model name (e.g., mxbai-embed-large)
//   - Dimensions: Expected vector size
//   - Timeout: HTTP request timeout
//   - MaxRetries: attempts per request for temporary failures
type Config struct {
	Provider   string        `yaml:"provider"`
	APIURL     string        `yaml:"url"`
	APIPath    string        `yaml:"path"`
	APIKey     string        `yaml:"key"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// DefaultOllamaConfig returns configuration for local Ollama with mxbai-embed-large.
//
// This assumes Ollama is running locally:
//
//	$ ollama pull mxbai-embed-large
//	$ ollama serve
func DefaultOllamaConfig() *Config {
	return &Config{
		Provider:   "ollama",
		APIURL:     "http://localhost:11434",
		APIPath:    "/api/embeddings",
		Model:      "mxbai-embed-large",
		Dimensions: 1024,
		Timeout:    30 * time.Second,
		MaxRetries: 2,
	}
}

// DefaultOpenAIConfig returns configuration for OpenAI's text-embedding-3-small.
func DefaultOpenAIConfig(apiKey string) *Config {
	return &Config{
		Provider:   "openai",
		APIURL:     "https://api.openai.com",
		APIPath:    "/v1/embeddings",
		APIKey:     apiKey,
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
		MaxRetries: 2,
	}
}

// httpClient posts JSON to a provider and decodes the JSON answer.
type httpClient struct {
	provider string
	config   *Config
	client   *http.Client
}

func newHTTPClient(provider string, config *Config) httpClient {
	return httpClient{
		provider: provider,
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
	}
}

func (c httpClient) post(ctx context.Context, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return retryWithContext(ctx, c.config.MaxRetries+1, func(ctx context.Context) error {
		url := c.config.APIURL + c.config.APIPath
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return &ProviderError{Provider: c.provider, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &ProviderError{Provider: c.provider, StatusCode: resp.StatusCode, Body: string(b)}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", c.provider, err)
		}
		return nil
	})
}

// OllamaEmbedder implements Embedder for local Ollama models.
//
// Ollama's embeddings endpoint takes one prompt per request, so EmbedBatch
// issues one request per text.
type OllamaEmbedder struct {
	http httpClient
}

// NewOllama creates a new Ollama embedder. If config is nil,
// DefaultOllamaConfig() is used.
func NewOllama(config *Config) *OllamaEmbedder {
	if config == nil {
		config = DefaultOllamaConfig()
	}
	return &OllamaEmbedder{http: newHTTPClient("ollama", config)}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates a vector embedding for a single text string.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaResponse
	if err := e.http.post(ctx, ollamaRequest{Model: e.http.config.Model, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embedding, nil
}

// EmbedBatch embeds texts one request at a time and fails on the first error.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		results[i] = embedding
	}
	return results, nil
}

// Dimensions returns the expected embedding dimensions.
func (e *OllamaEmbedder) Dimensions() int { return e.http.config.Dimensions }

// Model returns the model name.
func (e *OllamaEmbedder) Model() string { return e.http.config.Model }

// OpenAIEmbedder implements Embedder for OpenAI's embedding API and
// compatible servers.
type OpenAIEmbedder struct {
	http httpClient
}

// NewOpenAI creates a new OpenAI embedder. If config is nil,
// DefaultOpenAIConfig("") is used, which will fail without an API key.
func NewOpenAI(config *Config) *OpenAIEmbedder {
	if config == nil {
		config = DefaultOpenAIConfig("")
	}
	return &OpenAIEmbedder{http: newHTTPClient("openai", config)}
}

type openaiRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openaiResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed generates a vector embedding for a single text string.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in a single API call.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp openaiResponse
	if err := e.http.post(ctx, openaiRequest{Model: e.http.config.Model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBatchSizeMismatch, len(resp.Data), len(texts))
	}

	results := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(results) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrBatchSizeMismatch, data.Index)
		}
		results[data.Index] = data.Embedding
	}
	for _, r := range results {
		if len(r) == 0 {
			return nil, ErrEmptyEmbedding
		}
	}
	return results, nil
}

// Dimensions returns the expected embedding dimensions.
func (e *OpenAIEmbedder) Dimensions() int { return e.http.config.Dimensions }

// Model returns the model name.
func (e *OpenAIEmbedder) Model() string { return e.http.config.Model }

// NewEmbedder creates an embedder based on the provider specified in config.
//
// Supported providers:
//   - "ollama": Local open-source models
//   - "openai": OpenAI cloud API
func NewEmbedder(config *Config) (Embedder, error) {
	switch config.Provider {
	case "ollama":
		return NewOllama(config), nil
	case "openai":
		if config.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewOpenAI(config), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, config.Provider)
	}
}
