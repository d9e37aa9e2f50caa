// Package embedtest provides an in-memory embedder for tests.
package embedtest

import (
	"context"
	"errors"
	"sync"
)

// ErrFake is returned for texts configured to fail.
var ErrFake = errors.New("fake embedder failure")

// Fake is a deterministic embedder. Texts listed in Vectors get that
// vector; other texts get Default (or a vector derived from the text
// length when Default is nil). Safe for concurrent use.
type Fake struct {
	ModelName string
	Dims      int
	Vectors   map[string][]float32
	Default   []float32

	// FailTexts makes Embed fail for these texts and EmbedBatch fail for
	// any batch that contains one.
	FailTexts map[string]bool
	// FailBatches makes every EmbedBatch call fail.
	FailBatches bool
	// Err overrides ErrFake as the failure.
	Err error

	mu          sync.Mutex
	embedCalls  int
	batchCalls  int
	batchSizes  []int
	embeddedTxt []string
}

// Embed returns the configured vector for text.
func (f *Fake) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.embedCalls++
	f.embeddedTxt = append(f.embeddedTxt, text)
	f.mu.Unlock()

	if f.FailTexts[text] {
		return nil, f.failure()
	}
	return f.vectorFor(text), nil
}

// EmbedBatch embeds every text or fails as a whole.
func (f *Fake) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.batchCalls++
	f.batchSizes = append(f.batchSizes, len(texts))
	f.mu.Unlock()

	if f.FailBatches {
		return nil, f.failure()
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.FailTexts[t] {
			return nil, f.failure()
		}
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func (f *Fake) vectorFor(text string) []float32 {
	if v, ok := f.Vectors[text]; ok {
		return v
	}
	if f.Default != nil {
		return f.Default
	}
	return []float32{float32(len(text)), 1}
}

func (f *Fake) failure() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrFake
}

// Dimensions returns Dims.
func (f *Fake) Dimensions() int { return f.Dims }

// Model returns ModelName, or "fake".
func (f *Fake) Model() string {
	if f.ModelName == "" {
		return "fake"
	}
	return f.ModelName
}

// EmbedCalls returns the number of Embed calls.
func (f *Fake) EmbedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCalls
}

// BatchCalls returns the number of EmbedBatch calls.
func (f *Fake) BatchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batchCalls
}

// BatchSizes returns the size of every EmbedBatch call in call order.
func (f *Fake) BatchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.batchSizes...)
}

// Embedded returns the texts passed to Embed in call order.
func (f *Fake) Embedded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.embeddedTxt...)
}
