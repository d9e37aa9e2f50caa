package embed

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize bounds the number of texts sent in one provider request.
const DefaultBatchSize = 50

// BatchOptions configures EmbedAll.
type BatchOptions struct {
	// BatchSize is the number of texts per EmbedBatch call.
	BatchSize int
	// Concurrency is the number of batches in flight. Default 1.
	Concurrency int
	Logger      *zap.Logger
}

// BatchResult holds one vector per input text. Vectors of texts that could
// not be embedded are nil and counted in Failed.
type BatchResult struct {
	Vectors [][]float32
	Failed  int
}

// EmbedAll embeds texts in chunks of BatchSize. When a chunk fails as a
// whole it is retried one text at a time; texts that still fail are logged
// and skipped. The only error returned is the context's.
func EmbedAll(ctx context.Context, e Embedder, texts []string, opts BatchOptions) (*BatchResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	res := &BatchResult{Vectors: make([][]float32, len(texts))}
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for start := 0; start < len(texts); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(texts))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunk := texts[start:end]
			vecs, err := e.EmbedBatch(gctx, chunk)
			if err == nil && len(vecs) == len(chunk) {
				copy(res.Vectors[start:end], vecs)
				return nil
			}
			if err == nil {
				err = ErrBatchSizeMismatch
			}
			log.Warn("embedding batch failed, falling back to sequential",
				zap.Int("offset", start),
				zap.Int("size", len(chunk)),
				zap.Error(err))

			for i, text := range chunk {
				if err := gctx.Err(); err != nil {
					return err
				}
				vec, err := e.Embed(gctx, text)
				if err != nil {
					failed.Add(1)
					log.Warn("embedding failed, skipping item",
						zap.Int("index", start+i),
						zap.Error(err))
					continue
				}
				res.Vectors[start+i] = vec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Failed = int(failed.Load())
	return res, nil
}
