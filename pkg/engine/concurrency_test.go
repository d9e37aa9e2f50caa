package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
)

// These tests are meant to run with -race.

func TestSearch_ConcurrentCacheHits(t *testing.T) {
	e := indexedEngine(t, transactionEmbedder())
	ctx := context.Background()

	const workers = 8
	responses := make([]*Response, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			responses[i], errs[i] = e.Search(ctx, comparisonQuery, DefaultSearchOptions())
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, StatusOK, responses[i].Status)
		require.Len(t, responses[i].Results, 1)
		assert.Equal(t, "doc-2", responses[i].Results[0].NodeID)
	}

	// Callers own their responses; the cached copy is unaffected.
	for _, r := range responses {
		r.Status = StatusNoResults
		r.Query = "changed"
	}
	again, err := e.Search(ctx, comparisonQuery, DefaultSearchOptions())
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, StatusOK, again.Status)
	assert.Equal(t, comparisonQuery, again.Query)
}

func TestSearch_ConcurrentWithRebuild(t *testing.T) {
	e := indexedEngine(t, transactionEmbedder())
	ctx := context.Background()

	alt := transactionRecords()
	alt = append(alt, kgraph.Record{ID: 3, Title: "March", Content: "Transaction on 2024-03-10 for $900 at Furniture"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 10 {
			records := transactionRecords()
			if i%2 == 0 {
				records = alt
			}
			_, err := e.Rebuild(ctx, records)
			assert.NoError(t, err)
		}
	}()

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				resp, err := e.Search(ctx, comparisonQuery, DefaultSearchOptions())
				if !assert.NoError(t, err) {
					return
				}
				assert.Contains(t, []Status{StatusOK, StatusNoResults}, resp.Status)
				_, _ = e.LastExplanation()
			}
		}()
	}
	wg.Wait()

	resp, err := e.Search(ctx, comparisonQuery, DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "doc-2", resp.Results[0].NodeID)
	assert.Equal(t, 2, e.Stats().Nodes)
}
