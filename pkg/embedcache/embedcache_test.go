package embedcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/embed"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/embed/embedtest"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/kgraph"
	"github.com/ahjavid/neural-nexus-ui-sub001/pkg/storage"
)

func buildGraph(t *testing.T, contents ...string) *kgraph.Graph {
	t.Helper()
	records := make([]kgraph.Record, len(contents))
	for i, c := range contents {
		records[i] = kgraph.Record{ID: i + 1, Content: c}
	}
	g, err := kgraph.Build(records)
	require.NoError(t, err)
	return g
}

func TestCache_GetChecksContentHash(t *testing.T) {
	c := New("m", "fp")
	c.Put("n1", "hash-a", []float32{1, 0})
	c.Put("n2", "hash-b", nil)

	v, ok := c.Get("n1", "hash-a")
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 0}, v)

	_, ok = c.Get("n1", "hash-changed")
	assert.False(t, ok)
	_, ok = c.Get("n2", "hash-b")
	assert.False(t, ok, "empty vectors are never cached")
	assert.Equal(t, 1, c.Len())
}

func TestCache_Valid(t *testing.T) {
	c := New("m", "fp")
	assert.True(t, c.Valid("m", "fp"))
	assert.False(t, c.Valid("other", "fp"))
	assert.False(t, c.Valid("m", "fp2"))

	var nilCache *Cache
	assert.False(t, nilCache.Valid("m", "fp"))
}

func TestCache_Populate(t *testing.T) {
	g := buildGraph(t, "alpha text", "beta text", "gamma text")
	fake := &embedtest.Fake{FailTexts: map[string]bool{"beta text": true}}
	c := New(fake.Model(), g.Fingerprint)

	stats, err := c.Populate(context.Background(), g, fake, PopulateOptions{Batch: embed.BatchOptions{BatchSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, PopulateStats{Embedded: 2, Failed: 1}, stats)

	vecs := c.Vectors(g)
	assert.Len(t, vecs, 2)
	assert.Contains(t, vecs, "doc-1")
	assert.NotContains(t, vecs, "doc-2")

	// A second pass only retries what is missing.
	fake.FailTexts = nil
	stats, err = c.Populate(context.Background(), g, fake, PopulateOptions{})
	require.NoError(t, err)
	assert.Equal(t, PopulateStats{Reused: 2, Embedded: 1}, stats)
	assert.Len(t, c.Vectors(g), 3)
}

func TestCache_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewBadgerStoreInMemory()
	require.NoError(t, err)
	defer store.Close()

	g := buildGraph(t, "first node", "second node")
	c := New("model-x", g.Fingerprint)
	_, err = c.Populate(ctx, g, &embedtest.Fake{}, PopulateOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Save(ctx, store))

	loaded, found, err := Load(ctx, store, "model-x", g.Fingerprint)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, c.Vectors(g), loaded.Vectors(g))

	other, found, err := Load(ctx, store, "model-y", g.Fingerprint)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, other.Len())
}

func TestCache_SaveReplacesOtherFingerprints(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	old := New("m", "0000000000000001")
	old.Put("n", "h", []float32{1})
	require.NoError(t, old.Save(ctx, store))
	keep := New("m:large", "0000000000000001")
	keep.Put("n", "h", []float32{1})
	require.NoError(t, keep.Save(ctx, store))

	current := New("m", "0000000000000002")
	current.Put("n", "h", []float32{2})
	require.NoError(t, current.Save(ctx, store))

	keys, err := store.Keys(ctx, KeyPrefix)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"embeddings:m:0000000000000002",
		"embeddings:m:large:0000000000000001",
	}, keys)
}

func TestLoad_CorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Put(ctx, Key("m", "fp"), []byte("{broken")))

	_, _, err := Load(ctx, store, "m", "fp")
	assert.Error(t, err)
}
