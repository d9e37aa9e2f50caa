package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("valid parameters", func(t *testing.T) {
		c := New[string](100, 5*time.Minute)
		assert.Equal(t, 100, c.maxSize)
		assert.Equal(t, 5*time.Minute, c.ttl)
		assert.True(t, c.enabled)
	})

	t.Run("non-positive size uses default", func(t *testing.T) {
		assert.Equal(t, DefaultMaxSize, New[string](0, 0).maxSize)
		assert.Equal(t, DefaultMaxSize, New[string](-10, 0).maxSize)
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("fp", "model", "q"), Key("fp", "model", "q"))
	assert.NotEqual(t, Key("fp", "model", "q1"), Key("fp", "model", "q2"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.NotEqual(t, Key("a"), Key("a", ""))
}

func TestCache_GetPut(t *testing.T) {
	c := New[int](10, 0)

	_, ok := c.Get(1)
	assert.False(t, ok)

	c.Put(1, 42)
	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	c.Put(1, 43)
	v, _ = c.Get(1)
	assert.Equal(t, 43, v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_LRUEviction(t *testing.T) {
	c := New[string](2, 0)
	c.Put(1, "a")
	c.Put(2, "b")
	_, _ = c.Get(1) // 2 becomes least recently used
	c.Put(3, "c")

	_, ok := c.Get(2)
	assert.False(t, ok)
	_, ok = c.Get(1)
	assert.True(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCache_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Put(1, "a")
	now = now.Add(30 * time.Second)
	_, ok := c.Get(1)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Get(1)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestCache_ClearAndDisable(t *testing.T) {
	c := New[string](10, 0)
	c.Put(1, "a")
	c.Put(2, "b")
	c.Clear()
	assert.Zero(t, c.Len())

	c.SetEnabled(false)
	c.Put(3, "c")
	_, ok := c.Get(3)
	assert.False(t, ok)

	c.SetEnabled(true)
	c.Put(3, "c")
	_, ok = c.Get(3)
	assert.True(t, ok)
}

func TestCache_Stats(t *testing.T) {
	c := New[string](10, 0)
	c.Put(1, "a")
	_, _ = c.Get(1)
	_, _ = c.Get(1)
	_, _ = c.Get(2)

	s := c.Stats()
	assert.Equal(t, 1, s.Size)
	assert.Equal(t, 10, s.MaxSize)
	assert.Equal(t, uint64(2), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.InDelta(t, 66.666, s.HitRate, 0.01)
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](50, time.Minute)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := uint64((w*200 + i) % 80)
				c.Put(k, i)
				_, _ = c.Get(k)
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}
