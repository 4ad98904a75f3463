package invoker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

func TestCacheKey(t *testing.T) {
	c := models.BackendCandidate{Provider: "together", Model: "m", Temperature: 0.5}
	p := Payload{System: "s", Prompt: "p"}

	assert.Equal(t, CacheKey(c, p), CacheKey(c, p))

	other := c
	other.Temperature = 0.7
	assert.NotEqual(t, CacheKey(c, p), CacheKey(other, p))

	p2 := p
	p2.Prompt = "q"
	assert.NotEqual(t, CacheKey(c, p), CacheKey(c, p2))
}

func TestCachePutGet(t *testing.T) {
	cache, err := OpenCache(CacheOptions{InMemory: true, TTL: time.Hour})
	require.NoError(t, err)
	defer cache.Close()

	_, hit := cache.Get("missing")
	assert.False(t, hit)

	require.NoError(t, cache.Put("k", Output{Text: "hello", Image: pngHeader, Model: "m"}))
	out, hit := cache.Get("k")
	require.True(t, hit)
	assert.Equal(t, "hello", out.Text)
	assert.Equal(t, pngHeader, out.Image)
	assert.True(t, out.Cached)
}

func TestCacheOnDisk(t *testing.T) {
	dir := t.TempDir()

	cache, err := OpenCache(CacheOptions{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, cache.Put("k", Output{Text: "persisted"}))
	require.NoError(t, cache.Close())

	cache, err = OpenCache(CacheOptions{Dir: dir})
	require.NoError(t, err)
	defer cache.Close()

	out, hit := cache.Get("k")
	require.True(t, hit)
	assert.Equal(t, "persisted", out.Text)
}

func TestOpenCacheRequiresDir(t *testing.T) {
	_, err := OpenCache(CacheOptions{})
	assert.Error(t, err)
}
