package cached

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory/memorytest"
)

func TestEmbedder_CachesVectors(t *testing.T) {
	inner := memorytest.NewTableEmbedder(2, map[string][]float32{
		"hello": {0.6, 0.8},
	})
	e, err := New(inner, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	first, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	e.cache.Wait()

	second, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.Calls())
	assert.Equal(t, 2, e.Dimensions())
}

func TestEmbedder_ReturnsCopies(t *testing.T) {
	inner := memorytest.NewTableEmbedder(2, map[string][]float32{
		"hello": {0.6, 0.8},
	})
	e, err := New(inner, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	_, err = e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	e.cache.Wait()

	got, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	got[0] = 99

	again, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, again[0], 1e-6)
}

func TestEmbedder_ErrorsAreNotCached(t *testing.T) {
	inner := memorytest.NewTableEmbedder(2, nil)
	e, err := New(inner, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	_, err = e.Embed(context.Background(), "missing")
	require.Error(t, err)
	e.cache.Wait()

	inner.Vectors["missing"] = []float32{1, 0}
	v, err := e.Embed(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
}

func TestNew_RequiresInner(t *testing.T) {
	_, err := New(nil, Config{})
	require.Error(t, err)
}
