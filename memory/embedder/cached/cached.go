// Package cached wraps a memory.Embedder with an in-process ristretto cache.
//
// Embedders are deterministic, so a text's vector can be reused for the
// lifetime of the process. Only vectors are cached; similarity scores are
// always recomputed by the store.
package cached

import (
	"context"
	"fmt"
	"io"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/nim-memory/memory"
)

// Config configures the cache.
type Config struct {
	// MaxBytes bounds the memory held by cached vectors.
	// Default: 64 MiB.
	MaxBytes int64 `yaml:"max_bytes"`

	// NumCounters is the number of keys tracked for admission.
	// Default: 10x the number of 384-dim vectors that fit in MaxBytes.
	NumCounters int64 `yaml:"num_counters"`
}

// Embedder caches the vectors produced by an inner embedder.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache.
func New(inner memory.Embedder, cfg Config) (*Embedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("cached: inner embedder is required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 64 << 20
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 10 * (cfg.MaxBytes / (384 * 4))
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cached: create cache: %w", err)
	}

	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, embedding it on a miss.
// Callers always get their own copy.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return append([]float32(nil), vec...), nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	stored := append([]float32(nil), vec...)
	e.cache.Set(text, stored, int64(len(stored)*4))
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close stops the cache and closes the inner embedder if it is closable.
func (e *Embedder) Close() error {
	e.cache.Close()
	if c, ok := e.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
