// Package memorytest provides test doubles for the memory package and a
// conformance suite that every memory.Store backend runs.
package memorytest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/becomeliminal/nim-memory/memory"
)

// InMemoryStore is a memory.Store kept in a slice. Ids are UUIDs.
// The Fail* fields inject backend errors.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*memory.Record

	FailInsert  error
	FailFindAll error
	FailReplace error
	Closed      bool
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Insert(ctx context.Context, rec *memory.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsert != nil {
		return "", s.FailInsert
	}
	c := rec.Clone()
	c.ID = uuid.NewString()
	s.records = append(s.records, c)
	return c.ID, nil
}

func (s *InMemoryStore) FindAll(ctx context.Context) ([]*memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailFindAll != nil {
		return nil, s.FailFindAll
	}
	out := make([]*memory.Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *InMemoryStore) Replace(ctx context.Context, id string, rec *memory.Record) (bool, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false, fmt.Errorf("%w: id %q: %v", memory.ErrInvalidArgument, id, err)
	}
	id = parsed.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReplace != nil {
		return false, s.FailReplace
	}
	for _, r := range s.records {
		if r.ID != id {
			continue
		}
		r.Text = rec.Text
		r.Embedding = append([]float32(nil), rec.Embedding...)
		if rec.Timestamp.After(r.Timestamp) {
			r.Timestamp = rec.Timestamp
		}
		return true, nil
	}
	return false, nil
}

func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// TableEmbedder maps known texts to fixed vectors so tests can set up exact
// similarity scores. Unknown texts fall back to Fallback, or fail.
type TableEmbedder struct {
	Vectors  map[string][]float32
	Dims     int
	Fallback memory.Embedder

	mu    sync.Mutex
	calls int
}

// NewTableEmbedder creates a TableEmbedder over vectors of the given size.
func NewTableEmbedder(dims int, vectors map[string][]float32) *TableEmbedder {
	if vectors == nil {
		vectors = make(map[string][]float32)
	}
	return &TableEmbedder{Vectors: vectors, Dims: dims}
}

func (e *TableEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if v, ok := e.Vectors[text]; ok {
		return append([]float32(nil), v...), nil
	}
	if e.Fallback != nil {
		return e.Fallback.Embed(ctx, text)
	}
	return nil, fmt.Errorf("no vector for %q", text)
}

func (e *TableEmbedder) Dimensions() int {
	return e.Dims
}

// Calls returns how many times Embed ran.
func (e *TableEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// ErrEmbedderDown is returned by FailingEmbedder.
var ErrEmbedderDown = errors.New("embedder down")

// FailingEmbedder always fails.
type FailingEmbedder struct {
	Dims int
}

func (e FailingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrEmbedderDown
}

func (e FailingEmbedder) Dimensions() int {
	return e.Dims
}
