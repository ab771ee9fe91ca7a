package memorytest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
)

// Suite describes a backend under test.
type Suite struct {
	// New returns an empty, connected store. Cleanup is the caller's job
	// (t.Cleanup inside New).
	New func(t *testing.T) memory.Store

	// UnknownID is well formed for the backend but never assigned.
	UnknownID string

	// MalformedID is rejected by the backend's id check.
	MalformedID string

	// TimestampPrecision is the coarsest time resolution the backend keeps.
	TimestampPrecision time.Duration

	// IDVariants returns other spellings the backend must accept for an id
	// it assigned. Nil skips the check.
	IDVariants func(id string) []string
}

// UUIDVariants returns the non-canonical forms uuid.Parse accepts.
func UUIDVariants(id string) []string {
	return []string{
		strings.ToUpper(id),
		"{" + id + "}",
		"urn:uuid:" + id,
	}
}

// Dims is the vector size the suite uses.
const Dims = 4

var (
	vecA = []float32{1, 0, 0, 0}
	vecB = []float32{0, 1, 0, 0}
	vecC = []float32{0, 0, 1, 0}
	vecD = []float32{0, 0, 0, 1}
)

// Run runs the backend conformance tests and the Manager properties against
// the backend.
func (s Suite) Run(t *testing.T) {
	if s.TimestampPrecision <= 0 {
		s.TimestampPrecision = time.Microsecond
	}

	t.Run("InsertAndFindAll", s.testInsertAndFindAll)
	t.Run("StorageOrder", s.testStorageOrder)
	t.Run("EmptyFindAll", s.testEmptyFindAll)
	t.Run("ReplaceExisting", s.testReplaceExisting)
	t.Run("ReplaceKeepsNewestTimestamp", s.testReplaceKeepsNewestTimestamp)
	t.Run("ReplaceUnknownID", s.testReplaceUnknownID)
	t.Run("ReplaceMalformedID", s.testReplaceMalformedID)
	t.Run("ReplaceIDVariants", s.testReplaceIDVariants)
	t.Run("ReturnsCopies", s.testReturnsCopies)
	t.Run("ConcurrentReplace", s.testConcurrentReplace)
	t.Run("ManagerProperties", s.testManagerProperties)
}

func (s Suite) testInsertAndFindAll(t *testing.T) {
	ctx := context.Background()
	store := s.New(t)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := store.Insert(ctx, &memory.Record{Text: "alpha", Embedding: vecA, Timestamp: ts})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	records, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, "alpha", records[0].Text)
	assert.InDeltaSlice(t, vecA, records[0].Embedding, 1e-5)
	assert.WithinDuration(t, ts, records[0].Timestamp, s.TimestampPrecision)
}

func (s Suite) testStorageOrder(t *testing.T) {
	ctx := context.Background()
	store := s.New(t)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := store.Insert(ctx, &memory.Record{
			Text:      fmt.Sprintf("note %d", i),
			Embedding: vecA,
			Timestamp: time.Now().UTC(),
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	records, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, ids[i], rec.ID, "record %d out of storage order", i)
	}
}

func (s Suite) testEmptyFindAll(t *testing.T) {
	store := s.New(t)

	records, err := store.FindAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func (s Suite) testReplaceExisting(t *testing.T) {
	ctx := context.Background()
	store := s.New(t)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := store.Insert(ctx, &memory.Record{Text: "before", Embedding: vecA, Timestamp: ts})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &memory.Record{Text: "other", Embedding: vecC, Timestamp: ts})
	require.NoError(t, err)

	later := ts.Add(time.Hour)
	ok, err := store.Replace(ctx, id, &memory.Record{ID: id, Text: "after", Embedding: vecB, Timestamp: later})
	require.NoError(t, err)
	assert.True(t, ok)

	records, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, id, records[0].ID)
	assert.Equal(t, "after", records[0].Text)
	assert.InDeltaSlice(t, vecB, records[0].Embedding, 1e-5)
	assert.WithinDuration(t, later, records[0].Timestamp, s.TimestampPrecision)
	assert.Equal(t, "other", records[1].Text)
}

func (s Suite) testReplaceKeepsNewestTimestamp(t *testing.T) {
	ctx := context.Background()
	store := s.New(t)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := store.Insert(ctx, &memory.Record{Text: "v1", Embedding: vecA, Timestamp: ts})
	require.NoError(t, err)

	ok, err := store.Replace(ctx, id, &memory.Record{ID: id, Text: "v2", Embedding: vecB, Timestamp: ts.Add(-time.Hour)})
	require.NoError(t, err)
	assert.True(t, ok)

	records, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "v2", records[0].Text)
	assert.WithinDuration(t, ts, records[0].Timestamp, s.TimestampPrecision)
}

func (s Suite) testReplaceUnknownID(t *testing.T) {
	ctx := context.Background()
	store := s.New(t)

	_, err := store.Insert(ctx, &memory.Record{Text: "kept", Embedding: vecA, Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	ok, err := store.Replace(ctx, s.UnknownID, &memory.Record{Text: "x", Embedding: vecB, Timestamp: time.Now().UTC()})
	require.NoError(t, err)
	assert.False(t, ok)

	records, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0].Text)
}

func (s Suite) testReplaceMalformedID(t *testing.T) {
	store := s.New(t)

	ok, err := store.Replace(context.Background(), s.MalformedID, &memory.Record{Text: "x", Embedding: vecB, Timestamp: time.Now().UTC()})
	require.ErrorIs(t, err, memory.ErrInvalidArgument)
	assert.False(t, ok)
}

func (s Suite) testReplaceIDVariants(t *testing.T) {
	if s.IDVariants == nil {
		t.Skip("backend has a single id spelling")
	}
	ctx := context.Background()
	store := s.New(t)

	id, err := store.Insert(ctx, &memory.Record{Text: "v0", Embedding: vecA, Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	for i, variant := range s.IDVariants(id) {
		text := fmt.Sprintf("v%d", i+1)
		ok, err := store.Replace(ctx, variant, &memory.Record{Text: text, Embedding: vecB, Timestamp: time.Now().UTC()})
		require.NoError(t, err, variant)
		assert.True(t, ok, "replace via %q", variant)

		records, err := store.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, id, records[0].ID)
		assert.Equal(t, text, records[0].Text)
	}
}

func (s Suite) testReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := s.New(t)

	_, err := store.Insert(ctx, &memory.Record{Text: "stable", Embedding: vecA, Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	first, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	first[0].Text = "mutated"
	first[0].Embedding[0] = 42

	second, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "stable", second[0].Text)
	assert.InDeltaSlice(t, vecA, second[0].Embedding, 1e-5)
}

func (s Suite) testConcurrentReplace(t *testing.T) {
	ctx := context.Background()
	store := s.New(t)

	id, err := store.Insert(ctx, &memory.Record{Text: "start", Embedding: vecA, Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	const writers = 8
	texts := make(map[string]bool, writers)
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		text := fmt.Sprintf("writer %d", i)
		texts[text] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Replace(ctx, id, &memory.Record{ID: id, Text: text, Embedding: vecD, Timestamp: time.Now().UTC()}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	records, err := store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, texts[records[0].Text], "final text %q was not written by any writer", records[0].Text)
}

// testManagerProperties checks the store-level guarantees through a Manager
// wired to this backend.
func (s Suite) testManagerProperties(t *testing.T) {
	ctx := context.Background()
	embedder := NewTableEmbedder(Dims, map[string][]float32{
		"query": {1, 0, 0, 0},
		"a":     {0.9, 0.4358899, 0, 0},
		"b":     {0.5, 0, 0.8660254, 0},
		"c":     {0.1, 0, 0, 0.9949874},
		"b2":    {0, 1, 0, 0},
	})
	mgr, err := memory.NewManager(s.New(t), embedder, nil)
	require.NoError(t, err)

	results, err := mgr.Retrieve(ctx, "query", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	ids := map[string]string{}
	for _, text := range []string{"c", "a", "b"} {
		id, err := mgr.Store(ctx, text)
		require.NoError(t, err)
		ids[text] = id
	}

	results, err = mgr.Retrieve(ctx, "query", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{results[0].Text, results[1].Text, results[2].Text})
	assert.Equal(t, ids["a"], results[0].ID)

	ok, err := mgr.Update(ctx, ids["b"], "b2")
	require.NoError(t, err)
	assert.True(t, ok)

	top, err := mgr.Retrieve(ctx, "b2", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "b2", top[0].Text)
	assert.Equal(t, ids["b"], top[0].ID)

	n, err := mgr.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ok, err = mgr.Update(ctx, s.UnknownID, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mgr.Close())
}
