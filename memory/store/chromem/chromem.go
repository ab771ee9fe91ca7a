// Package chromem is a memory.Store backed by chromem-go, a pure Go embedded
// vector database. With a Path the collection persists to disk; without one
// it lives in process memory.
//
// chromem-go normalises vectors on insert, so scores only match the raw
// inner product for unit-norm embedders (mock, onnx, openai). Insert and
// Replace reject any other embedding with memory.ErrInvalidArgument.
package chromem

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/nim-memory/memory"
)

const (
	metaSeq       = "seq"
	metaTimestamp = "timestamp"

	normTolerance = 1e-3
)

// Config holds chromem backend configuration.
type Config struct {
	// Path is the persistence directory. Empty keeps everything in memory.
	Path string `yaml:"path"`

	// Compress gzips persisted documents.
	Compress bool `yaml:"compress"`

	// Collection name. Default: "memories".
	Collection string `yaml:"collection"`

	// Dimensions of the stored embeddings. Required.
	Dimensions int `yaml:"dimensions"`
}

// ChromemStore wraps a chromem-go collection.
type ChromemStore struct {
	db   *chromem.DB
	col  *chromem.Collection
	dims int

	// mu serialises writes so Replace is atomic per record and seq stays
	// strictly increasing.
	mu      sync.RWMutex
	nextSeq int64
}

// New opens (or creates) the collection.
func New(cfg Config) (*ChromemStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("chromem: %w: dimensions must be > 0", memory.ErrInvalidArgument)
	}
	if cfg.Collection == "" {
		cfg.Collection = "memories"
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("chromem: %w: open %s: %w", memory.ErrConnection, cfg.Path, err)
		}
	}

	// Embeddings are always supplied, so no embedding func is needed.
	col, err := db.GetOrCreateCollection(cfg.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: %w: collection %s: %w", memory.ErrConnection, cfg.Collection, err)
	}

	s := &ChromemStore{db: db, col: col, dims: cfg.Dimensions}

	existing, err := s.documents(context.Background())
	if err != nil {
		return nil, fmt.Errorf("chromem: %w: scan %s: %w", memory.ErrConnection, cfg.Collection, err)
	}
	for _, doc := range existing {
		if seq := docSeq(doc); seq >= s.nextSeq {
			s.nextSeq = seq + 1
		}
	}

	log.Printf("[CHROMEM] Opened collection %q with %d memories (persistent=%v)", cfg.Collection, len(existing), cfg.Path != "")
	return s, nil
}

// Insert adds a record under a fresh UUID.
func (s *ChromemStore) Insert(ctx context.Context, rec *memory.Record) (string, error) {
	if len(rec.Embedding) != s.dims {
		return "", fmt.Errorf("chromem: insert: embedding has %d dimensions, want %d", len(rec.Embedding), s.dims)
	}
	if err := checkUnitNorm(rec.Embedding); err != nil {
		return "", fmt.Errorf("chromem: insert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	doc := chromem.Document{
		ID:        id,
		Content:   rec.Text,
		Embedding: append([]float32(nil), rec.Embedding...),
		Metadata: map[string]string{
			metaSeq:       strconv.FormatInt(s.nextSeq, 10),
			metaTimestamp: rec.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("chromem: add document: %w", err)
	}
	s.nextSeq++
	return id, nil
}

// FindAll returns every record in insertion order.
func (s *ChromemStore) FindAll(ctx context.Context) ([]*memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, err := s.documents(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*memory.Record, 0, len(docs))
	for _, doc := range docs {
		ts, err := time.Parse(time.RFC3339Nano, doc.Metadata[metaTimestamp])
		if err != nil {
			return nil, fmt.Errorf("chromem: document %s: timestamp: %w", doc.ID, err)
		}
		records = append(records, &memory.Record{
			ID:        doc.ID,
			Text:      doc.Content,
			Embedding: append([]float32(nil), doc.Embedding...),
			Timestamp: ts,
		})
	}
	return records, nil
}

// Replace overwrites the document with the given id, keeping its seq and
// the later of the two timestamps.
func (s *ChromemStore) Replace(ctx context.Context, id string, rec *memory.Record) (bool, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false, fmt.Errorf("chromem: %w: id %q: %v", memory.ErrInvalidArgument, id, err)
	}
	// Ids are stored in canonical form; uuid.Parse also accepts braces,
	// urn:uuid: and upper case.
	id = parsed.String()
	if len(rec.Embedding) != s.dims {
		return false, fmt.Errorf("chromem: replace: embedding has %d dimensions, want %d", len(rec.Embedding), s.dims)
	}
	if err := checkUnitNorm(rec.Embedding); err != nil {
		return false, fmt.Errorf("chromem: replace: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// GetByID only fails for unknown ids.
	prev, err := s.col.GetByID(ctx, id)
	if err != nil {
		return false, nil
	}

	ts := rec.Timestamp.UTC()
	if prevTS, err := time.Parse(time.RFC3339Nano, prev.Metadata[metaTimestamp]); err == nil && prevTS.After(ts) {
		ts = prevTS
	}

	doc := chromem.Document{
		ID:        id,
		Content:   rec.Text,
		Embedding: append([]float32(nil), rec.Embedding...),
		Metadata: map[string]string{
			metaSeq:       prev.Metadata[metaSeq],
			metaTimestamp: ts.Format(time.RFC3339Nano),
		},
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return false, fmt.Errorf("chromem: replace document %s: %w", id, err)
	}
	return true, nil
}

// Close is a no-op; persisted documents are written on every change.
func (s *ChromemStore) Close() error {
	return nil
}

// documents lists the whole collection ordered by seq. chromem-go has no
// scan, so it queries with nResults equal to the collection size.
func (s *ChromemStore) documents(ctx context.Context) ([]chromem.Result, error) {
	n := s.col.Count()
	if n == 0 {
		return nil, nil
	}

	probe := make([]float32, s.dims)
	probe[0] = 1
	docs, err := s.col.QueryEmbedding(ctx, probe, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: list documents: %w", err)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docSeq(docs[i]) < docSeq(docs[j])
	})
	return docs, nil
}

func docSeq(doc chromem.Result) int64 {
	seq, err := strconv.ParseInt(doc.Metadata[metaSeq], 10, 64)
	if err != nil {
		return -1
	}
	return seq
}

// checkUnitNorm rejects vectors chromem-go would rescale.
func checkUnitNorm(v []float32) error {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if norm := math.Sqrt(sum); math.Abs(norm-1) > normTolerance {
		return fmt.Errorf("%w: embedding norm is %.4f, this backend needs unit-norm embeddings", memory.ErrInvalidArgument, norm)
	}
	return nil
}
