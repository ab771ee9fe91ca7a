package memory

import (
	"context"
	"errors"
	"time"
)

// DefaultTopK is the number of results recall tools ask for when the caller
// does not say.
const DefaultTopK = 3

// Error kinds. Operation errors wrap exactly one of these; test with errors.Is.
var (
	// ErrConnection means the backend was unreachable while the store was
	// being constructed.
	ErrConnection = errors.New("connection failure")

	// ErrStorage means a single backend read or write failed.
	ErrStorage = errors.New("storage failure")

	// ErrEmbedding means the embedder could not process the input.
	ErrEmbedding = errors.New("embedding failure")

	// ErrInvalidArgument means an id, text or k was malformed.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Record is a stored note with its embedding.
type Record struct {
	ID        string
	Text      string
	Embedding []float32

	// Timestamp is the time of the last write (creation or update).
	Timestamp time.Time
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Embedding = append([]float32(nil), r.Embedding...)
	return &c
}

// Result is one entry of a retrieval, best match first.
type Result struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Store is the record backend interface.
// Implementations: mongo (original backend), sqlstore (SQLite/PostgreSQL),
// redis, chromem (embedded).
//
// Backends own their records and hand out copies only. Each write is atomic
// for the record it touches; FindAll is a snapshot read with no isolation
// across records.
type Store interface {
	// Insert persists a new record and returns the id the backend assigned.
	// rec.ID is ignored.
	Insert(ctx context.Context, rec *Record) (string, error)

	// FindAll returns every record in storage (insertion) order.
	FindAll(ctx context.Context) ([]*Record, error)

	// Replace overwrites text, embedding and timestamp of the record with the
	// given id. The stored timestamp never moves backwards. It reports false
	// with a nil error when no record has that id, and returns an error
	// wrapping ErrInvalidArgument when id is not in the backend's format.
	Replace(ctx context.Context, id string, rec *Record) (bool, error)

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), openai (API), onnx (local model),
// cached (decorator).
//
// Embed must be deterministic for identical text and always return vectors
// of the same length.
type Embedder interface {
	// Embed converts a single text to embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns embedding vector size, or 0 when unknown.
	Dimensions() int
}

// Observer receives the outcome of every Manager operation.
type Observer interface {
	ObserveOperation(op string, err error, elapsed time.Duration)
}

func isInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
