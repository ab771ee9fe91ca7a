package memory

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

// Manager is the semantic memory store that tool code calls.
//
// It embeds text, hands records to the backend and ranks them on recall.
// Manager holds no lock of its own: per-record atomicity is the backend's
// job, and a recall racing with a write may see either version of a record.
type Manager struct {
	store    Store
	embedder Embedder
	config   *Config

	closeOnce sync.Once
	closeErr  error
}

// Config holds Manager configuration.
type Config struct {
	// Clock returns the time stamped on writes.
	// Default: time.Now in UTC.
	Clock func() time.Time

	// Observer, if set, is told about every operation (metrics).
	Observer Observer
}

// DefaultConfig returns the defaults used when NewManager gets a nil config.
func DefaultConfig() *Config {
	return &Config{
		Clock: func() time.Time { return time.Now().UTC() },
	}
}

// NewManager creates a Manager over an already connected store and a loaded
// embedder. The Manager takes ownership of both; Close releases them.
func NewManager(store Store, embedder Embedder, config *Config) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("memory: new manager: %w: nil store", ErrInvalidArgument)
	}
	if embedder == nil {
		return nil, fmt.Errorf("memory: new manager: %w: nil embedder", ErrInvalidArgument)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Clock == nil {
		config.Clock = DefaultConfig().Clock
	}
	return &Manager{
		store:    store,
		embedder: embedder,
		config:   config,
	}, nil
}

// Store embeds text and persists it as a new record, returning its id.
// No record is created when embedding or persisting fails.
func (m *Manager) Store(ctx context.Context, text string) (id string, err error) {
	defer m.observe("store", time.Now(), &err)

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("memory: store: %w: empty text", ErrInvalidArgument)
	}

	embedding, err := m.embed(ctx, text)
	if err != nil {
		log.Printf("[MEMORY] Store failed to embed %q: %v", truncateLog(text, 50), err)
		return "", fmt.Errorf("memory: store: %w", err)
	}

	id, err = m.store.Insert(ctx, &Record{
		Text:      text,
		Embedding: embedding,
		Timestamp: m.config.Clock(),
	})
	if err != nil {
		log.Printf("[MEMORY] Store failed to persist %q: %v", truncateLog(text, 50), err)
		return "", fmt.Errorf("memory: store: %w: %w", ErrStorage, err)
	}

	log.Printf("[MEMORY] Stored memory id=%s: %q", id, truncateLog(text, 50))
	return id, nil
}

// Retrieve returns up to k records ranked by inner product with the query's
// embedding, best first. Ties keep storage order. Every call rescans the
// current record set.
func (m *Manager) Retrieve(ctx context.Context, query string, k int) (results []Result, err error) {
	defer m.observe("retrieve", time.Now(), &err)

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("memory: retrieve: %w: empty query", ErrInvalidArgument)
	}
	if k < 0 {
		return nil, fmt.Errorf("memory: retrieve: %w: k must be >= 0, got %d", ErrInvalidArgument, k)
	}
	if k == 0 {
		return []Result{}, nil
	}

	q, err := m.embed(ctx, query)
	if err != nil {
		log.Printf("[MEMORY] Retrieve failed to embed query %q: %v", truncateLog(query, 50), err)
		return nil, fmt.Errorf("memory: retrieve: %w", err)
	}

	records, err := m.store.FindAll(ctx)
	if err != nil {
		log.Printf("[MEMORY] Retrieve failed to read records: %v", err)
		return nil, fmt.Errorf("memory: retrieve: %w: %w", ErrStorage, err)
	}

	results, err = rank(q, records, k)
	if err != nil {
		log.Printf("[MEMORY] Retrieve failed to rank records: %v", err)
		return nil, fmt.Errorf("memory: retrieve: %w: %w", ErrStorage, err)
	}

	log.Printf("[MEMORY] Retrieved %d of %d memories for query: %q", len(results), len(records), truncateLog(query, 50))
	return results, nil
}

// Update re-embeds text and replaces the record with the given id.
// It reports true iff a record was modified and false, with a nil error,
// when no record has that id.
func (m *Manager) Update(ctx context.Context, id string, text string) (updated bool, err error) {
	defer m.observe("update", time.Now(), &err)

	if strings.TrimSpace(id) == "" {
		return false, fmt.Errorf("memory: update: %w: empty id", ErrInvalidArgument)
	}
	if strings.TrimSpace(text) == "" {
		return false, fmt.Errorf("memory: update: %w: empty text", ErrInvalidArgument)
	}

	embedding, err := m.embed(ctx, text)
	if err != nil {
		log.Printf("[MEMORY] Update %s failed to embed: %v", id, err)
		return false, fmt.Errorf("memory: update: %w", err)
	}

	updated, err = m.store.Replace(ctx, id, &Record{
		ID:        id,
		Text:      text,
		Embedding: embedding,
		Timestamp: m.config.Clock(),
	})
	if err != nil {
		log.Printf("[MEMORY] Update %s failed: %v", id, err)
		if isInvalidArgument(err) {
			return false, fmt.Errorf("memory: update: %w", err)
		}
		return false, fmt.Errorf("memory: update: %w: %w", ErrStorage, err)
	}

	if !updated {
		log.Printf("[MEMORY] Update found no memory with id=%s", id)
		return false, nil
	}
	log.Printf("[MEMORY] Updated memory id=%s: %q", id, truncateLog(text, 50))
	return true, nil
}

// Count returns the number of stored records.
func (m *Manager) Count(ctx context.Context) (n int, err error) {
	defer m.observe("count", time.Now(), &err)

	records, err := m.store.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("memory: count: %w: %w", ErrStorage, err)
	}
	return len(records), nil
}

// Close releases the backend and, when it is closable, the embedder.
// Calling Close more than once returns the first result.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		var errs []error
		if err := m.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		if c, ok := m.embedder.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close embedder: %w", err))
			}
		}
		if len(errs) > 0 {
			m.closeErr = fmt.Errorf("memory: %v", errs)
		}
	})
	return m.closeErr
}

// embed runs the embedder and checks the dimensional invariant.
func (m *Manager) embed(ctx context.Context, text string) ([]float32, error) {
	embedding, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrEmbedding)
	}
	if dims := m.embedder.Dimensions(); dims > 0 && len(embedding) != dims {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrEmbedding, len(embedding), dims)
	}
	return embedding, nil
}

func (m *Manager) observe(op string, start time.Time, err *error) {
	if m.config.Observer == nil {
		return
	}
	m.config.Observer.ObserveOperation(op, *err, time.Since(start))
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return cutUTF8(s, maxLen) + "..."
}
