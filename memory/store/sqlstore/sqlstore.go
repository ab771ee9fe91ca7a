// Package sqlstore is a memory.Store on database/sql. The DSN picks the
// dialect: SQLite through modernc.org/sqlite or PostgreSQL through lib/pq.
//
// Embeddings are stored as JSON text and timestamps as unix nanoseconds.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/becomeliminal/nim-memory/memory"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds SQL backend configuration.
type Config struct {
	// DSN is sqlite://path, file:..., :memory:, a bare file path,
	// or postgres://... / postgresql://...
	DSN string `yaml:"dsn"`

	// Table name. Default: "memories".
	Table string `yaml:"table"`

	// ConnectTimeout bounds the initial ping. Default: 5s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// MaxOpenConns for PostgreSQL. SQLite always uses one connection.
	// Default: 10.
	MaxOpenConns int `yaml:"max_open_conns"`
}

// DefaultConfig returns an in-memory SQLite configuration.
func DefaultConfig() *Config {
	return &Config{
		DSN:            ":memory:",
		Table:          "memories",
		ConnectTimeout: 5 * time.Second,
		MaxOpenConns:   10,
	}
}

// dialect holds the per-database SQL.
type dialect struct {
	name    string
	driver  string
	schema  string
	insert  string
	findAll string
	replace string
}

func newDialect(driver, table string) dialect {
	switch driver {
	case "postgres":
		return dialect{
			name:   "postgres",
			driver: driver,
			schema: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				seq        BIGSERIAL PRIMARY KEY,
				id         TEXT NOT NULL UNIQUE,
				text       TEXT NOT NULL,
				embedding  TEXT NOT NULL,
				written_at BIGINT NOT NULL
			)`, table),
			insert:  fmt.Sprintf(`INSERT INTO %s (id, text, embedding, written_at) VALUES ($1, $2, $3, $4)`, table),
			findAll: fmt.Sprintf(`SELECT id, text, embedding, written_at FROM %s ORDER BY seq`, table),
			replace: fmt.Sprintf(`UPDATE %s SET text = $1, embedding = $2, written_at = GREATEST(written_at, $3) WHERE id = $4`, table),
		}
	default:
		return dialect{
			name:   "sqlite",
			driver: "sqlite",
			schema: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				seq        INTEGER PRIMARY KEY AUTOINCREMENT,
				id         TEXT NOT NULL UNIQUE,
				text       TEXT NOT NULL,
				embedding  TEXT NOT NULL,
				written_at INTEGER NOT NULL
			)`, table),
			insert:  fmt.Sprintf(`INSERT INTO %s (id, text, embedding, written_at) VALUES (?, ?, ?, ?)`, table),
			findAll: fmt.Sprintf(`SELECT id, text, embedding, written_at FROM %s ORDER BY seq`, table),
			replace: fmt.Sprintf(`UPDATE %s SET text = ?, embedding = ?, written_at = MAX(written_at, ?) WHERE id = ?`, table),
		}
	}
}

// parseDSN returns the driver name and the driver-specific DSN.
func parseDSN(dsn string) (driver, source string, err error) {
	switch {
	case dsn == "":
		return "", "", fmt.Errorf("empty DSN")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite DSN has no path")
		}
		return "sqlite", path, nil
	default:
		// file:..., :memory: and bare paths
		return "sqlite", dsn, nil
	}
}

// SQLStore implements memory.Store on a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// New opens the database, checks connectivity and creates the table.
func New(cfg *Config) (*SQLStore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	table := cfg.Table
	if table == "" {
		table = "memories"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("sqlstore: %w: invalid table name %q", memory.ErrInvalidArgument, table)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	driver, source, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: %w: %w", memory.ErrInvalidArgument, err)
	}
	d := newDialect(driver, table)

	db, err := openDB(d.driver, source)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: %w: open database: %w", memory.ErrConnection, err)
	}

	if d.name == "sqlite" {
		// Pragmas are per connection, and :memory: is per connection too.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: %w: ping database: %w", memory.ErrConnection, err)
	}

	if d.name == "sqlite" {
		pragmas := []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA synchronous = NORMAL",
		}
		for _, p := range pragmas {
			if _, err := db.ExecContext(ctx, p); err != nil {
				db.Close()
				return nil, fmt.Errorf("sqlstore: %w: %s: %w", memory.ErrConnection, p, err)
			}
		}
	}

	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: %w: create schema: %w", memory.ErrConnection, err)
	}

	log.Printf("[SQL] Opened %s table %q", d.name, table)
	return &SQLStore{db: db, dialect: d}, nil
}

// Insert adds a record under a fresh UUID.
func (s *SQLStore) Insert(ctx context.Context, rec *memory.Record) (string, error) {
	embedding, err := json.Marshal(rec.Embedding)
	if err != nil {
		return "", fmt.Errorf("sqlstore: encode embedding: %w", err)
	}

	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, s.dialect.insert, id, rec.Text, string(embedding), rec.Timestamp.UnixNano()); err != nil {
		return "", fmt.Errorf("sqlstore: insert: %w", err)
	}
	return id, nil
}

// FindAll returns every record in insertion order.
func (s *SQLStore) FindAll(ctx context.Context) ([]*memory.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.findAll)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: find all: %w", err)
	}
	defer rows.Close()

	var records []*memory.Record
	for rows.Next() {
		var (
			rec       memory.Record
			embedding string
			nanos     int64
		)
		if err := rows.Scan(&rec.ID, &rec.Text, &embedding, &nanos); err != nil {
			return nil, fmt.Errorf("sqlstore: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(embedding), &rec.Embedding); err != nil {
			return nil, fmt.Errorf("sqlstore: record %s: decode embedding: %w", rec.ID, err)
		}
		rec.Timestamp = time.Unix(0, nanos).UTC()
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: find all: %w", err)
	}
	return records, nil
}

// Replace updates the record in one statement, keeping the later timestamp.
func (s *SQLStore) Replace(ctx context.Context, id string, rec *memory.Record) (bool, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false, fmt.Errorf("sqlstore: %w: id %q: %v", memory.ErrInvalidArgument, id, err)
	}
	// Ids are stored in canonical form; uuid.Parse also accepts braces,
	// urn:uuid: and upper case.
	id = parsed.String()

	embedding, err := json.Marshal(rec.Embedding)
	if err != nil {
		return false, fmt.Errorf("sqlstore: encode embedding: %w", err)
	}

	res, err := s.db.ExecContext(ctx, s.dialect.replace, rec.Text, string(embedding), rec.Timestamp.UnixNano(), id)
	if err != nil {
		return false, fmt.Errorf("sqlstore: replace %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlstore: replace %s: rows affected: %w", id, err)
	}
	return n == 1, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
