// Package redis is a memory.Store on Redis.
//
// Each record is a hash at <namespace>:rec:<id> with text, embedding (JSON)
// and ts fields. The list <namespace>:ids keeps storage order.
package redis

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/becomeliminal/nim-memory/memory"
)

// Config holds Redis backend configuration.
type Config struct {
	URL         string        `yaml:"url"`          // redis://[user:pass@]host:port/db
	Namespace   string        `yaml:"namespace"`    // Key prefix
	DialTimeout time.Duration `yaml:"dial_timeout"` // Connection timeout
	PoolSize    int           `yaml:"pool_size"`    // Connection pool size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:         "redis://localhost:6379/0",
		Namespace:   "nim:memory",
		DialTimeout: 5 * time.Second,
		PoolSize:    10,
	}
}

// tsWidth zero-pads unix nanos so the Lua script can compare them as
// strings; Lua numbers lose precision above 2^53.
const tsWidth = 20

// replaceScript updates a record only if it exists and never moves its
// timestamp backwards.
var replaceScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
local ts = ARGV[3]
local prev = redis.call('HGET', KEYS[1], 'ts')
if prev and prev > ts then
	ts = prev
end
redis.call('HSET', KEYS[1], 'text', ARGV[1], 'embedding', ARGV[2], 'ts', ts)
return 1
`)

// RedisStore implements memory.Store on a Redis client.
type RedisStore struct {
	client    goredis.UniversalClient
	namespace string
}

// New connects to Redis and pings it within DialTimeout.
func New(cfg Config) (*RedisStore, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultConfig().URL
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w: parse url: %w", memory.ErrInvalidArgument, err)
	}
	opts.DialTimeout = cfg.DialTimeout
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: %w: ping %s: %w", memory.ErrConnection, opts.Addr, err)
	}

	log.Printf("[REDIS] Connected to %s (namespace %q)", opts.Addr, namespaceOrDefault(cfg.Namespace))
	return NewWithClient(client, cfg.Namespace), nil
}

// NewWithClient wraps an existing client. Close closes the client.
func NewWithClient(client goredis.UniversalClient, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespaceOrDefault(namespace)}
}

func namespaceOrDefault(ns string) string {
	if ns == "" {
		return DefaultConfig().Namespace
	}
	return ns
}

func (s *RedisStore) recordKey(id string) string {
	return s.namespace + ":rec:" + id
}

func (s *RedisStore) idsKey() string {
	return s.namespace + ":ids"
}

func formatTS(t time.Time) string {
	return fmt.Sprintf("%0*d", tsWidth, t.UnixNano())
}

// Insert writes the hash and appends the id in one MULTI/EXEC.
func (s *RedisStore) Insert(ctx context.Context, rec *memory.Record) (string, error) {
	embedding, err := json.Marshal(rec.Embedding)
	if err != nil {
		return "", fmt.Errorf("redis: encode embedding: %w", err)
	}

	id := uuid.NewString()
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.recordKey(id),
			"text", rec.Text,
			"embedding", string(embedding),
			"ts", formatTS(rec.Timestamp),
		)
		pipe.RPush(ctx, s.idsKey(), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("redis: insert: %w", err)
	}
	return id, nil
}

// FindAll reads the id list and then every hash in one pipeline.
func (s *RedisStore) FindAll(ctx context.Context) ([]*memory.Record, error) {
	ids, err := s.client.LRange(ctx, s.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.recordKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis: read records: %w", err)
	}

	records := make([]*memory.Record, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeRecord(ids[i], fields)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRecord(id string, fields map[string]string) (*memory.Record, error) {
	rec := &memory.Record{ID: id, Text: fields["text"]}
	if err := json.Unmarshal([]byte(fields["embedding"]), &rec.Embedding); err != nil {
		return nil, fmt.Errorf("redis: record %s: decode embedding: %w", id, err)
	}
	nanos, err := strconv.ParseInt(fields["ts"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: record %s: timestamp: %w", id, err)
	}
	rec.Timestamp = time.Unix(0, nanos).UTC()
	return rec, nil
}

// Replace runs the replace script so the existence check and write are atomic.
func (s *RedisStore) Replace(ctx context.Context, id string, rec *memory.Record) (bool, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false, fmt.Errorf("redis: %w: id %q: %v", memory.ErrInvalidArgument, id, err)
	}
	// Ids are stored in canonical form; uuid.Parse also accepts braces,
	// urn:uuid: and upper case.
	id = parsed.String()

	embedding, err := json.Marshal(rec.Embedding)
	if err != nil {
		return false, fmt.Errorf("redis: encode embedding: %w", err)
	}

	n, err := replaceScript.Run(ctx, s.client, []string{s.recordKey(id)},
		rec.Text, string(embedding), formatTS(rec.Timestamp),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis: replace %s: %w", id, err)
	}
	return n == 1, nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
