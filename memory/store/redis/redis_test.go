package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/memorytest"
)

func TestRedisStore_Suite(t *testing.T) {
	memorytest.Suite{
		New: func(t *testing.T) memory.Store {
			s := miniredis.RunT(t)
			store, err := New(Config{URL: "redis://" + s.Addr()})
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
		UnknownID:          "6f1c1b1e-9a51-4c1f-8d33-2f0a9a4ad001",
		MalformedID:        "not-a-uuid",
		IDVariants:         memorytest.UUIDVariants,
		TimestampPrecision: time.Nanosecond,
	}.Run(t)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewWithClient(client, "test")
	defer store.Close()
	ctx := context.Background()

	ts := time.Unix(0, 1700000000123456789)
	id, err := store.Insert(ctx, &memory.Record{Text: "hello", Embedding: []float32{1, 0.5}, Timestamp: ts})
	require.NoError(t, err)

	ids, err := s.List("test:ids")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
	assert.Equal(t, "hello", s.HGet("test:rec:"+id, "text"))
	assert.Equal(t, "[1,0.5]", s.HGet("test:rec:"+id, "embedding"))
	assert.Equal(t, "01700000000123456789", s.HGet("test:rec:"+id, "ts"))
}

func TestRedisStore_ReplaceDoesNotCreate(t *testing.T) {
	s := miniredis.RunT(t)
	store := NewWithClient(goredis.NewClient(&goredis.Options{Addr: s.Addr()}), "")
	defer store.Close()

	const id = "6f1c1b1e-9a51-4c1f-8d33-2f0a9a4ad001"
	ok, err := store.Replace(context.Background(), id, &memory.Record{Text: "x", Embedding: []float32{1}, Timestamp: time.Now()})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, s.Exists("nim:memory:rec:"+id))
}

func TestRedisStore_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, err := New(Config{URL: "redis://" + addr, DialTimeout: 500 * time.Millisecond})
	require.ErrorIs(t, err, memory.ErrConnection)
}

func TestRedisStore_BadURL(t *testing.T) {
	_, err := New(Config{URL: "http://not-redis"})
	require.ErrorIs(t, err, memory.ErrInvalidArgument)
}

func TestRedisStore_ServerErrorIsReported(t *testing.T) {
	s := miniredis.RunT(t)
	store := NewWithClient(goredis.NewClient(&goredis.Options{Addr: s.Addr(), MaxRetries: -1}), "")
	defer store.Close()

	s.SetError("ERR injected failure")
	_, err := store.FindAll(context.Background())
	require.Error(t, err)
}
