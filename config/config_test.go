package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nim-memory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendChromem, cfg.Backend)
	assert.Equal(t, DefaultChromemPath, cfg.Chromem.Path)
	assert.Equal(t, EmbedderMock, cfg.Embedder.Provider)
	assert.Equal(t, 384, cfg.Dimensions())
	assert.Equal(t, "smart_stubs_db", cfg.Mongo.Database)
	assert.Equal(t, "memories", cfg.Mongo.Collection)
	assert.Equal(t, 5*time.Second, cfg.Mongo.ConnectTimeout)
}

func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TEST_MONGO_HOST", "db.internal")

	path := writeFile(t, `
backend: mongo
mongo:
  uri: mongodb://${TEST_MONGO_HOST}:27017
  connect_timeout: 2s
embedder:
  provider: mock
  dimensions: 64
  cache:
    enabled: true
    max_bytes: 1048576
metrics:
  addr: ":9090"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMongo, cfg.Backend)
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Mongo.URI)
	assert.Equal(t, 2*time.Second, cfg.Mongo.ConnectTimeout)
	assert.Equal(t, "smart_stubs_db", cfg.Mongo.Database)
	assert.Equal(t, 64, cfg.Dimensions())
	assert.True(t, cfg.Embedder.Cache.Enabled)
	assert.Equal(t, int64(1048576), cfg.Embedder.Cache.MaxBytes)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NIM_MEMORY_BACKEND", "sql")
	t.Setenv("NIM_MEMORY_SQL_DSN", "sqlite:///tmp/memories.db")
	t.Setenv("NIM_MEMORY_EMBEDDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NIM_MEMORY_CONNECT_TIMEOUT", "750ms")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendSQL, cfg.Backend)
	assert.Equal(t, "sqlite:///tmp/memories.db", cfg.SQL.DSN)
	assert.Equal(t, "sk-test", cfg.Embedder.OpenAI.APIKey)
	assert.Equal(t, 1536, cfg.Dimensions())
	assert.Equal(t, 750*time.Millisecond, cfg.SQL.ConnectTimeout)
	assert.Equal(t, 750*time.Millisecond, cfg.Redis.DialTimeout)
}

func TestLoad_MemoriesURIFallback(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NIM_MEMORY_BACKEND", "mongo")
	t.Setenv("MEMORIES_URI", "mongodb://legacy:27017")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mongodb://legacy:27017", cfg.Mongo.URI)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NIM_MEMORY_REDIS_NAMESPACE=fromdotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("NIM_MEMORY_REDIS_NAMESPACE") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fromdotenv", cfg.Redis.Namespace)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown backend", "backend: cassandra\n"},
		{"unknown embedder", "embedder:\n  provider: word2vec\n"},
		{"openai without key", "embedder:\n  provider: openai\n  openai:\n    api_key: \"\"\n"},
		{"onnx without model", "embedder:\n  provider: onnx\n"},
		{"zero dimensions", "embedder:\n  dimensions: 0\n"},
		{"malformed yaml", "backend: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_BadEnvNumber(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("NIM_MEMORY_DIMENSIONS", "many")

	_, err := Load("")
	assert.Error(t, err)
}
