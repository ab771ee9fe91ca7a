// Package config loads nim-memory configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/nim-memory/memory/embedder/cached"
	"github.com/becomeliminal/nim-memory/memory/embedder/openai"
	"github.com/becomeliminal/nim-memory/memory/store/chromem"
	"github.com/becomeliminal/nim-memory/memory/store/mongo"
	"github.com/becomeliminal/nim-memory/memory/store/redis"
	"github.com/becomeliminal/nim-memory/memory/store/sqlstore"
)

// Backends.
const (
	BackendMongo = "mongo"
	BackendSQL   = "sql"
	BackendRedis = "redis"

	// BackendChromem stores only unit-norm embeddings: chromem-go normalises
	// vectors, so any other embedding is rejected rather than ranked by cosine.
	BackendChromem = "chromem"
)

// DefaultChromemPath is where the default chromem backend persists, relative
// to the working directory.
const DefaultChromemPath = ".nim-memory"

// Embedder providers.
const (
	EmbedderMock   = "mock"
	EmbedderOpenAI = "openai"
	EmbedderONNX   = "onnx"
)

// Config is the top-level configuration.
type Config struct {
	Backend  string          `yaml:"backend"`
	Mongo    mongo.Config    `yaml:"mongo"`
	SQL      sqlstore.Config `yaml:"sql"`
	Redis    redis.Config    `yaml:"redis"`
	Chromem  chromem.Config  `yaml:"chromem"`
	Embedder EmbedderConfig  `yaml:"embedder"`
	Metrics  MetricsConfig   `yaml:"metrics"`
}

// EmbedderConfig selects and configures the embedder.
type EmbedderConfig struct {
	Provider   string        `yaml:"provider"`
	Dimensions int           `yaml:"dimensions"` // mock and onnx; openai uses OpenAI.Dimensions
	OpenAI     openai.Config `yaml:"openai"`
	ONNX       ONNXConfig    `yaml:"onnx"`
	Cache      CacheConfig   `yaml:"cache"`
}

// ONNXConfig locates the model files. Only used in builds with the onnx tag.
type ONNXConfig struct {
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	LibraryPath   string `yaml:"library_path"`
}

// CacheConfig wraps the embedder in a vector cache when enabled.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	cached.Config `yaml:",inline"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. ":9090"; empty disables /metrics
}

// DefaultConfig returns a chromem store persisted under DefaultChromemPath
// with the mock embedder.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendChromem,
		Mongo:   mongo.DefaultConfig(),
		SQL:     *sqlstore.DefaultConfig(),
		Redis:   redis.DefaultConfig(),
		Chromem: chromem.Config{Path: DefaultChromemPath, Collection: "memories"},
		Embedder: EmbedderConfig{
			Provider:   EmbedderMock,
			Dimensions: 384,
			OpenAI:     openai.DefaultConfig(),
		},
	}
}

// Load reads the .env file if present, then the YAML file at path (optional
// when empty), then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides fields from NIM_MEMORY_* variables.
func (c *Config) applyEnv() error {
	setString := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := os.Getenv(key); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&c.Backend, "NIM_MEMORY_BACKEND")
	setString(&c.Mongo.URI, "NIM_MEMORY_MONGO_URI", "MEMORIES_URI")
	setString(&c.Mongo.Database, "NIM_MEMORY_MONGO_DATABASE")
	setString(&c.Mongo.Collection, "NIM_MEMORY_MONGO_COLLECTION")
	setString(&c.SQL.DSN, "NIM_MEMORY_SQL_DSN")
	setString(&c.Redis.URL, "NIM_MEMORY_REDIS_URL")
	setString(&c.Redis.Namespace, "NIM_MEMORY_REDIS_NAMESPACE")
	setString(&c.Chromem.Path, "NIM_MEMORY_CHROMEM_PATH")
	setString(&c.Embedder.Provider, "NIM_MEMORY_EMBEDDER")
	setString(&c.Embedder.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.Embedder.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Embedder.OpenAI.Model, "NIM_MEMORY_OPENAI_MODEL")
	setString(&c.Embedder.ONNX.ModelPath, "NIM_MEMORY_ONNX_MODEL")
	setString(&c.Embedder.ONNX.TokenizerPath, "NIM_MEMORY_ONNX_TOKENIZER")
	setString(&c.Embedder.ONNX.LibraryPath, "ONNXRUNTIME_LIB")
	setString(&c.Metrics.Addr, "NIM_MEMORY_METRICS_ADDR")

	if v := os.Getenv("NIM_MEMORY_DIMENSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NIM_MEMORY_DIMENSIONS: %w", err)
		}
		c.Embedder.Dimensions = n
	}
	if v := os.Getenv("NIM_MEMORY_CONNECT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NIM_MEMORY_CONNECT_TIMEOUT: %w", err)
		}
		c.Mongo.ConnectTimeout = d
		c.SQL.ConnectTimeout = d
		c.Redis.DialTimeout = d
	}
	return nil
}

// Dimensions returns the vector size the configured embedder produces.
func (c *Config) Dimensions() int {
	if c.Embedder.Provider == EmbedderOpenAI {
		return c.Embedder.OpenAI.Dimensions
	}
	return c.Embedder.Dimensions
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("mongo backend requires mongo.uri")
		}
	case BackendSQL:
		if c.SQL.DSN == "" {
			return fmt.Errorf("sql backend requires sql.dsn")
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis backend requires redis.url")
		}
	case BackendChromem:
	default:
		return fmt.Errorf("unknown backend %q (want mongo, sql, redis or chromem)", c.Backend)
	}

	switch c.Embedder.Provider {
	case EmbedderMock:
	case EmbedderOpenAI:
		if c.Embedder.OpenAI.APIKey == "" && c.Embedder.OpenAI.BaseURL == "" {
			return fmt.Errorf("openai embedder requires OPENAI_API_KEY")
		}
	case EmbedderONNX:
		if c.Embedder.ONNX.ModelPath == "" || c.Embedder.ONNX.TokenizerPath == "" {
			return fmt.Errorf("onnx embedder requires embedder.onnx.model_path and tokenizer_path")
		}
	default:
		return fmt.Errorf("unknown embedder %q (want mock, openai or onnx)", c.Embedder.Provider)
	}

	if c.Dimensions() <= 0 {
		return fmt.Errorf("embedder dimensions must be > 0")
	}
	return nil
}
