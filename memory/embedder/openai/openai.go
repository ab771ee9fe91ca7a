// Package openai provides a memory.Embedder backed by the OpenAI embeddings
// API. text-embedding-3 vectors are unit length, which the store's
// inner-product ranking relies on.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Config configures the OpenAI embedder.
type Config struct {
	// APIKey is the OpenAI API key. Empty uses OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the API endpoint (proxies, tests).
	BaseURL string `yaml:"base_url"`

	// Model is the embedding model.
	// Default: text-embedding-3-small.
	Model string `yaml:"model"`

	// Dimensions is the requested vector size.
	// Default: 1536.
	Dimensions int `yaml:"dimensions"`

	// Timeout bounds a single request.
	// Default: 10s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is passed to the client; negative uses 2.
	MaxRetries int `yaml:"max_retries"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Model:      string(openai.EmbeddingModelTextEmbedding3Small),
		Dimensions: 1536,
		Timeout:    10 * time.Second,
		MaxRetries: 2,
	}
}

// Embedder calls the embeddings endpoint once per text.
type Embedder struct {
	client     openai.Client
	model      string
	dimensions int
}

// New creates an OpenAI embedder. Zero config fields take DefaultConfig values.
func New(cfg Config) *Embedder {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = def.Dimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = def.MaxRetries
	}

	opts := []option.RequestOption{
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Embedder{
		client:     openai.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed converts a single text to embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	// Only the text-embedding-3 family accepts a dimensions parameter.
	if strings.HasPrefix(e.model, "text-embedding-3") {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}

	raw := resp.Data[0].Embedding
	if len(raw) != e.dimensions {
		return nil, fmt.Errorf("openai embeddings: got %d dimensions, expected %d", len(raw), e.dimensions)
	}
	embedding := make([]float32, len(raw))
	for i, v := range raw {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
