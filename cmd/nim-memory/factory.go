package main

import (
	"fmt"
	"log"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/cached"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
	"github.com/becomeliminal/nim-memory/memory/embedder/openai"
	"github.com/becomeliminal/nim-memory/memory/store/chromem"
	"github.com/becomeliminal/nim-memory/memory/store/mongo"
	"github.com/becomeliminal/nim-memory/memory/store/redis"
	"github.com/becomeliminal/nim-memory/memory/store/sqlstore"
)

// NewManager builds the configured embedder and backend. On error nothing
// is left open.
func NewManager(cfg *config.Config, observer memory.Observer) (*memory.Manager, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	store, err := newStore(cfg)
	if err != nil {
		closeEmbedder(embedder)
		return nil, fmt.Errorf("store: %w", err)
	}

	mcfg := memory.DefaultConfig()
	mcfg.Observer = observer
	mgr, err := memory.NewManager(store, embedder, mcfg)
	if err != nil {
		store.Close()
		closeEmbedder(embedder)
		return nil, err
	}
	return mgr, nil
}

func newStore(cfg *config.Config) (memory.Store, error) {
	switch cfg.Backend {
	case config.BackendMongo:
		return mongo.New(cfg.Mongo)
	case config.BackendSQL:
		sqlCfg := cfg.SQL
		return sqlstore.New(&sqlCfg)
	case config.BackendRedis:
		return redis.New(cfg.Redis)
	case config.BackendChromem:
		chromemCfg := cfg.Chromem
		chromemCfg.Dimensions = cfg.Dimensions()
		return chromem.New(chromemCfg)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func newEmbedder(cfg *config.Config) (memory.Embedder, error) {
	var embedder memory.Embedder
	switch cfg.Embedder.Provider {
	case config.EmbedderMock:
		embedder = mock.NewWithDimensions(cfg.Embedder.Dimensions)
	case config.EmbedderOpenAI:
		embedder = openai.New(cfg.Embedder.OpenAI)
	case config.EmbedderONNX:
		var err error
		embedder, err = newONNXEmbedder(cfg.Embedder)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder.Provider)
	}

	if !cfg.Embedder.Cache.Enabled {
		return embedder, nil
	}
	c, err := cached.New(embedder, cfg.Embedder.Cache.Config)
	if err != nil {
		closeEmbedder(embedder)
		return nil, fmt.Errorf("cache: %w", err)
	}
	log.Printf("[MEMORY] Caching %s embeddings", cfg.Embedder.Provider)
	return c, nil
}

func closeEmbedder(e memory.Embedder) {
	if c, ok := e.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
