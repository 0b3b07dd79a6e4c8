package chatbot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/devxilz/mcp-chatbot/pkg/config"
	"github.com/devxilz/mcp-chatbot/pkg/embedding"
	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm/adapters/kv/boltdb"
	ltmMock "github.com/devxilz/mcp-chatbot/pkg/mem/ltm/adapters/mock"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm/adapters/sqlstore/sqlite"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm/adapters/vector/chromem_go"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm/adapters/vector/pgvector"
	"github.com/devxilz/mcp-chatbot/pkg/metrics"
	"github.com/devxilz/mcp-chatbot/pkg/mmu"
	"github.com/devxilz/mcp-chatbot/pkg/profile"
	"github.com/devxilz/mcp-chatbot/pkg/reasoning"
	reasoningAnthropic "github.com/devxilz/mcp-chatbot/pkg/reasoning/adapters/anthropic"
	reasoningMock "github.com/devxilz/mcp-chatbot/pkg/reasoning/adapters/mock"
	reasoningOpenAI "github.com/devxilz/mcp-chatbot/pkg/reasoning/adapters/openai"
	"github.com/devxilz/mcp-chatbot/pkg/scripting"
	"github.com/devxilz/mcp-chatbot/pkg/sqldb"
	"github.com/devxilz/mcp-chatbot/pkg/turnlog"
)

// NewFromConfigFile loads the configuration at path and builds a Service.
func NewFromConfigFile(ctx context.Context, path string, opts ...Option) (*Service, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewFromConfig(ctx, cfg, opts...)
}

// NewFromConfig builds every collaborator named by cfg and returns the
// Service. Close on the Service releases the opened stores. With metrics
// enabled and no WithMetrics option, metrics go to the default registry.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	probe := &Service{}
	for _, opt := range opts {
		opt(probe)
	}
	mt := probe.metrics
	if mt == nil && cfg.Metrics.Enabled {
		mt = metrics.New(prometheus.DefaultRegisterer)
	}

	var closers []io.Closer
	fail := func(err error) (*Service, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	engine, err := initReasoningEngine(cfg)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize reasoning engine: %w", err))
	}

	embedder, err := initEmbedder(cfg, engine)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize embedder: %w", err))
	}
	if c, ok := embedder.(*embedding.CachedEmbedder); ok {
		closers = append(closers, closerFunc(func() error { c.Close(); return nil }))
	}

	store, err := initVectorStore(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize memory store: %w", err))
	}
	closers = append(closers, store)

	turns, profiles, db, err := initConversationStores(cfg)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize turn log: %w", err))
	}
	if db != nil {
		closers = append(closers, db)
	}

	memOpts := []mmu.Option{mmu.WithMetrics(mt)}
	if cfg.Scripting.Enabled {
		scriptEngine, err := initScriptEngine(cfg)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize scripting engine: %w", err))
		}
		closers = append(closers, scriptEngine)
		memOpts = append(memOpts, mmu.WithScriptEngine(scriptEngine))
	}
	memories := mmu.NewMemoryStore(store, embedder, memOpts...)

	completion := reasoning.NewService(engine, completionOptions(cfg)...)

	svcCfg := Config{
		AppName:         cfg.App.Name,
		Version:         cfg.App.Version,
		SearchK:         cfg.Context.SearchK,
		MaxBudget:       cfg.Context.MaxBudget,
		RecentTurns:     cfg.Context.RecentTurns,
		DedupeThreshold: cfg.Context.DedupeThreshold,
		HalfLife:        cfg.Rerank.HalfLifeDuration(),
		ExtractProfile:  cfg.Writer.ExtractProfile,
	}
	svcCfg.Writer.WordThreshold = cfg.Writer.WordThreshold
	svcCfg.Writer.SummaryMaxTokens = cfg.Writer.SummaryMaxTokens

	all := append([]Option{}, opts...)
	all = append(all, WithMetrics(mt))
	for _, c := range closers {
		all = append(all, WithCloser(c))
	}
	svc := New(memories, completion, turns, profiles, svcCfg, all...)

	log.Info("Chatbot initialized from config",
		"memory_backend", cfg.Memory.Backend,
		"reasoning_provider", cfg.Reasoning.Provider,
		"embedding_provider", cfg.Embedding.Provider,
		"store_driver", cfg.Store.Driver,
		"lua_hooks_enabled", cfg.Scripting.Enabled,
		"metrics_enabled", mt != nil,
	)
	return svc, nil
}

// initReasoningEngine initializes the reasoning engine based on configuration
func initReasoningEngine(cfg *config.Config) (reasoning.Engine, error) {
	log.Info("Initializing reasoning engine", "provider", cfg.Reasoning.Provider)

	switch cfg.Reasoning.Provider {
	case config.ProviderOpenAI:
		apiKey := cfg.Reasoning.OpenAI.APIKey
		if apiKey == "" {
			// compatible servers accept any key
			apiKey = "unused"
		}
		log.Info("Using OpenAI reasoning engine",
			"chat_model", cfg.Reasoning.OpenAI.Model,
			"embedding_model", cfg.Reasoning.OpenAI.EmbeddingModel,
			"base_url", cfg.Reasoning.OpenAI.BaseURL)
		return reasoningOpenAI.NewOpenAIAdapter(reasoningOpenAI.Config{
			APIKey:         apiKey,
			ChatModel:      cfg.Reasoning.OpenAI.Model,
			EmbeddingModel: cfg.Reasoning.OpenAI.EmbeddingModel,
			BaseURL:        cfg.Reasoning.OpenAI.BaseURL,
		})

	case config.ProviderAnthropic:
		log.Info("Using Anthropic reasoning engine", "model", cfg.Reasoning.Anthropic.Model)
		return reasoningAnthropic.NewAdapter(reasoningAnthropic.Config{
			APIKey:     cfg.Reasoning.Anthropic.APIKey,
			Model:      cfg.Reasoning.Anthropic.Model,
			MaxRetries: -1,
		})

	case config.ProviderMock:
		mockEngine := reasoningMock.NewMockEngine()
		mockEngine.SetDefaultResponse("I'm a mock assistant. Configure an openai or anthropic provider for real answers.")
		log.Info("Using mock reasoning engine")
		return mockEngine, nil

	default:
		return nil, fmt.Errorf("unsupported reasoning provider: %s", cfg.Reasoning.Provider)
	}
}

func completionOptions(cfg *config.Config) []reasoning.Option {
	switch cfg.Reasoning.Provider {
	case config.ProviderOpenAI:
		return []reasoning.Option{
			reasoning.WithMaxTokens(cfg.Reasoning.OpenAI.MaxTokens),
			reasoning.WithTemperature(cfg.Reasoning.OpenAI.Temperature),
		}
	case config.ProviderAnthropic:
		return []reasoning.Option{reasoning.WithMaxTokens(cfg.Reasoning.Anthropic.MaxTokens)}
	}
	return nil
}

func initEmbedder(cfg *config.Config, engine reasoning.Engine) (embedding.Embedder, error) {
	var base embedding.Embedder
	switch cfg.Embedding.Provider {
	case config.EmbeddingEngine:
		base = embedding.NewEngineEmbedder(engine)
	case config.EmbeddingHash:
		base = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
	if !cfg.Embedding.Cache.Enabled {
		return base, nil
	}
	return embedding.NewCachedEmbedder(base, embedding.CacheConfig{
		NumCounters: cfg.Embedding.Cache.NumCounters,
		MaxCost:     cfg.Embedding.Cache.MaxCost,
	})
}

// initVectorStore initializes the memory backend based on configuration
func initVectorStore(ctx context.Context, cfg *config.Config) (ltm.VectorStore, error) {
	log.Info("Initializing memory store", "backend", cfg.Memory.Backend)

	switch cfg.Memory.Backend {
	case config.BackendMock:
		return ltmMock.NewMockStore(), nil

	case config.BackendBoltDB:
		if err := ensureDir(cfg.Memory.BoltDB.Path); err != nil {
			return nil, err
		}
		return boltdb.Open(ctx, cfg.Memory.BoltDB.Path)

	case config.BackendChromemGo:
		adapter, err := chromem_go.Open(ctx, cfg.Memory.ChromemGo.Path, cfg.Memory.ChromemGo.Collection, cfg.Memory.ChromemGo.Compress)
		if err != nil {
			return nil, err
		}
		log.Info("Using chromem-go memory store",
			"path", cfg.Memory.ChromemGo.Path,
			"collection", cfg.Memory.ChromemGo.Collection)
		return adapter, nil

	case config.BackendPgVector:
		dims := cfg.Memory.PgVector.Dimensions
		if dims == 0 && cfg.Embedding.Provider == config.EmbeddingHash {
			dims = cfg.Embedding.Dimensions
		}
		log.Info("Using PostgreSQL pgvector store",
			"table", cfg.Memory.PgVector.TableName,
			"dimensions", dims)
		return pgvector.NewPgvectorAdapter(ctx, pgvector.PgvectorConfig{
			ConnectionString: cfg.Memory.PgVector.ConnectionString,
			TableName:        cfg.Memory.PgVector.TableName,
			DimensionSize:    dims,
		})

	case config.BackendSQLite:
		if err := ensureDir(cfg.Memory.SQLite.DSN); err != nil {
			return nil, err
		}
		db, err := sqldb.OpenAndMigrate(sqldb.DriverSQLite, cfg.Memory.SQLite.DSN)
		if err != nil {
			return nil, err
		}
		return sqlite.NewSQLiteStore(db), nil

	default:
		return nil, fmt.Errorf("unsupported memory backend: %s", cfg.Memory.Backend)
	}
}

// initConversationStores opens the turn log and the profile store. The
// returned closer is nil for the in-memory driver.
func initConversationStores(cfg *config.Config) (turnlog.Log, profile.Store, io.Closer, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		return turnlog.NewMemoryLog(), profile.NewMemoryStore(), nil, nil
	case config.StoreSQLite, config.StorePostgres:
		if cfg.Store.Driver == config.StoreSQLite {
			if err := ensureDir(cfg.Store.DSN); err != nil {
				return nil, nil, nil, err
			}
		}
		db, err := sqldb.OpenAndMigrate(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("Using SQL turn log and profile store", "driver", cfg.Store.Driver)
		return turnlog.NewSQLLog(db), profile.NewSQLStore(db), db, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initScriptEngine initializes the Lua scripting engine
func initScriptEngine(cfg *config.Config) (*scripting.LuaEngine, error) {
	scriptCfg := scripting.DefaultConfig()
	scriptCfg.ScriptTimeoutMs = cfg.Scripting.TimeoutMs

	scriptEngine, err := scripting.NewLuaEngine(scriptCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Lua engine: %w", err)
	}

	scriptPaths := cfg.Scripting.Paths
	if len(scriptPaths) == 0 {
		scriptPaths = []string{"./scripts"}
	}

	scriptFound := false
	for _, basePath := range scriptPaths {
		if _, err := os.Stat(basePath); os.IsNotExist(err) {
			log.Debug("Scripts directory not found", "path", basePath)
			continue
		}
		if err := scriptEngine.LoadScriptDir(basePath); err != nil {
			log.Warn("Failed to load scripts", "path", basePath, "error", err)
			continue
		}
		log.Info("Loaded scripts", "path", basePath)
		scriptFound = true
	}
	if !scriptFound {
		log.Warn("No scripts were loaded from any path")
	}
	return scriptEngine, nil
}

// ensureDir creates the parent directory of a file path. In-memory sqlite
// DSNs are left alone.
func ensureDir(path string) error {
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
