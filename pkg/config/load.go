package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend and provider names
const (
	BackendMock      = "mock"
	BackendBoltDB    = "boltdb"
	BackendChromemGo = "chromemgo"
	BackendPgVector  = "pgvector"
	BackendSQLite    = "sqlite"

	ProviderMock      = "mock"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	EmbeddingEngine = "engine"
	EmbeddingHash   = "hash"

	StoreMemory   = "memory"
	StoreSQLite   = "sqlite3"
	StorePostgres = "postgres"
)

// Default returns a configuration that runs fully in process: mock memory
// backend, mock reasoning, hash embeddings and in-memory turn log and profiles.
func Default() *Config {
	cfg := &Config{}
	cfg.Memory.Backend = BackendMock
	cfg.Reasoning.Provider = ProviderMock
	cfg.Embedding.Provider = EmbeddingHash
	cfg.Store.Driver = StoreMemory
	if err := validateConfig(cfg); err != nil {
		// the zero-valued tree with the fields above always validates
		panic(err)
	}
	return cfg
}

// LoadDotEnv loads environment variables from the given .env files, or from
// ./.env when none are given. Missing files are ignored and variables already
// set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads path, or starts from Default when path is empty, then applies
// environment overrides and validation. A .env file in the working directory
// is loaded first.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	if path == "" {
		cfg := Default()
		applyEnvironmentOverrides(cfg)
		if err := validateConfig(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return LoadFromFile(path)
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from a byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	var config Config

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvironmentOverrides(&config)

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func applyEnvironmentOverrides(config *Config) {
	if v := os.Getenv("CHATBOT_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("CHATBOT_MEMORY_BACKEND"); v != "" {
		config.Memory.Backend = v
	}
	if v := os.Getenv("CHATBOT_REASONING_PROVIDER"); v != "" {
		config.Reasoning.Provider = v
	}
	if v := os.Getenv("CHATBOT_EMBEDDING_PROVIDER"); v != "" {
		config.Embedding.Provider = v
	}

	// PgVector connection string override
	if connStr := os.Getenv("PGVECTOR_URL"); connStr != "" {
		config.Memory.PgVector.ConnectionString = connStr
	}

	// DATABASE_URL moves the turn log and profiles to postgres
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Store.Driver = StorePostgres
		config.Store.DSN = dsn
	}
	if v := os.Getenv("CHATBOT_STORE_DRIVER"); v != "" {
		config.Store.Driver = v
	}
	if v := os.Getenv("CHATBOT_STORE_DSN"); v != "" {
		config.Store.DSN = v
	}

	// OpenAI API key override
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Reasoning.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.Reasoning.OpenAI.BaseURL = baseURL
	}

	// Anthropic API key override
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Reasoning.Anthropic.APIKey = apiKey
	}
}

// validateConfig validates the configuration and applies defaults.
func validateConfig(config *Config) error {
	if config.App.Name == "" {
		config.App.Name = "mcp-chatbot"
	}
	if config.App.Version == "" {
		config.App.Version = "0.1.0"
	}

	if err := validateLogging(&config.Logging); err != nil {
		return err
	}
	if err := validateMemory(&config.Memory); err != nil {
		return err
	}
	if err := validateReasoning(&config.Reasoning); err != nil {
		return err
	}
	if err := validateEmbedding(&config.Embedding, config.Reasoning.Provider); err != nil {
		return err
	}
	if err := validateStore(&config.Store); err != nil {
		return err
	}

	// Reranker
	if config.Rerank.HalfLife == "" {
		config.Rerank.HalfLife = "720h"
	}
	if d, err := time.ParseDuration(config.Rerank.HalfLife); err != nil || d <= 0 {
		return fmt.Errorf("invalid rerank half_life: %q", config.Rerank.HalfLife)
	}

	// Context assembly
	if config.Context.MaxBudget <= 0 {
		config.Context.MaxBudget = 1000
	}
	if config.Context.RecentTurns <= 0 {
		config.Context.RecentTurns = 5
	}
	if config.Context.DedupeThreshold == 0 {
		config.Context.DedupeThreshold = 0.88
	}
	if config.Context.DedupeThreshold < 0 || config.Context.DedupeThreshold > 1 {
		return fmt.Errorf("dedupe_threshold must be in (0,1]: %v", config.Context.DedupeThreshold)
	}
	if config.Context.SearchK <= 0 {
		config.Context.SearchK = 20
	}

	// Writer
	if config.Writer.WordThreshold <= 0 {
		config.Writer.WordThreshold = 30
	}
	if config.Writer.SummaryMaxTokens <= 0 {
		config.Writer.SummaryMaxTokens = 40
	}

	// Scripting
	if config.Scripting.TimeoutMs <= 0 {
		config.Scripting.TimeoutMs = 1000
	}

	return nil
}

func validateLogging(c *LoggingConfig) error {
	if c.Level == "" {
		c.Level = "info"
	}
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.Level)
	}
	if c.Format == "" {
		c.Format = "text"
	}
	switch strings.ToLower(c.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.Format)
	}
	return nil
}

func validateMemory(c *MemoryConfig) error {
	c.Backend = strings.ToLower(c.Backend)
	switch c.Backend {
	case "":
		return fmt.Errorf("memory backend is required")
	case BackendMock:
		// Mock store doesn't require additional validation
	case BackendBoltDB:
		if c.BoltDB.Path == "" {
			c.BoltDB.Path = "data/memories.db"
		}
	case BackendChromemGo:
		if c.ChromemGo.Path == "" {
			c.ChromemGo.Path = "data/chromem"
		}
		if c.ChromemGo.Collection == "" {
			c.ChromemGo.Collection = "memories"
		}
	case BackendPgVector:
		if c.PgVector.ConnectionString == "" {
			return fmt.Errorf("connection string is required for pgvector memory backend")
		}
		if c.PgVector.TableName == "" {
			c.PgVector.TableName = "memories"
		}
		if c.PgVector.Dimensions < 0 {
			return fmt.Errorf("pgvector dimensions must not be negative")
		}
	case BackendSQLite:
		if c.SQLite.DSN == "" {
			c.SQLite.DSN = "data/memories.sqlite"
		}
	default:
		return fmt.Errorf("unsupported memory backend: %s", c.Backend)
	}
	return nil
}

func validateReasoning(c *ReasoningConfig) error {
	c.Provider = strings.ToLower(c.Provider)
	switch c.Provider {
	case ProviderMock:
	case ProviderOpenAI:
		// an API key is optional against a compatible server such as Ollama
		if c.OpenAI.APIKey == "" && c.OpenAI.BaseURL == "" {
			return fmt.Errorf("OpenAI API key is required for openai provider without base_url")
		}
		if c.OpenAI.Model == "" {
			c.OpenAI.Model = "gpt-4o-mini"
		}
		if c.OpenAI.EmbeddingModel == "" {
			c.OpenAI.EmbeddingModel = "text-embedding-3-small"
		}
		if c.OpenAI.MaxTokens <= 0 {
			c.OpenAI.MaxTokens = 512
		}
		if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
			return fmt.Errorf("openai temperature must be in [0,2]: %v", c.OpenAI.Temperature)
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("Anthropic API key is required for anthropic provider")
		}
		if c.Anthropic.Model == "" {
			c.Anthropic.Model = "claude-3-5-haiku-latest"
		}
		if c.Anthropic.MaxTokens <= 0 {
			c.Anthropic.MaxTokens = 512
		}
	case "":
		return fmt.Errorf("reasoning provider is required")
	default:
		return fmt.Errorf("unsupported reasoning provider: %s", c.Provider)
	}
	return nil
}

func validateEmbedding(c *EmbeddingConfig, reasoningProvider string) error {
	c.Provider = strings.ToLower(c.Provider)
	switch c.Provider {
	case "":
		c.Provider = EmbeddingHash
	case EmbeddingHash:
	case EmbeddingEngine:
		if reasoningProvider == ProviderAnthropic {
			return fmt.Errorf("anthropic provider has no embeddings endpoint; use the hash embedder")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Provider)
	}
	if c.Dimensions <= 0 {
		c.Dimensions = 384
	}
	if c.Cache.NumCounters <= 0 {
		c.Cache.NumCounters = 100_000
	}
	if c.Cache.MaxCost <= 0 {
		c.Cache.MaxCost = 64 << 20
	}
	return nil
}

func validateStore(c *StoreConfig) error {
	c.Driver = strings.ToLower(c.Driver)
	switch c.Driver {
	case "":
		c.Driver = StoreMemory
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.DSN == "" {
			return fmt.Errorf("store dsn is required for driver %s", c.Driver)
		}
	default:
		return fmt.Errorf("unsupported store driver: %s", c.Driver)
	}
	return nil
}

// HalfLifeDuration returns the parsed half-life. Call after validation.
func (c RerankConfig) HalfLifeDuration() time.Duration {
	d, err := time.ParseDuration(c.HalfLife)
	if err != nil {
		return 0
	}
	return d
}
