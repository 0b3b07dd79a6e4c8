package config

// Config represents the top-level configuration for the chatbot.
type Config struct {
	// App identifies the deployment in health output
	App AppConfig `yaml:"app"`

	// Logging configures the logging behavior
	Logging LoggingConfig `yaml:"logging"`

	// Memory configures the long-term memory vector store
	Memory MemoryConfig `yaml:"memory"`

	// Embedding configures the text embedder
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Reasoning configures the completion service (LLM)
	Reasoning ReasoningConfig `yaml:"reasoning"`

	// Store configures the relational store behind the turn log and profiles
	Store StoreConfig `yaml:"store"`

	// Rerank configures memory reranking
	Rerank RerankConfig `yaml:"rerank"`

	// Context configures context assembly
	Context ContextConfig `yaml:"context"`

	// Writer configures the memory write decisions
	Writer WriterConfig `yaml:"writer"`

	// Scripting configures the Lua hook engine
	Scripting ScriptingConfig `yaml:"scripting"`

	// Metrics configures Prometheus metrics
	Metrics MetricsConfig `yaml:"metrics"`
}

// AppConfig names the application.
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level is the logging level ("debug", "info", "warn", "error")
	Level string `yaml:"level"`

	// Format is "text" or "json"
	Format string `yaml:"format"`
}

// MemoryConfig selects and configures the vector store.
type MemoryConfig struct {
	// Backend is one of "mock", "boltdb", "chromemgo", "pgvector", "sqlite"
	Backend string `yaml:"backend"`

	BoltDB    BoltDBConfig    `yaml:"boltdb"`
	ChromemGo ChromemGoConfig `yaml:"chromemgo"`
	PgVector  PgVectorConfig  `yaml:"pgvector"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
}

// BoltDBConfig configures the bbolt store.
type BoltDBConfig struct {
	// Path is the database file
	Path string `yaml:"path"`
}

// ChromemGoConfig configures the chromem-go store.
type ChromemGoConfig struct {
	// Path is the directory holding the index and its catalog
	Path string `yaml:"path"`

	// Collection is the collection name to use
	Collection string `yaml:"collection"`

	// Compress gzips the persisted index
	Compress bool `yaml:"compress"`
}

// PgVectorConfig configures PostgreSQL with the pgvector extension.
type PgVectorConfig struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string `yaml:"connection_string"`

	// TableName is the name of the table to use
	TableName string `yaml:"table_name"`

	// Dimensions pins the vector column size; 0 uses the embedding dimensions
	Dimensions int `yaml:"dimensions"`
}

// SQLiteConfig configures the sqlite memory store.
type SQLiteConfig struct {
	DSN string `yaml:"dsn"`
}

// EmbeddingConfig configures the embedder.
type EmbeddingConfig struct {
	// Provider is "engine" (the reasoning provider's embeddings) or "hash"
	Provider string `yaml:"provider"`

	// Dimensions is the vector size of the hash embedder
	Dimensions int `yaml:"dimensions"`

	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig configures the ristretto embedding cache.
type CacheConfig struct {
	Enabled     bool  `yaml:"enabled"`
	NumCounters int64 `yaml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost"`
}

// ReasoningConfig configures the reasoning engine (LLM).
type ReasoningConfig struct {
	// Provider is the LLM provider ("openai", "anthropic", "mock")
	Provider string `yaml:"provider"`

	// OpenAI configures OpenAI integration
	OpenAI OpenAIConfig `yaml:"openai"`

	// Anthropic configures Anthropic integration
	Anthropic AnthropicConfig `yaml:"anthropic"`
}

// OpenAIConfig configures OpenAI or any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key
	APIKey string `yaml:"api_key"`

	// BaseURL points at a compatible server such as Ollama; empty means api.openai.com
	BaseURL string `yaml:"base_url"`

	// Model is the model to use for chat completions
	Model string `yaml:"model"`

	// EmbeddingModel is the model to use for generating embeddings
	EmbeddingModel string `yaml:"embedding_model"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls randomness in generation (0.0-1.0)
	Temperature float64 `yaml:"temperature"`
}

// AnthropicConfig configures Anthropic integration.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key
	APIKey string `yaml:"api_key"`

	// Model is the Anthropic model to use
	Model string `yaml:"model"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `yaml:"max_tokens"`
}

// StoreConfig configures the turn log and profile database.
type StoreConfig struct {
	// Driver is "sqlite3" or "postgres"
	Driver string `yaml:"driver"`

	// DSN is the data source name (connection string)
	DSN string `yaml:"dsn"`
}

// RerankConfig configures the reranker.
type RerankConfig struct {
	// HalfLife is the recency half-life as a Go duration, e.g. "720h"
	HalfLife string `yaml:"half_life"`
}

// ContextConfig configures context assembly.
type ContextConfig struct {
	// MaxBudget is the approximate token budget of the assembled context
	MaxBudget int `yaml:"max_budget"`

	// RecentTurns is how many recent turns are included
	RecentTurns int `yaml:"recent_turns"`

	// DedupeThreshold is the cosine similarity at which items count as duplicates
	DedupeThreshold float64 `yaml:"dedupe_threshold"`

	// SearchK is how many memories are retrieved per turn
	SearchK int `yaml:"search_k"`
}

// WriterConfig configures memory write decisions.
type WriterConfig struct {
	// WordThreshold is the word count above which messages are summarized
	WordThreshold int `yaml:"word_threshold"`

	// SummaryMaxTokens bounds the summary length
	SummaryMaxTokens int `yaml:"summary_max_tokens"`

	// ExtractProfile enables profile extraction from user messages
	ExtractProfile bool `yaml:"extract_profile"`
}

// ScriptingConfig configures the Lua scripting engine.
type ScriptingConfig struct {
	// Enabled turns on the Lua hooks
	Enabled bool `yaml:"enabled"`

	// Paths is a list of directories containing Lua scripts
	Paths []string `yaml:"paths"`

	// TimeoutMs bounds a single hook call
	TimeoutMs int `yaml:"timeout_ms"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}
