package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/devxilz/mcp-chatbot/pkg/log"
)

// CacheConfig sizes the embedding cache.
type CacheConfig struct {
	// NumCounters is the number of keys tracked for admission, about 10x the expected entries
	NumCounters int64
	// MaxCost is the cache budget in bytes of vector data
	MaxCost int64
}

// DefaultCacheConfig returns a cache sized for roughly 10k 1536-dim vectors.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		NumCounters: 100_000,
		MaxCost:     64 << 20,
	}
}

// CachedEmbedder memoizes another Embedder by exact input text.
type CachedEmbedder struct {
	next  Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps next with a ristretto cache.
func NewCachedEmbedder(next Embedder, cfg CacheConfig) (*CachedEmbedder, error) {
	def := DefaultCacheConfig()
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = def.NumCounters
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = def.MaxCost
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &CachedEmbedder{next: next, cache: cache}, nil
}

// Encode implements Embedder. Returned slices are copies and safe to modify.
func (c *CachedEmbedder) Encode(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			log.DebugContext(ctx, "Embedding cache hit", "text_length", len(text))
			return clone(vec), nil
		}
	}

	vec, err := c.next.Encode(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(text, clone(vec), int64(len(vec)*4))
	return vec, nil
}

// Wait blocks until pending cache writes are applied.
func (c *CachedEmbedder) Wait() {
	c.cache.Wait()
}

// Close stops the cache's background goroutines.
func (c *CachedEmbedder) Close() {
	c.cache.Close()
}

func clone(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
