package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/devxilz/mcp-chatbot/pkg/reasoning"
)

// ErrEmptyEmbedding is returned when a backend yields no vector for the input
var ErrEmptyEmbedding = errors.New("embedder returned no vector")

// Embedder turns text into a fixed-length vector. Implementations must be
// deterministic for identical input and model, and safe for concurrent use.
type Embedder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// EngineEmbedder adapts a reasoning engine's embedding endpoint to Embedder.
type EngineEmbedder struct {
	engine reasoning.Engine
}

// NewEngineEmbedder creates an Embedder backed by engine.GenerateEmbeddings.
func NewEngineEmbedder(engine reasoning.Engine) *EngineEmbedder {
	return &EngineEmbedder{engine: engine}
}

// Encode implements Embedder.
func (e *EngineEmbedder) Encode(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.engine.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return vectors[0], nil
}
