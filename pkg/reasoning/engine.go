package reasoning

import (
	"context"
)

// Option is a function that configures a reasoning process.
type Option func(*Options)

// Options holds configuration for a reasoning request.
type Options struct {
	// Temperature controls randomness in generation (0.0-1.0)
	Temperature float64

	// MaxTokens limits the length of the generated response
	MaxTokens int

	// Model specifies which model variant to use
	Model string

	// System is an optional system instruction sent ahead of the prompt
	System string
}

// DefaultOptions returns default reasoning options.
func DefaultOptions() Options {
	return Options{
		Temperature: 0.7,
		MaxTokens:   1024,
		Model:       "", // Empty means use the adapter's default
	}
}

// WithTemperature sets the temperature option.
func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

// WithMaxTokens sets the max tokens option.
func WithMaxTokens(tokens int) Option {
	return func(o *Options) {
		o.MaxTokens = tokens
	}
}

// WithModel sets the model option.
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithSystem sets the system instruction option.
func WithSystem(system string) Option {
	return func(o *Options) {
		o.System = system
	}
}

// ApplyOptions folds opts over DefaultOptions.
func ApplyOptions(opts ...Option) Options {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Engine is the interface for reasoning engines (LLMs).
type Engine interface {
	// Process sends a prompt to the reasoning engine and returns the result.
	Process(ctx context.Context, prompt string, opts ...Option) (string, error)

	// Stream sends a prompt and yields the reply incrementally. The channel
	// carries exactly one terminal chunk (Done or Err) and is then closed.
	Stream(ctx context.Context, prompt string, opts ...Option) (<-chan Chunk, error)

	// GenerateEmbeddings creates vector embeddings for the provided texts.
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}
