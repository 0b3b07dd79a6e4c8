// Package anthropic adapts the Anthropic Messages API to reasoning.Engine.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/reasoning"
)

var (
	// ErrEmptyAPIKey is returned when the API key is missing.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrEmbeddingsUnsupported is returned by GenerateEmbeddings. The Messages
	// API has no embedding endpoint; pair this engine with another embedder.
	ErrEmbeddingsUnsupported = errors.New("anthropic adapter does not generate embeddings")
)

// Config holds the configuration for the Anthropic adapter.
type Config struct {
	APIKey string
	// Model defaults to claude-3-5-haiku-latest
	Model string
	// BaseURL overrides the API endpoint (for testing).
	BaseURL string
	// MaxRetries is passed to the SDK client. Negative means the SDK default.
	MaxRetries int
}

// Adapter implements reasoning.Engine on top of the Anthropic SDK.
type Adapter struct {
	client anthropic.Client
	model  string
}

// NewAdapter creates a new Anthropic adapter.
func NewAdapter(config Config) (*Adapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-latest"
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(config.MaxRetries))
	}

	return &Adapter{
		client: anthropic.NewClient(opts...),
		model:  config.Model,
	}, nil
}

func (a *Adapter) params(prompt string, opts []reasoning.Option) anthropic.MessageNewParams {
	options := reasoning.ApplyOptions(opts...)

	model := a.model
	if options.Model != "" {
		model = options.Model
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(options.MaxTokens),
		Temperature: anthropic.Float(options.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if options.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: options.System}}
	}
	return params
}

// Process sends prompt as a single user message and returns the joined text blocks.
func (a *Adapter) Process(ctx context.Context, prompt string, opts ...reasoning.Option) (string, error) {
	params := a.params(prompt, opts)
	log.DebugContext(ctx, "Processing messages request", "model", params.Model)

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create message", "error", err)
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	log.DebugContext(ctx, "Generated response",
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	return strings.TrimSpace(sb.String()), nil
}

// Stream yields text deltas of a streamed message.
func (a *Adapter) Stream(ctx context.Context, prompt string, opts ...reasoning.Option) (<-chan reasoning.Chunk, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.params(prompt, opts))

	w, ch := reasoning.NewStream(ctx)
	go func() {
		defer stream.Close()
		for stream.Next() {
			evt, ok := stream.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			delta, ok := evt.Delta.AsAny().(anthropic.TextDelta)
			if !ok || delta.Text == "" {
				continue
			}
			if !w.Send(delta.Text) {
				w.Finish(ctx.Err())
				return
			}
		}
		w.Finish(stream.Err())
	}()
	return ch, nil
}

// GenerateEmbeddings always fails with ErrEmbeddingsUnsupported.
func (a *Adapter) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, ErrEmbeddingsUnsupported
}
