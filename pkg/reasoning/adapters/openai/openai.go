package openai

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/reasoning"
)

var (
	// ErrEmptyAPIKey is returned when the API key is missing.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrNoChoices is returned when the API answers without any choice.
	ErrNoChoices = errors.New("no response choices returned")
)

// Config holds the configuration for the OpenAI adapter.
type Config struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// EmbeddingModel is the model to use for embeddings, e.g., "text-embedding-3-small".
	EmbeddingModel string
	// ChatModel is the model to use for chat completions, e.g., "gpt-4o-mini".
	ChatModel string
	// BaseURL overrides the API endpoint. Any OpenAI-compatible server works.
	BaseURL string
}

// OpenAIAdapter implements the reasoning.Engine interface using the OpenAI API.
type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel string
	chatModel      string
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(config Config) (*OpenAIAdapter, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "text-embedding-3-small"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gpt-4o-mini"
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIAdapter{
		client:         openai.NewClientWithConfig(clientConfig),
		embeddingModel: config.EmbeddingModel,
		chatModel:      config.ChatModel,
	}, nil
}

// GenerateEmbeddings generates embeddings for the given texts using the OpenAI API.
func (a *OpenAIAdapter) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	log.DebugContext(ctx, "Generating embeddings", "count", len(texts), "model", a.embeddingModel)

	response, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(a.embeddingModel),
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to generate embeddings", "error", err)
		return nil, err
	}

	embeddings := make([][]float32, len(response.Data))
	for i, data := range response.Data {
		embeddings[i] = data.Embedding
	}
	return embeddings, nil
}

func (a *OpenAIAdapter) request(prompt string, opts []reasoning.Option) openai.ChatCompletionRequest {
	options := reasoning.ApplyOptions(opts...)

	model := a.chatModel
	if options.Model != "" {
		model = options.Model
	}

	var messages []openai.ChatCompletionMessage
	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
	}
}

// Process sends prompt as a single user message and returns the trimmed reply.
func (a *OpenAIAdapter) Process(ctx context.Context, prompt string, opts ...reasoning.Option) (string, error) {
	req := a.request(prompt, opts)
	log.DebugContext(ctx, "Processing chat request", "model", req.Model, "messages", len(req.Messages))

	response, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.ErrorContext(ctx, "Failed to generate chat completion", "error", err)
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", ErrNoChoices
	}

	log.DebugContext(ctx, "Generated response", "tokens", response.Usage.TotalTokens, "model", req.Model)
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// Stream starts a streamed completion. Errors opening the stream are returned
// directly; later failures arrive as the terminal chunk.
func (a *OpenAIAdapter) Stream(ctx context.Context, prompt string, opts ...reasoning.Option) (<-chan reasoning.Chunk, error) {
	req := a.request(prompt, opts)
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		log.ErrorContext(ctx, "Failed to open completion stream", "error", err)
		return nil, err
	}

	w, ch := reasoning.NewStream(ctx)
	go func() {
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				w.Finish(nil)
				return
			}
			if err != nil {
				w.Finish(err)
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !w.Send(resp.Choices[0].Delta.Content) {
				w.Finish(ctx.Err())
				return
			}
		}
	}()
	return ch, nil
}
