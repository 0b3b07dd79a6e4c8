package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/devxilz/mcp-chatbot/pkg/errors"
	"github.com/devxilz/mcp-chatbot/pkg/log"
)

const summarizePrompt = "Summarize the following text in a short, clear way.\nText: %s\nSummary:"

const classifyPrompt = `Classify the following user message for a personal memory store.
Allowed types: personal_info, preference, goal, task, fact, irrelevant.
Importance is a number between 0 and 1.
Return ONLY JSON like {"type": "goal", "importance": 0.7}.

Message: %s`

const strictClassifyPrompt = `Your previous answer was not valid JSON.
Respond with exactly one JSON object and nothing else: no prose, no code fences.
The object must have a string field "type" (one of personal_info, preference, goal, task, fact, irrelevant)
and a number field "importance" between 0 and 1.

Message: %s`

// Service is the completion service used by the conversation pipeline.
// It owns prompt construction on top of an Engine.
type Service struct {
	engine Engine
	opts   []Option
}

// NewService creates a Service. opts apply to every request.
func NewService(engine Engine, opts ...Option) *Service {
	return &Service{engine: engine, opts: opts}
}

// Engine returns the underlying engine.
func (s *Service) Engine() Engine {
	return s.engine
}

// BuildPrompt joins the context items, one per line, and appends the user question.
func BuildPrompt(contextItems []string, query string) string {
	var sb strings.Builder
	for i, item := range contextItems {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(item)
	}
	sb.WriteString("\nUser question: ")
	sb.WriteString(query)
	return sb.String()
}

// Generate returns the complete reply for the given context and query.
func (s *Service) Generate(ctx context.Context, contextItems []string, query string) (string, error) {
	reply, err := s.engine.Process(ctx, BuildPrompt(contextItems, query), s.opts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate reply: %w", err)
	}
	return reply, nil
}

// Stream yields the reply for the given context and query as chunks.
func (s *Service) Stream(ctx context.Context, contextItems []string, query string) (<-chan Chunk, error) {
	ch, err := s.engine.Stream(ctx, BuildPrompt(contextItems, query), s.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start stream: %w", err)
	}
	return ch, nil
}

// Summarize returns a short summary of text bounded by maxTokens.
// An empty answer is reported as ErrSummarization.
func (s *Service) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	opts := append(append([]Option{}, s.opts...), WithMaxTokens(maxTokens), WithTemperature(0.2))
	summary, err := s.engine.Process(ctx, fmt.Sprintf(summarizePrompt, text), opts...)
	if err != nil {
		return "", errors.Wrap(errors.ErrSummarization, "summarizer call failed: %v", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", errors.Wrap(errors.ErrSummarization, "summarizer returned an empty answer")
	}
	log.DebugContext(ctx, "Summarized text", "input_length", len(text), "summary_length", len(summary))
	return summary, nil
}

// Classify asks the model to label text. The answer is raw, untrusted text.
// strict selects the stricter JSON-only retry prompt.
func (s *Service) Classify(ctx context.Context, text string, strict bool) (string, error) {
	prompt := classifyPrompt
	if strict {
		prompt = strictClassifyPrompt
	}
	opts := append(append([]Option{}, s.opts...), WithTemperature(0), WithMaxTokens(60))
	raw, err := s.engine.Process(ctx, fmt.Sprintf(prompt, text), opts...)
	if err != nil {
		return "", errors.Wrap(errors.ErrClassification, "classifier call failed: %v", err)
	}
	return raw, nil
}
