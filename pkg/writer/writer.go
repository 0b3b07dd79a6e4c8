// Package writer decides, per incoming message, whether and how it becomes a
// long-term memory, and persists the decision.
package writer

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
	"github.com/devxilz/mcp-chatbot/pkg/metrics"
)

// Action is the outcome of a write decision.
type Action string

// Actions
const (
	ActionIgnore        Action = "ignore"
	ActionStore         Action = "store"
	ActionCompressStore Action = "compress_store"
)

// Decision reasons
const (
	ReasonNonUser     = "non-user message"
	ReasonNoise       = "noise"
	ReasonIrrelevant  = "classified irrelevant"
	ReasonSummarized  = "long message summarized"
	ReasonTruncated   = "long message truncated"
	ReasonInformative = "informative message"
)

// Defaults
const (
	DefaultWordThreshold        = 30
	DefaultSummaryMaxTokens     = 40
	DefaultSummaryFallbackWords = 20
)

// DefaultStopWords are acknowledgements and greetings never worth storing.
var DefaultStopWords = []string{
	"ok", "k", "kk", "lol", "yes", "no", "hmm", "thanks",
	"thank you", "hi", "hello", "hey", "yo",
}

// Decision is the per-message write decision. It is consumed by the same turn.
type Decision struct {
	Action     Action
	Reason     string
	MemoryType ltm.MemoryType
	Importance float64

	// Summary replaces the message text for compress_store
	Summary string

	// MemoryID is set by Process once the memory is persisted
	MemoryID string
}

// Classifier labels a message. The answer is untrusted text expected to hold
// a {"type", "importance"} object. strict asks for a JSON-only answer.
type Classifier interface {
	Classify(ctx context.Context, text string, strict bool) (string, error)
}

// Summarizer shortens long messages.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxTokens int) (string, error)
}

// MemoryAdder persists a memory. *mmu.MemoryStore implements it.
type MemoryAdder interface {
	Add(ctx context.Context, userID, sessionID, text string, memType ltm.MemoryType, meta map[string]string) (string, error)
}

// Config tunes the decision heuristics. Zero fields take their defaults.
type Config struct {
	WordThreshold        int
	SummaryMaxTokens     int
	SummaryFallbackWords int
	StopWords            []string
}

// Engine is the write decision engine.
type Engine struct {
	classifier Classifier
	summarizer Summarizer
	adder      MemoryAdder
	metrics    *metrics.Metrics

	wordThreshold int
	summaryTokens int
	fallbackWords int
	stopWords     map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics counts decisions and classifier fallbacks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine.
func New(classifier Classifier, summarizer Summarizer, adder MemoryAdder, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		classifier:    classifier,
		summarizer:    summarizer,
		adder:         adder,
		wordThreshold: cfg.WordThreshold,
		summaryTokens: cfg.SummaryMaxTokens,
		fallbackWords: cfg.SummaryFallbackWords,
	}
	if e.wordThreshold <= 0 {
		e.wordThreshold = DefaultWordThreshold
	}
	if e.summaryTokens <= 0 {
		e.summaryTokens = DefaultSummaryMaxTokens
	}
	if e.fallbackWords <= 0 {
		e.fallbackWords = DefaultSummaryFallbackWords
	}
	stop := cfg.StopWords
	if stop == nil {
		stop = DefaultStopWords
	}
	e.stopWords = make(map[string]bool, len(stop))
	for _, w := range stop {
		e.stopWords[strings.ToLower(strings.TrimSpace(w))] = true
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide runs the decision steps for one message. It never fails:
// classifier and summarizer problems resolve to their fallbacks.
func (e *Engine) Decide(ctx context.Context, role, text string) Decision {
	d := e.decide(ctx, role, text)
	e.metrics.RecordDecision(string(d.Action))
	log.DebugContext(ctx, "Write decision",
		"action", d.Action,
		"reason", d.Reason,
		"memory_type", d.MemoryType,
		"importance", d.Importance,
	)
	return d
}

func (e *Engine) decide(ctx context.Context, role, text string) Decision {
	if !strings.EqualFold(strings.TrimSpace(role), "user") {
		return Decision{Action: ActionIgnore, Reason: ReasonNonUser}
	}
	if e.IsNoise(text) {
		return Decision{Action: ActionIgnore, Reason: ReasonNoise}
	}

	class := e.classify(ctx, text)
	if class.Type == TypeIrrelevant {
		return Decision{Action: ActionIgnore, Reason: ReasonIrrelevant}
	}
	memType := ltm.ParseMemoryType(class.Type)
	importance := ltm.ClampImportance(class.Importance)

	if len(strings.Fields(text)) > e.wordThreshold {
		summary, reason := e.summarize(ctx, text)
		return Decision{
			Action:     ActionCompressStore,
			Reason:     reason,
			MemoryType: memType,
			Importance: importance,
			Summary:    summary,
		}
	}

	return Decision{
		Action:     ActionStore,
		Reason:     ReasonInformative,
		MemoryType: memType,
		Importance: importance,
	}
}

// IsNoise reports single-word messages and exact stop-set matches.
// Case and surrounding punctuation are ignored.
func (e *Engine) IsNoise(text string) bool {
	clean := strings.ToLower(strings.TrimSpace(text))
	clean = strings.TrimFunc(clean, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	if len(strings.Fields(clean)) <= 1 {
		return true
	}
	return e.stopWords[strings.Join(strings.Fields(clean), " ")]
}

// classify asks the classifier, retries once with the strict prompt and
// falls back to the default classification.
func (e *Engine) classify(ctx context.Context, text string) Classification {
	for _, strict := range []bool{false, true} {
		raw, err := e.classifier.Classify(ctx, text, strict)
		if err != nil {
			log.WarnContext(ctx, "Classifier call failed", "strict", strict, "error", err)
			continue
		}
		result := ParseClassification(raw)
		c, ok := result.Classification()
		if !ok {
			log.WarnContext(ctx, "Classifier answer malformed", "strict", strict, "raw", truncate(raw, 80))
			continue
		}
		if result.Extracted {
			e.metrics.RecordClassifierFallback("substring")
		}
		if strict {
			e.metrics.RecordClassifierFallback("retry")
		}
		return c
	}
	e.metrics.RecordClassifierFallback("default")
	log.WarnContext(ctx, "Using default classification")
	return DefaultClassification()
}

// summarize returns the summary to persist. Failures, empty answers and
// answers identical to the input fall back to a truncated prefix.
func (e *Engine) summarize(ctx context.Context, text string) (string, string) {
	summary, err := e.summarizer.Summarize(ctx, text, e.summaryTokens)
	summary = strings.TrimSpace(summary)
	switch {
	case err != nil:
		log.WarnContext(ctx, "Summarizer failed, truncating", "error", err)
	case summary == "" || summary == strings.TrimSpace(text):
		log.WarnContext(ctx, "Summarizer returned nothing usable, truncating")
	default:
		return summary, ReasonSummarized
	}
	return TruncateWords(text, e.fallbackWords), ReasonTruncated
}

// Execute persists a decision. ignore writes nothing; store writes text and
// compress_store writes the summary. Persistence failures are logged and
// swallowed; the returned id is empty when nothing was written.
func (e *Engine) Execute(ctx context.Context, userID, sessionID, text string, d Decision) string {
	var content string
	switch d.Action {
	case ActionStore:
		content = text
	case ActionCompressStore:
		content = d.Summary
	default:
		return ""
	}

	meta := map[string]string{
		ltm.KeyImportance: strconv.FormatFloat(d.Importance, 'f', -1, 64),
	}
	id, err := e.adder.Add(ctx, userID, sessionID, content, d.MemoryType, meta)
	if err != nil {
		log.WarnContext(ctx, "Failed to persist memory",
			"user_id", userID,
			"action", d.Action,
			"error", err)
		return ""
	}
	return id
}

// Process is Decide followed by Execute.
func (e *Engine) Process(ctx context.Context, userID, sessionID, role, text string) Decision {
	d := e.Decide(ctx, role, text)
	d.MemoryID = e.Execute(ctx, userID, sessionID, text, d)
	return d
}

// TruncateWords keeps the first n words of text and appends "..." when words
// were dropped.
func TruncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + "..."
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
