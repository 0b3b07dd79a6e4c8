// Package chatbot is the conversational facade. A turn logs the user message,
// lets the write decision engine persist it as a memory, retrieves and ranks
// related memories, assembles the context and asks the completion service
// for the reply.
package chatbot

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/devxilz/mcp-chatbot/pkg/contextbuilder"
	"github.com/devxilz/mcp-chatbot/pkg/errors"
	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
	"github.com/devxilz/mcp-chatbot/pkg/metrics"
	"github.com/devxilz/mcp-chatbot/pkg/mmu"
	"github.com/devxilz/mcp-chatbot/pkg/profile"
	"github.com/devxilz/mcp-chatbot/pkg/reasoning"
	"github.com/devxilz/mcp-chatbot/pkg/rerank"
	"github.com/devxilz/mcp-chatbot/pkg/session"
	"github.com/devxilz/mcp-chatbot/pkg/turnlog"
	"github.com/devxilz/mcp-chatbot/pkg/writer"
)

// MaxRecallLimit caps Recall.
const MaxRecallLimit = 100

// Storage operation names for the turn log and profile store
const (
	OpTurnAppend   = "turnlog.append"
	OpTurnLoad     = "turnlog.load"
	OpProfileLoad  = "profile.load"
	OpProfileSave  = "profile.save"
	OpProfileClear = "profile.delete"
)

// Failure messages returned by FailureReply
const (
	StorageFailureText = "Sorry, I could not reach my memory right now, so I could not answer. Please try again."
	GenericFailureText = "Sorry, something went wrong while generating a reply. Please try again."
)

// Config tunes a Service. Zero fields take the component defaults.
type Config struct {
	AppName string
	Version string

	// SearchK is how many memories are retrieved per turn
	SearchK int
	// MaxBudget is the approximate token budget of the assembled context
	MaxBudget int
	// RecentTurns is how many logged turns enter the context
	RecentTurns int
	// DedupeThreshold is the cosine similarity at which context items collapse
	DedupeThreshold float64

	// HalfLife is the recency half-life used by the reranker
	HalfLife time.Duration

	Writer writer.Config

	// ExtractProfile runs the profile extractor on every user message
	ExtractProfile bool
}

// DefaultConfig returns the default facade configuration.
func DefaultConfig() Config {
	return Config{
		AppName:         "mcp-chatbot",
		Version:         "0.1.0",
		SearchK:         20,
		MaxBudget:       1000,
		RecentTurns:     contextbuilder.DefaultRecentTurns,
		DedupeThreshold: contextbuilder.DefaultDedupeThreshold,
		HalfLife:        rerank.DefaultHalfLife,
	}
}

// Reply is the result of a completed turn.
type Reply struct {
	Text string `json:"text"`

	// Decision is what the write decision engine did with the user message
	Decision writer.Decision `json:"decision"`

	// Context is the assembled context the reply was generated from
	Context []contextbuilder.Item `json:"context,omitempty"`

	// Failed marks a FailureReply
	Failed bool `json:"failed,omitempty"`
}

// FailureReply turns a turn error into the explicit failure reply shown to
// the user. Storage failures get their own message.
func FailureReply(err error) Reply {
	text := GenericFailureText
	if errors.IsStorageError(err) {
		text = StorageFailureText
	}
	return Reply{Text: text, Failed: true}
}

// HealthStatus is reported by Health.
type HealthStatus struct {
	Status  string `json:"status"`
	App     string `json:"app"`
	Version string `json:"version"`
}

// Service orchestrates conversational turns.
type Service struct {
	memories   *mmu.MemoryStore
	completion *reasoning.Service
	turns      turnlog.Log
	profiles   profile.Store

	writer    *writer.Engine
	reranker  *rerank.Reranker
	assembler *contextbuilder.Assembler
	extractor *profile.Extractor

	cfg     Config
	metrics *metrics.Metrics
	now     func() time.Time
	closers []io.Closer
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records write decisions and classifier fallbacks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithProfileExtractor overrides the extractor used when Config.ExtractProfile is set.
func WithProfileExtractor(e *profile.Extractor) Option {
	return func(s *Service) {
		s.extractor = e
	}
}

// WithClock overrides the reranker's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithCloser registers a resource released by Close.
func WithCloser(c io.Closer) Option {
	return func(s *Service) {
		if c != nil {
			s.closers = append(s.closers, c)
		}
	}
}

// New creates a Service over already constructed collaborators. The
// completion service doubles as classifier and summarizer.
func New(memories *mmu.MemoryStore, completion *reasoning.Service, turns turnlog.Log, profiles profile.Store, cfg Config, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.AppName == "" {
		cfg.AppName = def.AppName
	}
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.SearchK <= 0 {
		cfg.SearchK = def.SearchK
	}
	if cfg.RecentTurns <= 0 {
		cfg.RecentTurns = def.RecentTurns
	}
	if cfg.DedupeThreshold <= 0 {
		cfg.DedupeThreshold = def.DedupeThreshold
	}

	s := &Service{
		memories:   memories,
		completion: completion,
		turns:      turns,
		profiles:   profiles,
		cfg:        cfg,
		now:        ltm.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.writer = writer.New(completion, completion, memories, cfg.Writer, writer.WithMetrics(s.metrics))
	s.reranker = rerank.New(rerank.Config{HalfLife: cfg.HalfLife, Now: s.now})
	s.assembler = contextbuilder.New()
	s.assembler.DedupeThreshold = cfg.DedupeThreshold
	s.assembler.RecentTurns = cfg.RecentTurns
	if cfg.ExtractProfile && s.extractor == nil {
		s.extractor = profile.NewExtractor(completion.Engine(), profiles)
	}
	if !cfg.ExtractProfile {
		s.extractor = nil
	}

	log.Debug("Chatbot service initialized",
		"search_k", cfg.SearchK,
		"max_budget", cfg.MaxBudget,
		"recent_turns", cfg.RecentTurns,
		"extract_profile", s.extractor != nil,
	)
	return s
}

// Memories returns the memory store.
func (s *Service) Memories() *mmu.MemoryStore {
	return s.memories
}

// Turn runs one conversational turn and returns the reply. Storage failures
// abort the turn with an error wrapping both ErrTurnFailed and the
// StorageError; pass it to FailureReply for the user-facing message.
func (s *Service) Turn(ctx context.Context, userID, sessionID, message string) (Reply, error) {
	ctx = scoped(ctx, userID, sessionID)

	prep, err := s.prepare(ctx, userID, sessionID, message)
	if err != nil {
		return Reply{}, err
	}

	text, err := s.completion.Generate(ctx, contextbuilder.Sections(prep.items), message)
	if err != nil {
		log.ErrorContext(ctx, "Failed to generate reply", "error", err)
		return Reply{}, turnFailed(err)
	}

	if err := s.turns.Append(ctx, userID, sessionID, turnlog.RoleAssistant, text); err != nil {
		return Reply{}, turnFailed(errors.NewStorageError(OpTurnAppend, err))
	}

	log.DebugContext(ctx, "Turn completed",
		"action", prep.decision.Action,
		"context_items", len(prep.items),
		"reply_length", len(text),
	)
	return Reply{Text: text, Decision: prep.decision, Context: prep.items}, nil
}

// StreamTurn runs the same pipeline as Turn but streams the reply. The
// returned channel carries text chunks and exactly one terminal chunk. The
// assistant turn is logged only after the stream completes: a cancelled or
// failed stream persists nothing.
func (s *Service) StreamTurn(ctx context.Context, userID, sessionID, message string) (<-chan reasoning.Chunk, error) {
	ctx = scoped(ctx, userID, sessionID)

	prep, err := s.prepare(ctx, userID, sessionID, message)
	if err != nil {
		return nil, err
	}

	upstream, err := s.completion.Stream(ctx, contextbuilder.Sections(prep.items), message)
	if err != nil {
		log.ErrorContext(ctx, "Failed to start reply stream", "error", err)
		return nil, turnFailed(err)
	}

	w, out := reasoning.NewStream(ctx)
	go func() {
		var sb strings.Builder
		for c := range upstream {
			switch {
			case c.Err != nil:
				log.WarnContext(ctx, "Reply stream ended with error, not persisting", "error", c.Err)
				w.Finish(c.Err)
				return
			case c.Done:
				if err := s.turns.Append(ctx, userID, sessionID, turnlog.RoleAssistant, sb.String()); err != nil {
					w.Finish(turnFailed(errors.NewStorageError(OpTurnAppend, err)))
					return
				}
				w.Finish(nil)
				return
			}
			sb.WriteString(c.Text)
			if !w.Send(c.Text) {
				log.DebugContext(ctx, "Reply stream cancelled by consumer, not persisting")
				w.Finish(ctx.Err())
				drain(upstream)
				return
			}
		}
		w.Finish(errors.ErrStreamCancelled)
	}()
	return out, nil
}

type prepared struct {
	decision writer.Decision
	items    []contextbuilder.Item
}

// prepare runs the turn up to context assembly.
func (s *Service) prepare(ctx context.Context, userID, sessionID, message string) (prepared, error) {
	if userID == "" {
		return prepared{}, errors.Wrap(errors.ErrInvalidInput, "user_id is required")
	}
	if strings.TrimSpace(message) == "" {
		return prepared{}, errors.Wrap(errors.ErrInvalidInput, "message is empty")
	}

	if err := s.turns.Append(ctx, userID, sessionID, turnlog.RoleUser, message); err != nil {
		log.ErrorContext(ctx, "Failed to log user turn", "error", err)
		return prepared{}, turnFailed(errors.NewStorageError(OpTurnAppend, err))
	}

	decision := s.writer.Process(ctx, userID, sessionID, turnlog.RoleUser, message)

	if s.extractor != nil {
		if _, changed, err := s.extractor.ExtractAndUpdate(ctx, userID, message); err != nil {
			log.WarnContext(ctx, "Profile extraction failed", "error", err)
		} else if changed {
			log.DebugContext(ctx, "Profile updated from message")
		}
	}

	recent, err := s.turns.Load(ctx, userID, sessionID, s.cfg.RecentTurns+1)
	if err != nil {
		return prepared{}, turnFailed(errors.NewStorageError(OpTurnLoad, err))
	}
	recent = withoutCurrent(recent, message)

	candidates, err := s.memories.Search(ctx, userID, message, s.cfg.SearchK)
	if err != nil {
		return prepared{}, turnFailed(err)
	}
	candidates = withoutMemory(candidates, decision.MemoryID)
	ranked := s.reranker.Rerank(candidates)

	p, _, err := s.profiles.Load(ctx, userID)
	if err != nil {
		return prepared{}, turnFailed(errors.NewStorageError(OpProfileLoad, err))
	}

	items := s.assembler.Assemble(message, recent, ranked, profile.Render(p), s.cfg.MaxBudget)
	log.DebugContext(ctx, "Assembled context",
		"candidates", len(candidates),
		"items", len(items),
		"tokens", s.assembler.Size(items),
	)
	return prepared{decision: decision, items: items}, nil
}

// Recall lists the user's memories, newest first. limit is capped at MaxRecallLimit.
func (s *Service) Recall(ctx context.Context, userID string, limit int) ([]ltm.Record, error) {
	if limit <= 0 || limit > MaxRecallLimit {
		limit = MaxRecallLimit
	}
	return s.memories.Recall(ctx, userID, limit)
}

// SearchRanked returns the raw similarity results for query and their reranked order.
func (s *Service) SearchRanked(ctx context.Context, userID, query string, k int) ([]ltm.Candidate, []rerank.Scored, error) {
	raw, err := s.memories.Search(ctx, userID, query, k)
	if err != nil {
		return nil, nil, err
	}
	return raw, s.reranker.Rerank(raw), nil
}

// DeleteMemory removes one memory. Unknown ids are not an error.
func (s *Service) DeleteMemory(ctx context.Context, id string) error {
	return s.memories.Delete(ctx, id)
}

// Profile returns the stored profile, or an empty one.
func (s *Service) Profile(ctx context.Context, userID string) (profile.Profile, error) {
	p, ok, err := s.profiles.Load(ctx, userID)
	if err != nil {
		return nil, errors.NewStorageError(OpProfileLoad, err)
	}
	if !ok {
		return profile.Profile{}, nil
	}
	return p, nil
}

// SaveProfile replaces the user's profile.
func (s *Service) SaveProfile(ctx context.Context, userID string, p profile.Profile) error {
	if err := s.profiles.Save(ctx, userID, p); err != nil {
		return errors.NewStorageError(OpProfileSave, err)
	}
	return nil
}

// PatchProfile sets a single profile field.
func (s *Service) PatchProfile(ctx context.Context, userID, key string, value interface{}) error {
	if strings.TrimSpace(key) == "" {
		return errors.Wrap(errors.ErrInvalidInput, "profile key is required")
	}
	if err := s.profiles.UpdateField(ctx, userID, key, value); err != nil {
		return errors.NewStorageError(OpProfileSave, err)
	}
	return nil
}

// DeleteProfile clears the user's profile.
func (s *Service) DeleteProfile(ctx context.Context, userID string) error {
	if err := s.profiles.Delete(ctx, userID); err != nil {
		return errors.NewStorageError(OpProfileClear, err)
	}
	return nil
}

// Health reports liveness with the application name and version.
func (s *Service) Health() HealthStatus {
	return HealthStatus{Status: "ok", App: s.cfg.AppName, Version: s.cfg.Version}
}

// Close releases the resources registered with WithCloser, in reverse order.
func (s *Service) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// withoutCurrent drops the just-logged user message from the tail of recent;
// it enters the context as the query item.
func withoutCurrent(recent []turnlog.Turn, message string) []turnlog.Turn {
	n := len(recent)
	if n > 0 && recent[n-1].Role == turnlog.RoleUser && recent[n-1].Text == message {
		return recent[:n-1]
	}
	return recent
}

// withoutMemory drops the memory written for the current message; the
// message enters the context as the query.
func withoutMemory(candidates []ltm.Candidate, id string) []ltm.Candidate {
	if id == "" {
		return candidates
	}
	out := candidates[:0:0]
	for _, c := range candidates {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func turnFailed(err error) error {
	return fmt.Errorf("%w: %w", errors.ErrTurnFailed, err)
}

func scoped(ctx context.Context, userID, sessionID string) context.Context {
	scope := session.NewScope(userID, sessionID)
	ctx = session.WithScope(ctx, scope)
	return log.WithLogger(ctx, log.WithScope(log.FromContext(ctx), scope))
}

func drain(ch <-chan reasoning.Chunk) {
	go func() {
		for range ch {
		}
	}()
}
