// Package mmu manages the flow of information between a conversation and
// long-term memory. MemoryStore is the single writer path for memory records:
// it owns id generation, embedding and metadata normalization.
package mmu

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devxilz/mcp-chatbot/pkg/embedding"
	"github.com/devxilz/mcp-chatbot/pkg/errors"
	"github.com/devxilz/mcp-chatbot/pkg/log"
	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
	"github.com/devxilz/mcp-chatbot/pkg/metrics"
	"github.com/devxilz/mcp-chatbot/pkg/scripting"
)

// Operation names reported in StorageError.Op
const (
	OpAdd    = "add"
	OpSearch = "search"
	OpRecall = "recall"
	OpGet    = "get"
	OpUpdate = "update"
	OpDelete = "delete"
	OpCount  = "count"
)

// MemoryStore turns domain operations into VectorStore calls.
type MemoryStore struct {
	store    ltm.VectorStore
	embedder embedding.Embedder

	// scriptEngine runs the optional before_encode/after_encode hooks
	scriptEngine scripting.Engine

	now     func() time.Time
	newID   func() string
	metrics *metrics.Metrics
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithScriptEngine enables Lua encode hooks.
func WithScriptEngine(engine scripting.Engine) Option {
	return func(m *MemoryStore) {
		m.scriptEngine = engine
	}
}

// WithClock overrides the time source used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(m *MemoryStore) {
		m.now = now
	}
}

// WithIDGenerator overrides the record id generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *MemoryStore) {
		m.newID = gen
	}
}

// WithMetrics records stored memories, searches and storage errors.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *MemoryStore) {
		m.metrics = mt
	}
}

// NewMemoryStore creates a MemoryStore over an already constructed store and embedder.
func NewMemoryStore(store ltm.VectorStore, embedder embedding.Embedder, opts ...Option) *MemoryStore {
	m := &MemoryStore{
		store:    store,
		embedder: embedder,
		now:      ltm.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(m)
	}

	log.Debug("Memory store initialized",
		"lua_hooks_enabled", m.scriptEngine != nil,
	)
	return m
}

// Add embeds text and writes one record for the user. Caller metadata is a
// flat map merged over the defaults (importance 0.4, timestamps now); the
// timestamp keys are ignored. It returns the new id, or "" when a
// before_encode hook vetoed the write.
func (m *MemoryStore) Add(ctx context.Context, userID, sessionID, text string, memType ltm.MemoryType, meta map[string]string) (string, error) {
	if userID == "" {
		return "", errors.Wrap(errors.ErrInvalidInput, "user_id is required")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.Wrap(errors.ErrInvalidInput, "memory text is empty")
	}

	md := ltm.NewMetadata(userID, sessionID, memType, m.now()).Merge(meta)
	// user and session are not overridable by caller metadata
	md.UserID = userID
	md.SessionID = sessionID

	text, md, keep := m.beforeEncode(ctx, text, md)
	if !keep {
		log.DebugContext(ctx, "Memory write vetoed by Lua hook", "user_id", userID)
		return "", nil
	}

	vec, err := m.embedder.Encode(ctx, text)
	if err != nil {
		return "", m.storageError(OpAdd, err)
	}

	record := ltm.Record{
		ID:        m.newID(),
		Text:      text,
		Embedding: vec,
		Metadata:  md,
	}
	if err := m.store.Add(ctx, record); err != nil {
		return "", m.storageError(OpAdd, err)
	}

	m.metrics.RecordStored(string(md.Type))
	log.DebugContext(ctx, "Stored memory",
		"id", record.ID,
		"memory_type", md.Type,
		"importance", md.Importance,
		"text", truncateString(text, 30),
	)

	m.afterEncode(ctx, record.ID)
	return record.ID, nil
}

// Search returns the k records nearest to query for the user, in the store's
// similarity order. The result is not reranked.
func (m *MemoryStore) Search(ctx context.Context, userID, query string, k int) ([]ltm.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := m.embedder.Encode(ctx, query)
	if err != nil {
		return nil, m.storageError(OpSearch, err)
	}

	results, err := m.store.Query(ctx, vec, k, ltm.UserFilter(userID))
	if err != nil {
		return nil, m.storageError(OpSearch, err)
	}
	m.metrics.RecordSearch()

	log.DebugContext(ctx, "Searched memories",
		"user_id", userID,
		"k", k,
		"count", len(results),
	)
	return results, nil
}

// Recall lists up to limit of the user's records, newest first. It is an
// exact filtered scan and never issues a similarity query. A non-positive
// limit returns no records.
func (m *MemoryStore) Recall(ctx context.Context, userID string, limit int) ([]ltm.Record, error) {
	if limit <= 0 {
		return []ltm.Record{}, nil
	}
	records, err := m.store.Scan(ctx, ltm.UserFilter(userID), limit)
	if err != nil {
		return nil, m.storageError(OpRecall, err)
	}
	return records, nil
}

// Get fetches a single record. The boolean is false when the id is unknown.
func (m *MemoryStore) Get(ctx context.Context, id string) (ltm.Record, bool, error) {
	records, err := m.store.Get(ctx, id)
	if err != nil {
		return ltm.Record{}, false, m.storageError(OpGet, err)
	}
	if len(records) == 0 {
		return ltm.Record{}, false, nil
	}
	return records[0], true, nil
}

// Update merges newMeta over the stored metadata and optionally replaces the
// text. A missing id is a no-op. The record is re-embedded only when newText
// is given; created_at is preserved and updated_at refreshed.
func (m *MemoryStore) Update(ctx context.Context, id string, newText *string, newMeta map[string]string) error {
	current, ok, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		log.DebugContext(ctx, "Update of unknown memory ignored", "id", id)
		return nil
	}

	updated := current
	updated.Metadata = current.Metadata.Merge(newMeta)
	updated.Metadata.UpdatedAt = m.now()
	updated.Metadata.Normalize()

	if newText != nil && *newText != current.Text {
		vec, err := m.embedder.Encode(ctx, *newText)
		if err != nil {
			return m.storageError(OpUpdate, err)
		}
		updated.Text = *newText
		updated.Embedding = vec
	}

	err = m.store.Update(ctx, updated)
	if errors.Is(err, ltm.ErrRecordNotFound) {
		// deleted between Get and Update
		return nil
	}
	if err != nil {
		return m.storageError(OpUpdate, err)
	}
	return nil
}

// Delete removes a record. Deleting an unknown id is not an error.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return m.storageError(OpDelete, err)
	}
	return nil
}

// Count returns the total number of stored records. The value is advisory.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	n, err := m.store.Count(ctx)
	if err != nil {
		return 0, m.storageError(OpCount, err)
	}
	m.metrics.SetMemories(n)
	return n, nil
}

func (m *MemoryStore) storageError(op string, err error) error {
	m.metrics.RecordStorageError(op)
	return errors.NewStorageError(op, err)
}

// truncateString truncates a string to the specified length and adds "..." if truncated.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
