package ltm

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRecordNotFound is returned by VectorStore.Update when the id is unknown
	ErrRecordNotFound = errors.New("memory record not found")

	// ErrDimensionMismatch is returned when an embedding does not match the store dimensionality
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Record represents a single memory entry in long-term memory.
type Record struct {
	// ID is globally unique and immutable once assigned
	ID string `json:"id"`

	// Text is the memory content that gets embedded and shown to the model
	Text string `json:"text"`

	// Embedding is the vector representation of Text
	Embedding []float32 `json:"embedding,omitempty"`

	// Metadata is the normalized metadata record
	Metadata Metadata `json:"metadata"`
}

// Candidate is a record returned by a similarity query, before reranking.
type Candidate struct {
	ID       string
	Text     string
	Metadata Metadata

	// Distance is a non-negative dissimilarity, 0 meaning identical.
	// It is not bounded above by 1.
	Distance float64

	// Embedding is set when the store returns vectors with its results
	Embedding []float32
}

// Filter is an exact-match predicate over flat metadata keys (see Metadata.Flatten).
type Filter map[string]string

// UserFilter returns the filter isolating a single user's memories.
func UserFilter(userID string) Filter {
	return Filter{KeyUserID: userID}
}

// Matches reports whether flat metadata satisfies every key of the filter.
func (f Filter) Matches(flat map[string]string) bool {
	for k, v := range f {
		got, ok := flat[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// VectorStore is the interface that all memory store adapters must implement.
type VectorStore interface {
	// Add writes one record. The record must carry an embedding.
	Add(ctx context.Context, record Record) error

	// Query returns up to k records nearest to embedding that match filter, nearest first.
	Query(ctx context.Context, embedding []float32, k int, filter Filter) ([]Candidate, error)

	// Get fetches records by id. Unknown ids are omitted from the result.
	Get(ctx context.Context, ids ...string) ([]Record, error)

	// Update replaces the stored record with the same id.
	// It returns ErrRecordNotFound when the id is unknown.
	Update(ctx context.Context, record Record) error

	// Delete removes records by id. Unknown ids are ignored.
	Delete(ctx context.Context, ids ...string) error

	// Scan lists up to limit records matching filter, newest first.
	// It is an exact filtered fetch and never a similarity query.
	Scan(ctx context.Context, filter Filter, limit int) ([]Record, error)

	// Count returns the number of stored records. The value is advisory.
	Count(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close() error
}

// Now returns the current time truncated to whole seconds in UTC, matching the
// unix-second resolution metadata is persisted with.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
