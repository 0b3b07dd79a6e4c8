package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
)

// SuiteDims is the embedding size used by RunVectorStoreSuite.
const SuiteDims = 3

// NewRecord builds a record with normalized metadata for store tests.
func NewRecord(id, userID string, memType ltm.MemoryType, text string, emb []float32, created time.Time) ltm.Record {
	meta := ltm.NewMetadata(userID, "session-1", memType, created.UTC().Truncate(time.Second))
	return ltm.Record{ID: id, Text: text, Embedding: emb, Metadata: meta}
}

// RunVectorStoreSuite exercises the ltm.VectorStore contract. open must return
// an empty store accepting SuiteDims-sized embeddings.
func RunVectorStoreSuite(t *testing.T, open func(t *testing.T) ltm.VectorStore) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, store ltm.VectorStore) {
		t.Helper()
		ctx := context.Background()
		for _, r := range []ltm.Record{
			NewRecord("a1", "alice", ltm.TypeGoal, "I want to run a marathon", []float32{1, 0, 0}, base),
			NewRecord("a2", "alice", ltm.TypePreference, "I like jogging at dawn", []float32{0.9, 0.1, 0}, base.Add(time.Hour)),
			NewRecord("a3", "alice", ltm.TypeFact, "My cat is called Miso", []float32{0, 1, 0}, base.Add(2*time.Hour)),
			NewRecord("b1", "bob", ltm.TypeGoal, "I want to learn Go", []float32{1, 0, 0}, base.Add(3*time.Hour)),
		} {
			require.NoError(t, store.Add(ctx, r))
		}
	}

	t.Run("AddAndGet", func(t *testing.T) {
		store := open(t)
		seed(t, store)

		records, err := store.Get(context.Background(), "a1", "missing", "b1")
		require.NoError(t, err)
		require.Len(t, records, 2)

		byID := map[string]ltm.Record{}
		for _, r := range records {
			byID[r.ID] = r
		}
		a1 := byID["a1"]
		assert.Equal(t, "I want to run a marathon", a1.Text)
		assert.Equal(t, "alice", a1.Metadata.UserID)
		assert.Equal(t, ltm.TypeGoal, a1.Metadata.Type)
		assert.InDelta(t, ltm.DefaultImportance, a1.Metadata.Importance, 1e-9)
		assert.Equal(t, base.Unix(), a1.Metadata.CreatedAt.Unix())
		assert.Equal(t, "bob", byID["b1"].Metadata.UserID)
	})

	t.Run("QueryNearestWithinUser", func(t *testing.T) {
		store := open(t)
		seed(t, store)

		cands, err := store.Query(context.Background(), []float32{1, 0, 0}, 2, ltm.UserFilter("alice"))
		require.NoError(t, err)
		require.Len(t, cands, 2)
		assert.Equal(t, "a1", cands[0].ID)
		assert.Equal(t, "a2", cands[1].ID)
		assert.InDelta(t, 0, cands[0].Distance, 1e-5)
		assert.LessOrEqual(t, cands[0].Distance, cands[1].Distance)
		for _, c := range cands {
			assert.Equal(t, "alice", c.Metadata.UserID)
		}
	})

	t.Run("QueryLargeK", func(t *testing.T) {
		store := open(t)
		seed(t, store)

		cands, err := store.Query(context.Background(), []float32{0, 1, 0}, 50, ltm.UserFilter("alice"))
		require.NoError(t, err)
		require.Len(t, cands, 3)
		assert.Equal(t, "a3", cands[0].ID)
	})

	t.Run("QueryFilterByType", func(t *testing.T) {
		store := open(t)
		seed(t, store)

		filter := ltm.Filter{ltm.KeyUserID: "alice", ltm.KeyMemoryType: string(ltm.TypeFact)}
		cands, err := store.Query(context.Background(), []float32{1, 0, 0}, 5, filter)
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, "a3", cands[0].ID)
	})

	t.Run("QueryUnknownUser", func(t *testing.T) {
		store := open(t)
		seed(t, store)

		cands, err := store.Query(context.Background(), []float32{1, 0, 0}, 5, ltm.UserFilter("nobody"))
		require.NoError(t, err)
		assert.Empty(t, cands)
	})

	t.Run("Update", func(t *testing.T) {
		store := open(t)
		seed(t, store)
		ctx := context.Background()

		records, err := store.Get(ctx, "a2")
		require.NoError(t, err)
		require.Len(t, records, 1)

		r := records[0]
		r.Text = "I like swimming"
		r.Embedding = []float32{0, 0, 1}
		r.Metadata = r.Metadata.Merge(map[string]string{ltm.KeyImportance: "0.9", "source": "edit"})
		r.Metadata.UpdatedAt = base.Add(5 * time.Hour)
		require.NoError(t, store.Update(ctx, r))

		got, err := store.Get(ctx, "a2")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "I like swimming", got[0].Text)
		assert.InDelta(t, 0.9, got[0].Metadata.Importance, 1e-9)
		assert.Equal(t, "edit", got[0].Metadata.Extra["source"])
		assert.Equal(t, base.Add(time.Hour).Unix(), got[0].Metadata.CreatedAt.Unix())

		cands, err := store.Query(ctx, []float32{0, 0, 1}, 1, ltm.UserFilter("alice"))
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, "a2", cands[0].ID)

		missing := NewRecord("nope", "alice", ltm.TypeFact, "x", []float32{1, 0, 0}, base)
		assert.ErrorIs(t, store.Update(ctx, missing), ltm.ErrRecordNotFound)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		store := open(t)
		seed(t, store)
		ctx := context.Background()

		require.NoError(t, store.Delete(ctx, "a1", "missing"))
		require.NoError(t, store.Delete(ctx, "a1"))

		records, err := store.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Empty(t, records)

		cands, err := store.Query(ctx, []float32{1, 0, 0}, 5, ltm.UserFilter("alice"))
		require.NoError(t, err)
		for _, c := range cands {
			assert.NotEqual(t, "a1", c.ID)
		}

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("ScanNewestFirst", func(t *testing.T) {
		store := open(t)
		seed(t, store)
		ctx := context.Background()

		records, err := store.Scan(ctx, ltm.UserFilter("alice"), 10)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, []string{"a3", "a2", "a1"}, []string{records[0].ID, records[1].ID, records[2].ID})

		limited, err := store.Scan(ctx, ltm.UserFilter("alice"), 2)
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, "a3", limited[0].ID)
	})

	t.Run("Count", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		n, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		seed(t, store)
		n, err = store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})
}
