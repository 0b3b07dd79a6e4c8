package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
	"github.com/devxilz/mcp-chatbot/test/testutil"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	db, _, cleanup := testutil.CreateTempBoltDB(t)
	t.Cleanup(cleanup)

	store := NewBoltStore(db)
	require.NoError(t, store.Initialize(context.Background()))
	return store
}

func TestBoltStore_Contract(t *testing.T) {
	testutil.RunVectorStoreSuite(t, func(t *testing.T) ltm.VectorStore {
		return newTestStore(t)
	})
}

func TestBoltStore_RejectsInvalidRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Add(ctx, ltm.Record{ID: "", Embedding: []float32{1}}), ErrInvalidRecord)
	assert.ErrorIs(t, store.Add(ctx, ltm.Record{ID: "x"}), ErrInvalidRecord)
}

func TestBoltStore_DimensionMismatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, ltm.Record{ID: "a", Embedding: []float32{1, 0, 0}}))
	err := store.Add(ctx, ltm.Record{ID: "b", Embedding: []float32{1, 0}})
	assert.ErrorIs(t, err, ltm.ErrDimensionMismatch)
}

func TestBoltStore_UpdateMovesUserIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := testutil.NewRecord("m1", "alice", ltm.TypeFact, "shared fact", []float32{1, 0, 0}, ltm.Now())
	require.NoError(t, store.Add(ctx, rec))

	rec.Metadata.UserID = "bob"
	require.NoError(t, store.Update(ctx, rec))

	alice, err := store.Scan(ctx, ltm.UserFilter("alice"), 0)
	require.NoError(t, err)
	assert.Empty(t, alice)

	bob, err := store.Scan(ctx, ltm.UserFilter("bob"), 0)
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, "m1", bob[0].ID)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memories.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	require.NoError(t, err)
	rec := testutil.NewRecord("m1", "alice", ltm.TypeGoal, "run a marathon", []float32{1, 0, 0}, ltm.Now())
	require.NoError(t, store.Add(ctx, rec))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "run a marathon", got[0].Text)
	assert.Equal(t, ltm.TypeGoal, got[0].Metadata.Type)
}
