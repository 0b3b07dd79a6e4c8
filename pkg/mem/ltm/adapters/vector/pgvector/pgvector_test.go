package pgvector

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
	"github.com/devxilz/mcp-chatbot/test/testutil"
)

func skipIfNoPgvector(t *testing.T) string {
	t.Helper()
	pgvectorURL := os.Getenv("PGVECTOR_TEST_URL")
	if pgvectorURL == "" {
		t.Skip("Skipping pgvector tests: PGVECTOR_TEST_URL environment variable not set")
	}
	return pgvectorURL
}

func setupTestAdapter(t *testing.T) *PgvectorAdapter {
	t.Helper()
	pgvectorURL := skipIfNoPgvector(t)
	ctx := context.Background()

	// random table per test to avoid conflicts
	tableName := "test_" + uuid.New().String()[:8]

	adapter, err := NewPgvectorAdapter(ctx, PgvectorConfig{
		ConnectionString: pgvectorURL,
		TableName:        tableName,
		DimensionSize:    testutil.SuiteDims,
		IndexType:        IndexNone,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if _, err := adapter.db.Exec(ctx, "DROP TABLE IF EXISTS "+tableName); err != nil {
			t.Logf("Failed to drop test table: %v", err)
		}
		adapter.Close()
	})
	return adapter
}

func TestPgvectorAdapter_Contract(t *testing.T) {
	skipIfNoPgvector(t)
	testutil.RunVectorStoreSuite(t, func(t *testing.T) ltm.VectorStore {
		return setupTestAdapter(t)
	})
}

func TestPgvectorAdapter_DimensionMismatch(t *testing.T) {
	adapter := setupTestAdapter(t)
	rec := testutil.NewRecord("x", "alice", ltm.TypeFact, "text", []float32{1, 2}, ltm.Now())
	assert.ErrorIs(t, adapter.Add(context.Background(), rec), ltm.ErrDimensionMismatch)
}

func TestNewPgvectorAdapter_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewPgvectorAdapter(ctx, PgvectorConfig{})
	assert.ErrorIs(t, err, ErrEmptyConnectionString)

	_, err = NewPgvectorAdapter(ctx, PgvectorConfig{ConnectionString: "postgres://x", TableName: "bad;name"})
	assert.Error(t, err)

	_, err = NewPgvectorAdapter(ctx, PgvectorConfig{ConnectionString: "postgres://x", IndexType: "ivf"})
	assert.Error(t, err)
}

func TestBuildWhereClause(t *testing.T) {
	where, args := buildWhereClause(nil, 1)
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildWhereClause(ltm.Filter{
		ltm.KeyUserID:     "alice",
		ltm.KeyMemoryType: "goal",
	}, 2)
	assert.Equal(t, "WHERE metadata->>$2 = $3 AND user_id = $4", where)
	assert.Equal(t, []any{"memory_type", "goal", "alice"}, args)
}

func TestEmbeddingTextForm(t *testing.T) {
	s := embedToString([]float32{0.5, -1, 0.25})
	assert.Equal(t, "[0.5,-1,0.25]", s)
	assert.Equal(t, []float32{0.5, -1, 0.25}, stringToEmbed(s))
	assert.Nil(t, stringToEmbed("[]"))
}
