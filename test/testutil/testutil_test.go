package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devxilz/mcp-chatbot/pkg/mem/ltm"
)

func TestCreateTempChromemGoClient(t *testing.T) {
	client, cleanup := CreateTempChromemGoClient(t)
	defer cleanup()
	require.NotNil(t, client)

	coll, err := client.CreateCollection("basic", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, coll.Count())
	_, found := client.ListCollections()["basic"]
	assert.True(t, found)
}

func TestCreateTempBoltDB(t *testing.T) {
	db, path, cleanup := CreateTempBoltDB(t)
	require.NotNil(t, db)
	_, err := os.Stat(path)
	require.NoError(t, err)

	cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCreateTempSQLiteDB(t *testing.T) {
	db := CreateTempSQLiteDB(t)
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM session_messages"))
	assert.Equal(t, 0, n)
}

func TestNewRecord(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 600, time.UTC)
	r := NewRecord("id", "alice", ltm.TypeGoal, "text", []float32{1}, created)
	assert.Equal(t, "alice", r.Metadata.UserID)
	assert.Equal(t, ltm.TypeGoal, r.Metadata.Type)
	assert.Equal(t, created.Truncate(time.Second), r.Metadata.CreatedAt)
	assert.Equal(t, r.Metadata.CreatedAt, r.Metadata.UpdatedAt)
}
