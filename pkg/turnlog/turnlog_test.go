package turnlog

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devxilz/mcp-chatbot/pkg/sqldb"
	"github.com/devxilz/mcp-chatbot/test/testutil"
)

func runLogSuite(t *testing.T, open func(t *testing.T) Log) {
	ctx := context.Background()

	t.Run("OldestFirst", func(t *testing.T) {
		l := open(t)
		for i := 0; i < 5; i++ {
			role := RoleUser
			if i%2 == 1 {
				role = RoleAssistant
			}
			require.NoError(t, l.Append(ctx, "alice", "s1", role, fmt.Sprintf("msg %d", i)))
		}

		turns, err := l.Load(ctx, "alice", "s1", 0)
		require.NoError(t, err)
		require.Len(t, turns, 5)
		for i, turn := range turns {
			assert.Equal(t, fmt.Sprintf("msg %d", i), turn.Text)
			assert.False(t, turn.Timestamp.IsZero())
		}
		assert.Equal(t, RoleUser, turns[0].Role)
		assert.Equal(t, RoleAssistant, turns[1].Role)
	})

	t.Run("LatestWindow", func(t *testing.T) {
		l := open(t)
		for i := 0; i < 30; i++ {
			require.NoError(t, l.Append(ctx, "alice", "s1", RoleUser, fmt.Sprintf("msg %d", i)))
		}

		turns, err := l.Load(ctx, "alice", "s1", 3)
		require.NoError(t, err)
		require.Len(t, turns, 3)
		assert.Equal(t, "msg 27", turns[0].Text)
		assert.Equal(t, "msg 29", turns[2].Text)

		turns, err = l.Load(ctx, "alice", "s1", -1)
		require.NoError(t, err)
		assert.Len(t, turns, DefaultLimit)
		assert.Equal(t, "msg 10", turns[0].Text)
	})

	t.Run("SessionIsolation", func(t *testing.T) {
		l := open(t)
		require.NoError(t, l.Append(ctx, "alice", "s1", RoleUser, "alice s1"))
		require.NoError(t, l.Append(ctx, "alice", "s2", RoleUser, "alice s2"))
		require.NoError(t, l.Append(ctx, "bob", "s1", RoleUser, "bob s1"))

		turns, err := l.Load(ctx, "alice", "s1", 10)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, "alice s1", turns[0].Text)

		turns, err = l.Load(ctx, "carol", "s1", 10)
		require.NoError(t, err)
		assert.Empty(t, turns)
	})
}

func TestMemoryLog(t *testing.T) {
	runLogSuite(t, func(t *testing.T) Log { return NewMemoryLog() })
}

func TestMemoryLog_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewMemoryLog()
	assert.Error(t, l.Append(ctx, "alice", "s1", RoleUser, "hi"))
	_, err := l.Load(ctx, "alice", "s1", 1)
	assert.Error(t, err)
}

func TestSQLLog_SQLite(t *testing.T) {
	runLogSuite(t, func(t *testing.T) Log {
		return NewSQLLog(testutil.CreateTempSQLiteDB(t))
	})
}

func TestSQLLog_Timestamp(t *testing.T) {
	l := NewSQLLog(testutil.CreateTempSQLiteDB(t))
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	l.now = func() time.Time { return at }

	require.NoError(t, l.Append(context.Background(), "alice", "s1", RoleUser, "hello there"))
	turns, err := l.Load(context.Background(), "alice", "s1", 1)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, at, turns[0].Timestamp)
}

func TestSQLLog_Postgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_TEST_URL")
	if dsn == "" {
		t.Skip("DATABASE_TEST_URL not set")
	}
	db, err := sqldb.OpenAndMigrate(sqldb.DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runLogSuite(t, func(t *testing.T) Log {
		_, err := db.Exec("DELETE FROM session_messages")
		require.NoError(t, err)
		return NewSQLLog(db)
	})
}
