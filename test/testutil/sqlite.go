package testutil

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/devxilz/mcp-chatbot/pkg/sqldb"
)

// CreateTempSQLiteDB opens a migrated SQLite database in a temp directory.
// It is closed when the test ends.
func CreateTempSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqldb.OpenAndMigrate(sqldb.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
