package turnlog

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devxilz/mcp-chatbot/pkg/log"
)

type turnRow struct {
	ID        int64  `db:"id"`
	Role      string `db:"role"`
	Content   string `db:"content"`
	CreatedAt int64  `db:"created_at"`
}

// SQLLog is a Log over the session_messages table. It works with both the
// sqlite3 and postgres drivers; the schema comes from pkg/sqldb.
type SQLLog struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLLog creates a SQLLog on an already migrated database.
func NewSQLLog(db *sqlx.DB) *SQLLog {
	return &SQLLog{db: db, now: time.Now}
}

// Append implements Log.
func (l *SQLLog) Append(ctx context.Context, userID, sessionID, role, text string) error {
	query := l.db.Rebind(`INSERT INTO session_messages (user_id, session_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err := l.db.ExecContext(ctx, query, userID, sessionID, role, text, l.now().Unix()); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	log.DebugContext(ctx, "Appended turn", "user_id", userID, "session_id", sessionID, "role", role)
	return nil
}

// Load implements Log. Turns are ordered by insertion id, which follows
// append order even within one second.
func (l *SQLLog) Load(ctx context.Context, userID, sessionID string, limit int) ([]Turn, error) {
	query := l.db.Rebind(`SELECT id, role, content, created_at FROM session_messages
		WHERE user_id = ? AND session_id = ?
		ORDER BY id DESC
		LIMIT ?`)

	var rows []turnRow
	if err := l.db.SelectContext(ctx, &rows, query, userID, sessionID, normalizeLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to load turns: %w", err)
	}

	turns := make([]Turn, len(rows))
	for i, r := range rows {
		// reverse into oldest-first
		turns[len(rows)-1-i] = Turn{
			Role:      r.Role,
			Text:      r.Content,
			Timestamp: time.Unix(r.CreatedAt, 0).UTC(),
		}
	}
	return turns, nil
}
