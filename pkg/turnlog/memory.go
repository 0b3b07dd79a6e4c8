package turnlog

import (
	"context"
	"sync"
	"time"
)

type sessionKey struct {
	userID    string
	sessionID string
}

// MemoryLog is an in-process Log, used by tests and the mock backend.
type MemoryLog struct {
	mu    sync.RWMutex
	turns map[sessionKey][]Turn
	now   func() time.Time
}

// NewMemoryLog creates an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		turns: make(map[sessionKey][]Turn),
		now:   time.Now,
	}
}

// Append implements Log.
func (l *MemoryLog) Append(ctx context.Context, userID, sessionID, role, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := sessionKey{userID, sessionID}
	l.turns[key] = append(l.turns[key], Turn{Role: role, Text: text, Timestamp: l.now().UTC()})
	return nil
}

// Load implements Log.
func (l *MemoryLog) Load(ctx context.Context, userID, sessionID string, limit int) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	all := l.turns[sessionKey{userID, sessionID}]
	limit = normalizeLimit(limit)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]Turn(nil), all...), nil
}
