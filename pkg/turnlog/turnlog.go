// Package turnlog is the append-only log of raw conversation turns.
package turnlog

import (
	"context"
	"time"
)

// DefaultLimit is the number of turns Load returns when limit is not positive
const DefaultLimit = 20

// Conversation roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one logged message.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Log stores conversation turns per user and session. Appends for one
// session are applied in call order.
type Log interface {
	// Append records one turn.
	Append(ctx context.Context, userID, sessionID, role, text string) error

	// Load returns the latest limit turns of the session, oldest first.
	Load(ctx context.Context, userID, sessionID string, limit int) ([]Turn, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
