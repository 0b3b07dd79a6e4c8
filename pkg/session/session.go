package session

import (
	"context"
	"errors"
)

// ErrMissingScope is returned when an operation needs a Scope that the context does not carry.
var ErrMissingScope = errors.New("session scope not found in context")

// Scope identifies whose conversation a request belongs to.
// UserID is the isolation boundary for memories and profiles.
type Scope struct {
	UserID    string
	SessionID string
}

// NewScope creates a Scope for the given user and session.
func NewScope(userID, sessionID string) Scope {
	return Scope{
		UserID:    userID,
		SessionID: sessionID,
	}
}

// Valid reports whether both identifiers are set.
func (s Scope) Valid() bool {
	return s.UserID != "" && s.SessionID != ""
}

// contextKey is a private type for context keys to avoid collisions
type contextKey int

const (
	scopeKey contextKey = iota
)

// WithScope returns a copy of ctx carrying s.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// FromContext retrieves the Scope stored in ctx.
// If no Scope is found, it returns a zero-valued Scope and false.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey).(Scope)
	return s, ok
}
