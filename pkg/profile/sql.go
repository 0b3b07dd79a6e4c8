package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLStore is a Store over the user_profile table, for sqlite3 or postgres.
// Profiles are stored as JSON text.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLStore creates a SQLStore on an already migrated database.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// Load implements Store.
func (s *SQLStore) Load(ctx context.Context, userID string) (Profile, bool, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, s.db.Rebind(`SELECT profile FROM user_profile WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load profile: %w", err)
	}

	p := Profile{}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, true, nil
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, userID string, p Profile) error {
	if p == nil {
		p = Profile{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	query := s.db.Rebind(`INSERT INTO user_profile (user_id, profile, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET profile = excluded.profile, updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, userID, string(raw), s.now().Unix()); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// UpdateField implements Store.
func (s *SQLStore) UpdateField(ctx context.Context, userID, key string, value interface{}) error {
	return updateField(ctx, s, userID, key, value)
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, userID string) error {
	return s.Save(ctx, userID, Profile{})
}
