// Package profile stores per-user profile fields and renders them for the
// assembled context.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Profile is a user's free-form profile. Values are JSON-compatible.
type Profile map[string]interface{}

// Clone returns a shallow copy of p that is never nil.
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Store persists profiles.
type Store interface {
	// Load returns the profile and whether one was saved for the user.
	Load(ctx context.Context, userID string) (Profile, bool, error)

	// Save replaces the user's profile.
	Save(ctx context.Context, userID string, p Profile) error

	// UpdateField sets one key, creating the profile if needed.
	UpdateField(ctx context.Context, userID, key string, value interface{}) error

	// Delete clears the profile to an empty one.
	Delete(ctx context.Context, userID string) error
}

// updateField is the shared load-modify-save behind UpdateField.
func updateField(ctx context.Context, s Store, userID, key string, value interface{}) error {
	p, _, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}
	p = p.Clone()
	p[key] = value
	return s.Save(ctx, userID, p)
}

// Render formats p as "key: value" lines in key order. Lists are joined with
// commas and other composite values are written as JSON. An empty profile
// renders as "".
func Render(p Profile) string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v := renderValue(p[k])
		if v == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", k, v))
	}
	return strings.Join(lines, "\n")
}

func renderValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := renderValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
