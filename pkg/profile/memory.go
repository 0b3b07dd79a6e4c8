package profile

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]Profile)}
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, userID string) (Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, userID string, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = p.Clone()
	return nil
}

// UpdateField implements Store.
func (s *MemoryStore) UpdateField(ctx context.Context, userID, key string, value interface{}) error {
	return updateField(ctx, s, userID, key, value)
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	return s.Save(ctx, userID, Profile{})
}
