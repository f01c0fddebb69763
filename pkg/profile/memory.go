package profile

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used in development and tests
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*Profile),
	}
}

// Fetch returns the profile for the email, or ErrNotFound
func (s *MemoryStore) Fetch(ctx context.Context, email string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("fetch", email, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[NormalizeEmail(email)]
	if !ok {
		return nil, wrapErr("fetch", email, ErrNotFound)
	}
	return p.Clone(), nil
}

// Create stores a new profile, or returns ErrConflict
func (s *MemoryStore) Create(ctx context.Context, p *Profile) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("create", p.Email, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeEmail(p.Email)
	if _, exists := s.profiles[key]; exists {
		return nil, wrapErr("create", p.Email, ErrConflict)
	}

	stored := p.Clone()
	stored.Email = key
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.profiles[key] = stored
	return stored.Clone(), nil
}

// Update applies a partial update, or returns ErrNotFound
func (s *MemoryStore) Update(ctx context.Context, email string, patch Patch) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("update", email, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeEmail(email)
	p, ok := s.profiles[key]
	if !ok {
		return nil, wrapErr("update", email, ErrNotFound)
	}

	updated := p.Clone()
	patch.Apply(updated)
	s.profiles[key] = updated
	return updated.Clone(), nil
}

// Delete removes the profile, or returns ErrNotFound
func (s *MemoryStore) Delete(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return wrapErr("delete", email, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeEmail(email)
	if _, ok := s.profiles[key]; !ok {
		return wrapErr("delete", email, ErrNotFound)
	}
	delete(s.profiles, key)
	return nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
