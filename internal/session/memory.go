package session

import (
	"context"
	"sync"
	"time"

	"github.com/non4ik-sdk/palettron/internal/colour"
)

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	palette   *colour.Palette
	expiresAt time.Time
}

// MemoryStore provides an in-memory implementation of the Store interface.
// It is thread-safe and suitable for single-instance deployments. For several
// instances behind one endpoint, use RedisStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	ttl time.Duration
	now func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryTTL sets how long a pending palette lives. Zero disables expiry.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.ttl = ttl
	}
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put implements Store. A copy of p is stored so later changes by the caller
// do not leak in.
func (s *MemoryStore) Put(_ context.Context, id string, p *colour.Palette) error {
	if err := validate(id, p); err != nil {
		return err
	}

	entry := memoryEntry{palette: p.Clone()}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = entry
	return nil
}

// Take implements Store.
func (s *MemoryStore) Take(_ context.Context, id string) (*colour.Palette, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, id)

	if s.expired(entry) {
		return nil, ErrNotFound
	}
	return entry.palette, nil
}

// Peek implements Store.
func (s *MemoryStore) Peek(_ context.Context, id string) (*colour.Palette, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok || s.expired(entry) {
		return nil, ErrNotFound
	}
	return entry.palette.Clone(), nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(_ context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired ones included until swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
