package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps windows in process memory. Expired windows are evicted by
// the go-cache janitor, so the key space does not grow for the life of the
// process.
type MemoryStore struct {
	mu    sync.Mutex
	items *cache.Cache
	now   func() time.Time
}

// NewMemoryStore creates a store whose janitor runs every cleanup interval.
func NewMemoryStore(cleanup time.Duration) *MemoryStore {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &MemoryStore{
		items: cache.New(cache.NoExpiration, cleanup),
		now:   time.Now,
	}
}

// WithClock overrides the store clock. Used in tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Hit implements Store.
func (s *MemoryStore) Hit(_ context.Context, key string, max int, win time.Duration) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if v, ok := s.items.Get(key); ok {
		w := v.(*window)
		if !now.After(w.resetAt) {
			if w.count >= max {
				return Decision{Allowed: false, Count: w.count, ResetAt: w.resetAt}, nil
			}
			w.count++
			return Decision{Allowed: true, Count: w.count, ResetAt: w.resetAt}, nil
		}
	}

	w := &window{count: 1, resetAt: now.Add(win)}
	// Keep the item a little past resetAt so the boundary is decided by
	// resetAt and not by the janitor.
	s.items.Set(key, w, win+time.Second)
	return Decision{Allowed: true, Count: 1, ResetAt: w.resetAt}, nil
}

// Len returns the number of tracked windows, including ones not yet evicted.
func (s *MemoryStore) Len() int {
	return s.items.ItemCount()
}
