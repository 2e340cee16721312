// ==============================================================================
// IN-MEMORY LOCK STORE - internal/repository/memory/locks.go
// ==============================================================================
package memory

import (
	"context"
	"sync"
	"time"
)

// LockStore is a process-local stand-in for the Redis lock store, used in
// tests and the simulation binary.
type LockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time
	now   func() time.Time
}

func NewLockStore() *LockStore {
	return &LockStore{
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (s *LockStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, held := s.locks[key]; held && now.Before(expiry) {
		return false, nil
	}
	s.locks[key] = now.Add(ttl)
	return true, nil
}

func (s *LockStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.locks, key)
	return nil
}
