package local

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/predictmarket/internal/domain"
)

// LockManager hands out named locks within one process. A lock not released
// before its TTL expires may be taken by the next caller.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]uint64
	until map[string]time.Time
	seq   uint64
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{
		held:  make(map[string]uint64),
		until: make(map[string]time.Time),
	}
}

// Acquire takes the lock for key or returns domain.ErrLockHeld.
func (lm *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := time.Now()
	if _, ok := lm.held[key]; ok && now.Before(lm.until[key]) {
		return nil, domain.ErrLockHeld
	}

	lm.seq++
	token := lm.seq
	lm.held[key] = token
	lm.until[key] = now.Add(ttl)

	var once sync.Once
	return func() {
		once.Do(func() {
			lm.mu.Lock()
			defer lm.mu.Unlock()
			if lm.held[key] == token {
				delete(lm.held, key)
				delete(lm.until, key)
			}
		})
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
