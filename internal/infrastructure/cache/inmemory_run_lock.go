package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/migrator/internal/domain/migration"
)

// InMemoryRunLock implements migration.RunLock with an in-process map.
// It only guards against concurrent runs inside one process.
type InMemoryRunLock struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryRunLock creates a lock whose holds expire after ttl
func NewInMemoryRunLock(ttl time.Duration) *InMemoryRunLock {
	return &InMemoryRunLock{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Acquire takes the lock for key. Returns false if it is already held and
// has not expired.
func (l *InMemoryRunLock) Acquire(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiresAt, held := l.entries[key]; held && now.Before(expiresAt) {
		return false, nil
	}
	l.entries[key] = now.Add(l.ttl)
	return true, nil
}

// Release drops the lock for key
func (l *InMemoryRunLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
	return nil
}

// Held reports whether key is currently locked
func (l *InMemoryRunLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiresAt, held := l.entries[key]
	return held && l.now().Before(expiresAt)
}

// Close is a no-op
func (l *InMemoryRunLock) Close() error {
	return nil
}

var _ migration.RunLock = (*InMemoryRunLock)(nil)
