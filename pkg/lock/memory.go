package lock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is a process local Locker with the same TTL semantics as RedisLocker.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (Lease, error) {
	token := newToken()
	err := acquireLoop(ctx, wait, func() (bool, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		now := l.now()
		if e, ok := l.locks[key]; ok && now.Before(e.expiresAt) {
			return false, nil
		}
		l.locks[key] = memoryEntry{token: token, expiresAt: now.Add(ttl)}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &memoryLease{owner: l, key: key, token: token}, nil
}

// Held reports whether key is currently locked.
func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[key]
	return ok && l.now().Before(e.expiresAt)
}

type memoryLease struct {
	owner *MemoryLocker
	key   string
	token string
}

func (l *memoryLease) Key() string {
	return l.key
}

func (l *memoryLease) Release(ctx context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	e, ok := l.owner.locks[l.key]
	if !ok || e.token != l.token {
		return ErrNotHeld
	}
	delete(l.owner.locks, l.key)
	return nil
}
