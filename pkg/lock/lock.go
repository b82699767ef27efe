// Package lock provides per-key mutual exclusion with a TTL, backed by redis
// in production and by process memory in tests and single-node setups.
package lock

import (
	"context"
	"errors"
	"time"

	"xp_engine/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotAcquired is returned when the lock stays held by someone else for the whole wait.
	ErrNotAcquired = errors.New("lock not acquired")
	// ErrNotHeld is returned when releasing a lease that already expired or was taken over.
	ErrNotHeld = errors.New("lock not held")
)

const retryInterval = 20 * time.Millisecond

type Locker interface {
	// Acquire blocks up to wait for key to become free and holds it for ttl.
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (Lease, error)
}

type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// WithLock runs fn while holding key. The lease is released on every exit path.
func WithLock(ctx context.Context, l Locker, key string, ttl, wait time.Duration, fn func(ctx context.Context) error) error {
	lease, err := l.Acquire(ctx, key, ttl, wait)
	if err != nil {
		return err
	}
	defer func() {
		// release must not depend on a cancelled request context
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			logger.Log.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn(ctx)
}

// acquireLoop polls try until it succeeds, the wait elapses or ctx ends.
func acquireLoop(ctx context.Context, wait time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrNotAcquired
		}
		sleep := retryInterval
		if remaining := time.Until(deadline); remaining < sleep {
			sleep = remaining
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrNotAcquired
		case <-timer.C:
		}
	}
}

func newToken() string {
	return uuid.NewString()
}
