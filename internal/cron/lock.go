package cron

import (
	"context"
	"fmt"
	"time"
)

// lockStore is the slice of the redis client the locker needs.
type lockStore interface {
	LockKey(scope string) string
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDel(ctx context.Context, key, value string) (bool, error)
}

// Locker serializes job runs across worker replicas with a Redis lock. The
// TTL bounds how long a crashed worker can block the next run.
type Locker struct {
	store lockStore
	ttl   time.Duration
	owner string
}

func NewLocker(store lockStore, ttl time.Duration, owner string) (*Locker, error) {
	if store == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}
	if owner == "" {
		return nil, fmt.Errorf("lock owner required")
	}
	return &Locker{store: store, ttl: ttl, owner: owner}, nil
}

// Acquire takes the named lock, reporting false when another worker holds it.
func (l *Locker) Acquire(ctx context.Context, name string) (bool, error) {
	key := l.store.LockKey("cron:" + name)
	acquired, err := l.store.SetNX(ctx, key, l.owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return acquired, nil
}

// Release drops the named lock only while this worker still owns it. When the
// TTL already expired and another worker took the lock, the release is a
// no-op instead of stealing the new owner's lock.
func (l *Locker) Release(ctx context.Context, name string) error {
	key := l.store.LockKey("cron:" + name)
	if _, err := l.store.CompareAndDel(ctx, key, l.owner); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}
