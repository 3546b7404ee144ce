package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLockStore struct {
	values map[string]string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: map[string]string{}}
}

func (s *fakeLockStore) LockKey(scope string) string { return "tokoku:lock:" + scope }

func (s *fakeLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, held := s.values[key]; held {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *fakeLockStore) CompareAndDel(_ context.Context, key, value string) (bool, error) {
	if s.values[key] != value {
		return false, nil
	}
	delete(s.values, key)
	return true, nil
}

func TestLockerAcquireReleaseRoundtrip(t *testing.T) {
	t.Parallel()

	store := newFakeLockStore()
	ctx := context.Background()

	locker, err := NewLocker(store, time.Minute, "worker-a")
	require.NoError(t, err)

	acquired, err := locker.Acquire(ctx, "stock-hold-sweep")
	require.NoError(t, err)
	assert.True(t, acquired)

	// held elsewhere: a second acquire reports false without error
	again, err := locker.Acquire(ctx, "stock-hold-sweep")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, locker.Release(ctx, "stock-hold-sweep"))

	reacquired, err := locker.Acquire(ctx, "stock-hold-sweep")
	require.NoError(t, err)
	assert.True(t, reacquired)
}

func TestLockerReleaseKeepsAnotherOwnersLock(t *testing.T) {
	t.Parallel()

	store := newFakeLockStore()
	ctx := context.Background()

	a, err := NewLocker(store, time.Minute, "worker-a")
	require.NoError(t, err)
	b, err := NewLocker(store, time.Minute, "worker-b")
	require.NoError(t, err)

	acquired, err := b.Acquire(ctx, "stale-order-cancel")
	require.NoError(t, err)
	require.True(t, acquired)

	// worker-a's TTL lapsed and worker-b took over; a's release must not
	// free b's lock
	require.NoError(t, a.Release(ctx, "stale-order-cancel"))

	stillHeld, err := a.Acquire(ctx, "stale-order-cancel")
	require.NoError(t, err)
	assert.False(t, stillHeld)
}

func TestNewLockerValidation(t *testing.T) {
	t.Parallel()

	store := newFakeLockStore()
	_, err := NewLocker(nil, time.Minute, "worker-a")
	require.Error(t, err)
	_, err = NewLocker(store, 0, "worker-a")
	require.Error(t, err)
	_, err = NewLocker(store, time.Minute, "")
	require.Error(t, err)
}
