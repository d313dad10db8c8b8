package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/switchboard/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "resource1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)

	assert.True(t, mr.Exists("test:lock:resource1"), "Lock key should be set in Redis")

	assert.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:resource1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()
	key := "shared-resource"

	unlock1, err := locker1.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = locker2.Lock(ctxTimeout, key, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.WithinDuration(t, start.Add(500*time.Millisecond), time.Now(), 150*time.Millisecond, "Should block until timeout")

	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	defer unlock2(ctx)

	assert.True(t, mr.Exists("test:lock:shared-resource"))
}

func TestRedisLocker_TryLock(t *testing.T) {
	_, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, ok, err := locker.TryLock(ctx, "thread", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "thread", time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second attempt must not acquire")

	require.NoError(t, unlock(ctx))

	_, ok, err = locker.TryLock(ctx, "thread", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_StaleUnlockKeepsNewOwner(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	staleUnlock, ok, err := locker.TryLock(ctx, "thread", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = locker.TryLock(ctx, "thread", 5*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, staleUnlock(ctx))
	assert.True(t, mr.Exists("test:lock:thread"), "an expired holder must not release the new owner's lock")
}

func TestRedisLocker_Renew(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, renew, ok, err := locker.TryLockRenewable(ctx, "thread", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(800 * time.Millisecond)
	require.NoError(t, renew(ctx, time.Second))
	assert.Equal(t, time.Second, mr.TTL("test:lock:thread"))

	mr.FastForward(2 * time.Second)
	assert.ErrorIs(t, renew(ctx, time.Second), redis.ErrLockLost)
	require.NoError(t, unlock(ctx))
}
