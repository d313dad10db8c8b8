package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/switchboard/pkg/ports"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

var (
	// ErrLockAcquire is returned when the lock cannot be acquired.
	ErrLockAcquire = errors.New("failed to acquire distributed lock")
	// ErrLockLost is returned when renewing a lock that expired or changed owner.
	ErrLockLost = errors.New("distributed lock lost")
)

// unlockScript deletes the key only while it still holds our token,
// so an expired lock re-acquired by someone else is left alone.
var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// renewScript extends the expiry only while the key still holds our token.
var renewScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Locker implements ports.DistributedLocker using Redis.
type Locker struct {
	client *backend.Client
	prefix string
	poll   time.Duration
}

var (
	_ ports.DistributedLocker = (*Locker)(nil)
	_ ports.RenewableLocker   = (*Locker)(nil)
)

// NewLocker creates a new Redis locker.
func NewLocker(client *backend.Client, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		poll:   100 * time.Millisecond,
	}
}

func (l *Locker) key(key string) string {
	return l.prefix + "lock:" + key
}

// Lock polls SET NX PX until the lock is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		unlock, ok, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return unlock, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// TryLock makes a single SET NX PX attempt.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, bool, error) {
	unlock, _, ok, err := l.TryLockRenewable(ctx, key, ttl)
	return unlock, ok, err
}

// TryLockRenewable is TryLock plus a function that extends the lock while we still own it.
func (l *Locker) TryLockRenewable(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, ports.RenewFunc, bool, error) {
	lockKey := l.key(key)
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, nil, false, fmt.Errorf("%w: %w", ErrLockAcquire, err)
	}
	if !acquired {
		return nil, nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		return unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
	}
	renew := func(ctx context.Context, ttl time.Duration) error {
		n, err := renewScript.Run(ctx, l.client, []string{lockKey}, token, ttl.Milliseconds()).Int()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}
	return unlock, renew, true, nil
}
