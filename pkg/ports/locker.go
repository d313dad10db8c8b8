package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It allows the Session Manager to coordinate access across multiple instances (replicas).
type DistributedLocker interface {
	// Lock blocks until the lock for key is acquired or ctx is done.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)

	// TryLock makes a single attempt. ok is false when another holder owns the key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock UnlockFunc, ok bool, err error)
}

// RenewFunc pushes the expiry of a held lock ttl into the future.
type RenewFunc func(ctx context.Context, ttl time.Duration) error

// RenewableLocker is implemented by lockers whose locks the holder can keep alive
// past the initial ttl. The Session Manager renews run leases through it.
type RenewableLocker interface {
	TryLockRenewable(ctx context.Context, key string, ttl time.Duration) (unlock UnlockFunc, renew RenewFunc, ok bool, err error)
}
