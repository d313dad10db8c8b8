package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/switchboard/internal/logging"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/aretw0/switchboard/pkg/ports"
)

const (
	defaultLockTTL  = 30 * time.Second
	defaultLeaseTTL = 10 * time.Minute
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates thread access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.CheckpointStore

	mu    sync.Mutex            // Global lock for the maps below
	locks map[string]*lockEntry // Per-thread store locks
	runs  map[string]bool       // Threads with an active run lease

	locker   ports.DistributedLocker // Optional distributed locker
	lockTTL  time.Duration
	leaseTTL time.Duration
	logger   *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLockTTL bounds how long a distributed store lock may be held.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLeaseTTL bounds how long a distributed run lease survives a crashed holder.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.leaseTTL = ttl
		}
	}
}

// NewManager creates a new thread Manager with the given checkpoint store.
func NewManager(store ports.CheckpointStore, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		locks:    make(map[string]*lockEntry),
		runs:     make(map[string]bool),
		lockTTL:  defaultLockTTL,
		leaseTTL: defaultLeaseTTL,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(threadID) after unlocking.
func (m *Manager) acquire(threadID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[threadID]
	if !exists {
		entry = &lockEntry{}
		m.locks[threadID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[threadID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, threadID)
	}
}

// Load retrieves a thread's conversation. A thread that was never saved yields an
// empty conversation.
func (m *Manager) Load(ctx context.Context, threadID string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := m.WithLock(ctx, threadID, func(ctx context.Context) error {
		var err error
		conv, err = m.store.Load(ctx, threadID)
		if errors.Is(err, domain.ErrThreadNotFound) {
			conv = domain.Conversation{}
			return nil
		}
		return err
	})
	if err != nil {
		return domain.Conversation{}, &domain.PersistenceError{Op: "load", ThreadID: threadID, Err: err}
	}
	return conv, nil
}

// Exists reports whether the thread has been saved before.
func (m *Manager) Exists(ctx context.Context, threadID string) (bool, error) {
	_, err := m.store.Load(ctx, threadID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrThreadNotFound):
		return false, nil
	}
	return false, &domain.PersistenceError{Op: "load", ThreadID: threadID, Err: err}
}

// Save persists the conversation.
func (m *Manager) Save(ctx context.Context, threadID string, conv domain.Conversation) error {
	err := m.WithLock(ctx, threadID, func(ctx context.Context) error {
		return m.store.Save(ctx, threadID, conv)
	})
	if err != nil {
		return &domain.PersistenceError{Op: "save", ThreadID: threadID, Err: err}
	}
	return nil
}

// Delete removes the thread from the store.
func (m *Manager) Delete(ctx context.Context, threadID string) error {
	return m.WithLock(ctx, threadID, func(ctx context.Context) error {
		return m.store.Delete(ctx, threadID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying checkpoint store.
func (m *Manager) Store() ports.CheckpointStore {
	return m.store
}

// WithLock executes a function while holding the lock for the thread.
func (m *Manager) WithLock(ctx context.Context, threadID string, fn func(context.Context) error) error {
	entry := m.acquire(threadID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(threadID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "state:"+threadID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"thread_id", threadID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Acquire takes the exclusive run lease for a thread. A second caller gets
// domain.ErrThreadBusy until the returned release function is called.
func (m *Manager) Acquire(ctx context.Context, threadID string) (release func(), err error) {
	m.mu.Lock()
	if m.runs[threadID] {
		m.mu.Unlock()
		return nil, domain.ErrThreadBusy
	}
	m.runs[threadID] = true
	m.mu.Unlock()

	local := func() {
		m.mu.Lock()
		delete(m.runs, threadID)
		m.mu.Unlock()
	}

	if m.locker == nil {
		return sync.OnceFunc(local), nil
	}

	if rl, ok := m.locker.(ports.RenewableLocker); ok {
		return m.acquireRenewable(ctx, rl, threadID, local)
	}

	unlock, ok, err := m.locker.TryLock(ctx, "run:"+threadID, m.leaseTTL)
	if err != nil {
		local()
		return nil, fmt.Errorf("failed to acquire run lease: %w", err)
	}
	if !ok {
		local()
		return nil, domain.ErrThreadBusy
	}

	return sync.OnceFunc(func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("Failed to release run lease (will expire via TTL)", "thread_id", threadID, "err", err)
		}
		local()
	}), nil
}

// acquireRenewable takes the distributed run lease and renews it every third of
// leaseTTL until released, so long runs keep their thread.
func (m *Manager) acquireRenewable(ctx context.Context, rl ports.RenewableLocker, threadID string, local func()) (func(), error) {
	unlock, renew, ok, err := rl.TryLockRenewable(ctx, "run:"+threadID, m.leaseTTL)
	if err != nil {
		local()
		return nil, fmt.Errorf("failed to acquire run lease: %w", err)
	}
	if !ok {
		local()
		return nil, domain.ErrThreadBusy
	}

	bg := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(m.leaseTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := renew(bg, m.leaseTTL); err != nil {
					m.logger.Warn("Failed to renew run lease", "thread_id", threadID, "err", err)
				}
			}
		}
	}()

	return sync.OnceFunc(func() {
		close(stop)
		<-done
		if err := unlock(bg); err != nil {
			m.logger.Warn("Failed to release run lease (will expire via TTL)", "thread_id", threadID, "err", err)
		}
		local()
	}), nil
}

// Active reports whether this Manager holds a run lease for the thread.
func (m *Manager) Active(threadID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[threadID]
}
