package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/switchboard/pkg/domain"
)

// MockStore accepts everything.
type MockStore struct{}

func (m *MockStore) Save(ctx context.Context, threadID string, conv domain.Conversation) error {
	return nil
}
func (m *MockStore) Load(ctx context.Context, threadID string) (domain.Conversation, error) {
	return domain.Conversation{}, nil
}
func (m *MockStore) Delete(ctx context.Context, threadID string) error { return nil }
func (m *MockStore) List(ctx context.Context) ([]string, error)        { return nil, nil }

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(&MockStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		tid := fmt.Sprintf("thread-%d", i)
		_ = mgr.Save(ctx, tid, domain.Conversation{})
		_ = mgr.Delete(ctx, tid)
	}

	lockCount := len(mgr.locks)
	if lockCount != 0 {
		t.Errorf("Memory Leak Detected: %d locks remaining in memory after Delete", lockCount)
	}
}

func TestManager_LeaseLifecycle(t *testing.T) {
	mgr := NewManager(&MockStore{})
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		release, err := mgr.Acquire(ctx, fmt.Sprintf("thread-%d", i))
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		release()
	}

	if n := len(mgr.runs); n != 0 {
		t.Errorf("%d run leases remaining after release", n)
	}
}
