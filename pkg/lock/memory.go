package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker implements Locker for tests and single-process deployments.
// Leases expire lazily: an expired entry is treated as free on the next
// Acquire for the same key.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryLease
}

type memoryLease struct {
	token     uint64
	expiresAt time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]memoryLease)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if lease, held := l.leases[key]; held && now.Before(lease.expiresAt) {
		return nil, ErrLockBusy
	}

	token := newToken()
	l.leases[key] = memoryLease{token: token, expiresAt: now.Add(ttl)}

	release := func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()

		lease, held := l.leases[key]
		if !held || lease.token != token || time.Now().After(lease.expiresAt) {
			return ErrLockLost
		}
		delete(l.leases, key)
		return nil
	}

	return release, nil
}

var (
	tokenMu   sync.Mutex
	tokenSeed uint64
)

func newToken() uint64 {
	tokenMu.Lock()
	defer tokenMu.Unlock()
	tokenSeed++
	return tokenSeed
}
