// Package lock provides scoped leases used to serialize multi-step mutations
// on a single resource, such as the gateway-then-local sequences of
// subscription lifecycle commands. A lease is advisory: holders cooperate by
// acquiring before mutating and releasing on every exit path.
package lock

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLockBusy is returned when the lease is held by someone else.
	ErrLockBusy = errors.New("lock is held by another owner")
	// ErrLockLost is returned on release when the lease expired or was taken over.
	ErrLockLost = errors.New("lock was not held at release")
)

// ReleaseFunc releases an acquired lease. Safe to call exactly once;
// implementations return ErrLockLost if the lease already expired.
type ReleaseFunc func(ctx context.Context) error

// Locker grants time-bounded exclusive leases keyed by an arbitrary string.
type Locker interface {
	// Acquire takes the lease for key, or returns ErrLockBusy if held.
	// The lease self-expires after ttl so a crashed holder cannot wedge
	// the resource forever.
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}
