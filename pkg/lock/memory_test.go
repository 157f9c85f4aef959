package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliopress/folio/pkg/lock"
)

func TestMemoryLocker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		t.Parallel()
		l := lock.NewMemoryLocker()

		release, err := l.Acquire(ctx, "sub-1", time.Minute)
		require.NoError(t, err)
		require.NoError(t, release(ctx))

		// Free again after release.
		release2, err := l.Acquire(ctx, "sub-1", time.Minute)
		require.NoError(t, err)
		require.NoError(t, release2(ctx))
	})

	t.Run("second acquire while held is busy", func(t *testing.T) {
		t.Parallel()
		l := lock.NewMemoryLocker()

		release, err := l.Acquire(ctx, "sub-2", time.Minute)
		require.NoError(t, err)
		defer func() { _ = release(ctx) }()

		_, err = l.Acquire(ctx, "sub-2", time.Minute)
		assert.ErrorIs(t, err, lock.ErrLockBusy)
	})

	t.Run("different keys do not contend", func(t *testing.T) {
		t.Parallel()
		l := lock.NewMemoryLocker()

		r1, err := l.Acquire(ctx, "sub-a", time.Minute)
		require.NoError(t, err)
		r2, err := l.Acquire(ctx, "sub-b", time.Minute)
		require.NoError(t, err)

		require.NoError(t, r1(ctx))
		require.NoError(t, r2(ctx))
	})

	t.Run("expired lease can be re-acquired", func(t *testing.T) {
		t.Parallel()
		l := lock.NewMemoryLocker()

		stale, err := l.Acquire(ctx, "sub-3", time.Millisecond)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		release, err := l.Acquire(ctx, "sub-3", time.Minute)
		require.NoError(t, err)
		defer func() { _ = release(ctx) }()

		// The stale holder's release must not free the new lease.
		assert.ErrorIs(t, stale(ctx), lock.ErrLockLost)
	})
}
