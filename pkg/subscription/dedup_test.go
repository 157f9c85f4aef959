package subscription_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliopress/folio/pkg/subscription"
)

func TestMemoryEventStore_MarkProcessed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryEventStore()

	fresh, err := store.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = store.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, fresh)

	fresh, err = store.MarkProcessed(ctx, "evt_2")
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestMemoryEventStore_Forget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryEventStore()

	fresh, err := store.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, fresh)

	require.NoError(t, store.Forget(ctx, "evt_1"))

	// A forgotten id reads as fresh again, so a redelivery is processed.
	fresh, err = store.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, fresh)

	// Forgetting an unknown id is a no-op.
	require.NoError(t, store.Forget(ctx, "evt_never_seen"))
}

func TestMemoryEventStore_ConcurrentSameID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryEventStore()

	const workers = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		total int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fresh, err := store.MarkProcessed(ctx, "evt_race")
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			total++
			if fresh {
				wins++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, total)
	// Exactly one caller observes the id as fresh.
	assert.Equal(t, 1, wins)
}
