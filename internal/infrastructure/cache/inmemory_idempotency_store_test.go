package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *InMemoryIdempotencyStore {
	t.Helper()
	store := NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInMemoryIdempotencyStoreMarkProcessed(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	t.Run("first delivery wins", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "evt-hubspot-001", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("redelivery is flagged as duplicate", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "evt-hubspot-002", time.Hour)
		require.NoError(t, err)
		require.True(t, isNew)

		isNew, err = store.MarkProcessed(ctx, "evt-hubspot-002", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
	})

	t.Run("event becomes new again after its TTL", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "evt-hubspot-003", 10*time.Millisecond)
		require.NoError(t, err)
		require.True(t, isNew)

		time.Sleep(20 * time.Millisecond)

		isNew, err = store.MarkProcessed(ctx, "evt-hubspot-003", 10*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, isNew)
	})
}

func TestInMemoryIdempotencyStoreIsProcessed(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	t.Run("unknown event", func(t *testing.T) {
		processed, err := store.IsProcessed(ctx, "evt-never-seen")
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("recorded event", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "evt-recorded", time.Hour)
		require.NoError(t, err)

		processed, err := store.IsProcessed(ctx, "evt-recorded")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("expired event", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "evt-expired", 10*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(20 * time.Millisecond)

		processed, err := store.IsProcessed(ctx, "evt-expired")
		require.NoError(t, err)
		assert.False(t, processed)
	})
}

func TestInMemoryIdempotencyStoreSize(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	assert.Equal(t, 0, store.Size())

	store.MarkProcessed(ctx, "evt-1", time.Hour)
	store.MarkProcessed(ctx, "evt-2", time.Hour)
	assert.Equal(t, 2, store.Size())

	// A duplicate does not grow the store.
	store.MarkProcessed(ctx, "evt-1", time.Hour)
	assert.Equal(t, 2, store.Size())
}

func TestInMemoryIdempotencyStoreCleanup(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	store.MarkProcessed(ctx, "evt-short-1", 10*time.Millisecond)
	store.MarkProcessed(ctx, "evt-short-2", 10*time.Millisecond)
	store.MarkProcessed(ctx, "evt-long", time.Hour)
	require.Equal(t, 3, store.Size())

	time.Sleep(20 * time.Millisecond)
	store.cleanup()

	assert.Equal(t, 1, store.Size())

	processed, err := store.IsProcessed(ctx, "evt-long")
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = store.IsProcessed(ctx, "evt-short-1")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStoreConcurrentAccess(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	const workers = 100
	results := make(chan bool, workers)

	// Every worker races to claim the same event ID.
	for i := 0; i < workers; i++ {
		go func() {
			isNew, err := store.MarkProcessed(ctx, "evt-contested", time.Hour)
			results <- err == nil && isNew
		}()
	}

	newCount := 0
	for i := 0; i < workers; i++ {
		if <-results {
			newCount++
		}
	}

	assert.Equal(t, 1, newCount, "exactly one worker should claim the event")
}

func TestInMemoryIdempotencyStoreClose(t *testing.T) {
	store := NewInMemoryIdempotencyStore()

	assert.NoError(t, store.Close())
	// Closing twice must stay safe.
	assert.NoError(t, store.Close())
}
