package archive

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionCleaner_DisabledReturnsNil(t *testing.T) {
	store := newTestStore(t)
	assert.Nil(t, NewRetentionCleaner(store, RetentionConfig{}))
}

func TestRetentionCleaner_StopIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	cleaner := NewRetentionCleaner(store, RetentionConfig{Retention: 24 * time.Hour})
	require.NotNil(t, cleaner)

	cleaner.Stop()
	cleaner.Stop()
}

func TestRetentionCleaner_DeletesExpiredRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(baseTime)

	require.NoError(t, store.InsertBatch(ctx, entryRecords("default",
		entry("stale", baseTime.Add(-48*time.Hour), 50),
		entry("aging", baseTime.Add(-20*time.Hour), 50),
		entry("fresh", baseTime, 50),
	)))

	cleaner := NewRetentionCleaner(store, RetentionConfig{
		Retention: 24 * time.Hour,
		Interval:  time.Hour,
		Clock:     clock,
	})
	require.NotNil(t, cleaner)
	t.Cleanup(cleaner.Stop)

	n, err := store.EntryCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "startup cleanup should remove the stale row")

	clock.Advance(5 * time.Hour)
	require.Eventually(t, func() bool {
		n, err := store.EntryCount(ctx)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
}
