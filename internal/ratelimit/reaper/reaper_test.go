package reaper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"singluten/internal/ratelimit/models"
	"singluten/internal/ratelimit/ports"
	"singluten/internal/ratelimit/store/counter"
)

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := New(0, logger, []ports.CounterStore{counter.NewMemory()})
	assert.Error(t, err)

	_, err = New(time.Hour, logger, nil)
	assert.Error(t, err)
}

func TestSweep_PurgesExpiredCounters(t *testing.T) {
	ctx := context.Background()
	store := counter.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	stale := now.Add(-8 * 24 * time.Hour)
	fresh := now.Add(-time.Hour)

	_, err := store.Increment(ctx, "old", models.BucketStats, stale)
	require.NoError(t, err)
	_, err = store.Increment(ctx, "new", models.BucketStats, fresh)
	require.NoError(t, err)

	r, err := New(7*24*time.Hour, logger, []ports.CounterStore{store},
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	r.Sweep(ctx)

	count, err := store.Count(ctx, "old", models.BucketStats, stale)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = store.Count(ctx, "new", models.BucketStats, fresh)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
