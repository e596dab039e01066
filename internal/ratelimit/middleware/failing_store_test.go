package middleware

import (
	"context"
	"errors"
	"time"

	"singluten/internal/ratelimit/models"
)

// failingStore simulates an unreachable counter store.
type failingStore struct{}

func (failingStore) Increment(context.Context, string, models.Bucket, time.Time) (int64, error) {
	return 0, errors.New("counter store unreachable")
}

func (failingStore) Count(context.Context, string, models.Bucket, time.Time) (int64, error) {
	return 0, errors.New("counter store unreachable")
}

func (failingStore) Purge(context.Context, time.Time) (int64, error) {
	return 0, errors.New("counter store unreachable")
}
