// Package reaper deletes rate counters past their retention period so the
// counter collections do not grow unbounded.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"singluten/internal/ratelimit/ports"
)

type Reaper struct {
	stores    []ports.CounterStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Reaper)

// WithInterval overrides how often the reaper sweeps.
func WithInterval(interval time.Duration) Option {
	return func(r *Reaper) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithClock overrides the time source; tests pin cutoffs with it.
func WithClock(now func() time.Time) Option {
	return func(r *Reaper) {
		if now != nil {
			r.now = now
		}
	}
}

func New(retention time.Duration, logger *slog.Logger, stores []ports.CounterStore, opts ...Option) (*Reaper, error) {
	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	if len(stores) == 0 {
		return nil, errors.New("at least one counter store is required")
	}

	r := &Reaper{
		stores:    stores,
		retention: retention,
		interval:  time.Hour,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run sweeps on a fixed interval until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep purges every store once. Store errors are logged and do not stop
// the sweep; a failed purge retries on the next tick.
func (r *Reaper) Sweep(ctx context.Context) {
	cutoff := r.now().Add(-r.retention)
	for _, store := range r.stores {
		removed, err := store.Purge(ctx, cutoff)
		if err != nil {
			if r.logger != nil {
				r.logger.ErrorContext(ctx, "counter purge failed", "error", err)
			}
			continue
		}
		if removed > 0 && r.logger != nil {
			r.logger.InfoContext(ctx, "purged expired rate counters",
				"removed", removed, "cutoff", cutoff)
		}
	}
}
