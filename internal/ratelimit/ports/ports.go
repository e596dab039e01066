// Package ports defines shared interfaces for the ratelimit module.
// Interfaces are placed here when consumed by multiple packages to avoid
// duplication.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks CounterStore,AuditPublisher

import (
	"context"
	"log/slog"
	"time"

	"singluten/internal/audit"
	"singluten/internal/ratelimit/models"
)

// CounterStore persists fixed-window rate counters. Implementations must
// provide the one correctness-critical concurrency contract of the engine:
// Increment is an atomic find-or-create-and-increment, so two concurrent
// calls for the same key can never both observe a count below the ceiling
// when the true post-increment count exceeds it.
type CounterStore interface {
	// Increment adds one to the counter for (scopeKey, bucket, windowStart),
	// creating it at 1 on first use, and returns the post-increment count.
	Increment(ctx context.Context, scopeKey string, bucket models.Bucket, windowStart time.Time) (int64, error)

	// Count returns the current count for the key, 0 when no counter exists.
	Count(ctx context.Context, scopeKey string, bucket models.Bucket, windowStart time.Time) (int64, error)

	// Purge removes counters whose window started before cutoff and returns
	// how many were removed. Stores with native TTLs may make this a no-op.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditPublisher emits audit events for security-relevant decisions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit is a shared helper for recording audit-worthy events across the
// ratelimit packages. It logs to the structured logger and forwards to the
// audit publisher when one is configured.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event string, attrs ...any) {
	args := append(attrs, "event", event, "log_type", "audit")

	if logger != nil {
		logger.InfoContext(ctx, event, args...)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, audit.NewEvent(event, attrs...)); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event, "error", err)
	}
}
