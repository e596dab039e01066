// Package limiter implements the rate limiter engine: it converts a caller
// scope, a quota bucket, and a time window into an allow/deny decision
// backed by persistent counters.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"singluten/internal/platform/middleware/metadata"
	"singluten/internal/ratelimit/config"
	"singluten/internal/ratelimit/metrics"
	"singluten/internal/ratelimit/models"
	"singluten/internal/ratelimit/ports"
)

// Type aliases for shared interfaces.
type (
	CounterStore   = ports.CounterStore
	AuditPublisher = ports.AuditPublisher
)

const (
	scopeIdentity = "identity"
	scopeAddress  = "address"
)

// Service is the engine. It is stateless; all cross-call state lives in the
// counter stores, one per scope so identity and address counters stay in
// physically distinct collections.
type Service struct {
	identity       CounterStore
	address        CounterStore
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	loc            *time.Location
	now            func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocation overrides the reference location used for day boundaries and
// window alignment.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the time source; tests pin windows with it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(identity, address CounterStore, opts ...Option) (*Service, error) {
	if identity == nil {
		return nil, errors.New("identity counter store is required")
	}
	if address == nil {
		return nil, errors.New("address counter store is required")
	}

	svc := &Service{
		identity: identity,
		address:  address,
		tracer:   otel.Tracer("singluten/ratelimit"),
		loc:      time.FixedZone("UTC-3", -3*60*60),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// CheckByIdentity consumes one unit of an identity-scoped quota. The window
// is the current calendar day in the reference location, so "remaining
// today" is exact.
func (s *Service) CheckByIdentity(ctx context.Context, identityID string, bucket models.Bucket, ceiling int) (*models.RateLimitResult, error) {
	if identityID == "" {
		return nil, errors.New("identity id is required")
	}
	windowStart, window := s.window(config.DayWindow)
	return s.check(ctx, s.identity, scopeIdentity, identityID, bucket, ceiling, windowStart, window)
}

// CheckByAddress consumes one unit of an address-scoped quota, resolving
// the caller address from the request headers. Windows are fixed and
// aligned to the reference midnight: with windowMinutes=15 they run
// [00:00,00:15), [00:15,00:30), and so on. A caller straddling a boundary
// consumes two windows' quota; that is the accepted trade-off of fixed
// windows over sliding ones.
func (s *Service) CheckByAddress(ctx context.Context, headers http.Header, bucket models.Bucket, ceiling, windowMinutes int) (*models.RateLimitResult, error) {
	if windowMinutes <= 0 {
		return nil, fmt.Errorf("window minutes must be positive, got %d", windowMinutes)
	}
	address := metadata.ResolveClientAddress(headers)
	windowStart, window := s.window(windowMinutes)
	return s.check(ctx, s.address, scopeAddress, address, bucket, ceiling, windowStart, window)
}

// window returns the start and length of the fixed window covering now.
// windowMinutes of a day or more collapses to the calendar-day window.
func (s *Service) window(windowMinutes int) (time.Time, time.Duration) {
	local := s.now().In(s.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)

	if windowMinutes >= config.DayWindow {
		return midnight, 24 * time.Hour
	}

	window := time.Duration(windowMinutes) * time.Minute
	index := local.Sub(midnight) / window
	return midnight.Add(index * window), window
}

// check runs the shared algorithm: one atomic increment, then compare the
// post-increment count against the ceiling. Store failures propagate so
// callers fail closed; the engine never turns an unreachable store into an
// allow.
func (s *Service) check(
	ctx context.Context,
	store CounterStore,
	scope, scopeKey string,
	bucket models.Bucket,
	ceiling int,
	windowStart time.Time,
	window time.Duration,
) (*models.RateLimitResult, error) {
	if ceiling <= 0 {
		return nil, fmt.Errorf("ceiling must be positive, got %d", ceiling)
	}

	ctx, span := s.tracer.Start(ctx, "ratelimit.check", trace.WithAttributes(
		attribute.String("ratelimit.bucket", bucket.String()),
		attribute.String("ratelimit.scope", scope),
	))
	defer span.End()

	if s.metrics != nil {
		s.metrics.IncrementChecks(bucket.String(), scope)
	}

	count, err := store.Increment(ctx, scopeKey, bucket, windowStart)
	if err != nil {
		span.RecordError(err)
		if s.metrics != nil {
			s.metrics.IncrementStoreFailures()
		}
		return nil, fmt.Errorf("increment %s counter for bucket %q: %w", scope, bucket, err)
	}

	resetAt := windowStart.Add(window)
	result := &models.RateLimitResult{
		Allowed:     count <= int64(ceiling),
		Limit:       ceiling,
		Remaining:   remaining(ceiling, count),
		WindowStart: windowStart,
		ResetAt:     resetAt,
	}

	if !result.Allowed {
		result.RetryAfter = retryAfter(s.now(), resetAt)
		if s.metrics != nil {
			s.metrics.IncrementDenials(bucket.String(), scope)
		}
		ports.LogAudit(ctx, s.logger, s.auditPublisher, "rate_limit_exceeded",
			"scope_key", scopeKey,
			"scope", scope,
			"bucket", bucket.String(),
			"count", count,
			"ceiling", ceiling,
		)
	}

	return result, nil
}

func remaining(ceiling int, count int64) int {
	left := int64(ceiling) - count
	if left < 0 {
		return 0
	}
	return int(left)
}

func retryAfter(now, resetAt time.Time) int {
	seconds := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}
