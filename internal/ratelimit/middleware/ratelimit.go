package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"singluten/internal/platform/httputil"
	auth "singluten/internal/platform/middleware/auth"
	"singluten/internal/ratelimit/config"
	"singluten/internal/ratelimit/models"
)

// RateLimiter is the engine surface the middleware depends on.
type RateLimiter interface {
	CheckByIdentity(ctx context.Context, identityID string, bucket models.Bucket, ceiling int) (*models.RateLimitResult, error)
	CheckByAddress(ctx context.Context, headers http.Header, bucket models.Bucket, ceiling, windowMinutes int) (*models.RateLimitResult, error)
}

type Middleware struct {
	limiter  RateLimiter
	cfg      *config.Config
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(limiter RateLimiter, cfg *config.Config, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
	if m.cfg == nil {
		m.cfg = config.DefaultConfig()
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// LimitByAddress throttles a route on the caller address. Unidentifiable
// callers share the "unknown" counter and under-throttle rather than
// blocking everyone behind an uncooperative proxy.
func (m *Middleware) LimitByAddress(bucket models.Bucket) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			limit, ok := m.cfg.AddressLimit(bucket)
			if !ok {
				// Default-deny: an unconfigured bucket is a wiring bug, not
				// an open gate.
				m.logger.Error("no address limit configured for bucket", "bucket", bucket)
				writeRateLimitExceeded(w, &models.RateLimitResult{RetryAfter: 60})
				return
			}

			result, err := m.limiter.CheckByAddress(r.Context(), r.Header, bucket, limit.Ceiling, limit.WindowMinutes)
			if err != nil {
				// Fail closed: an unreachable counter store must never turn
				// into an allow.
				m.logger.Error("rate limit check failed", "bucket", bucket, "error", err)
				writeStoreUnavailable(w)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimitByIdentity throttles a route on the authenticated user. Routes using
// it must sit behind auth.RequireUser; anonymous requests are rejected here
// as a backstop.
func (m *Middleware) LimitByIdentity(bucket models.Bucket) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			userID := auth.GetUserID(r.Context())
			if userID == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			limit, ok := m.cfg.IdentityLimit(bucket)
			if !ok {
				m.logger.Error("no identity limit configured for bucket", "bucket", bucket)
				writeRateLimitExceeded(w, &models.RateLimitResult{RetryAfter: 60})
				return
			}

			result, err := m.limiter.CheckByIdentity(r.Context(), userID, bucket, limit.Ceiling)
			if err != nil {
				m.logger.Error("rate limit check failed", "bucket", bucket, "error", err)
				writeStoreUnavailable(w)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		Remaining:  result.Remaining,
		RetryAfter: result.RetryAfter,
	})
}

func writeStoreUnavailable(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusServiceUnavailable, &models.StoreUnavailableResponse{
		Error:   "service_unavailable",
		Message: "Request admission is temporarily unavailable. Please try again later.",
	})
}
