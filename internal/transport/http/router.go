package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	auth "singluten/internal/platform/middleware/auth"
	"singluten/internal/platform/middleware/metadata"
	"singluten/internal/ratelimit/middleware"
	"singluten/internal/ratelimit/models"
)

// ReadyCheck reports whether a downstream dependency is reachable.
type ReadyCheck func(r *http.Request) error

// NewRouter assembles the public surface. Every mutating route sits behind
// either a per-identity or a per-address throttle; the venue status badge
// and health probes are unthrottled reads.
func NewRouter(h *Handler, authenticate func(http.Handler) http.Handler, rl *middleware.Middleware, ready ReadyCheck) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(metadata.ClientMetadata)
	r.Use(authenticate)

	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if ready != nil {
			if err := ready(req); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/venues/{venueID}/status", h.handleVenueStatus)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Use(rl.LimitByIdentity(models.BucketReview))
		r.Post("/venues/{venueID}/reviews", h.handleCreateReview)
	})

	r.Group(func(r chi.Router) {
		r.Use(rl.LimitByAddress(models.BucketContactIP))
		r.Post("/contact", h.handleContact)
	})

	r.Group(func(r chi.Router) {
		r.Use(rl.LimitByAddress(models.BucketSuggestion))
		r.Post("/suggestions", h.handleSuggestion)
	})

	r.Group(func(r chi.Router) {
		r.Use(rl.LimitByAddress(models.BucketStats))
		r.Get("/stats", h.handleStats)
	})

	return r
}
