// Package httpapi is the thin HTTP layer over the gatekeeping core. It
// delegates persistence to the directory ports so transport concerns stay
// isolated from the services that own venues, reviews, and messages.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"singluten/internal/directory"
	"singluten/internal/openinghours"
	"singluten/internal/platform/httputil"
	auth "singluten/internal/platform/middleware/auth"
	"singluten/internal/ratelimit/config"
	"singluten/internal/ratelimit/middleware"
	"singluten/internal/ratelimit/models"
)

type Handler struct {
	venues      directory.VenueDirectory
	reviews     directory.ReviewSink
	contacts    directory.ContactSink
	suggestions directory.SuggestionSink
	stats       directory.StatsProvider
	hours       *openinghours.Evaluator
	limiter     middleware.RateLimiter
	cfg         *config.Config
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Handler)

// WithClock overrides the time source used for schedule evaluation.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHandler(
	venues directory.VenueDirectory,
	reviews directory.ReviewSink,
	contacts directory.ContactSink,
	suggestions directory.SuggestionSink,
	stats directory.StatsProvider,
	hours *openinghours.Evaluator,
	limiter middleware.RateLimiter,
	cfg *config.Config,
	logger *slog.Logger,
	opts ...Option,
) *Handler {
	h := &Handler{
		venues:      venues,
		reviews:     reviews,
		contacts:    contacts,
		suggestions: suggestions,
		stats:       stats,
		hours:       hours,
		limiter:     limiter,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type venueStatusResponse struct {
	VenueID string `json:"venue_id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
}

// handleVenueStatus annotates a venue with its open/closed badge. An
// uninterpretable schedule renders as "unknown", never as open or closed.
func (h *Handler) handleVenueStatus(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueID")

	venue, err := h.venues.GetVenue(r.Context(), venueID)
	if err != nil {
		if errors.Is(err, directory.ErrVenueNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "venue_not_found", "")
			return
		}
		h.logger.Error("failed to load venue", "venue_id", venueID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	status := h.hours.Evaluate(venue.Schedule, h.now())
	httputil.WriteJSON(w, http.StatusOK, venueStatusResponse{
		VenueID: venue.ID,
		Name:    venue.Name,
		Status:  status.String(),
	})
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	venueID := chi.URLParam(r, "venueID")
	userID := auth.GetUserID(r.Context())

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_body", "")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_rating", "rating must be between 1 and 5")
		return
	}

	if _, err := h.venues.GetVenue(r.Context(), venueID); err != nil {
		if errors.Is(err, directory.ErrVenueNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "venue_not_found", "")
			return
		}
		h.logger.Error("failed to load venue", "venue_id", venueID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	review := directory.Review{
		VenueID:   venueID,
		UserID:    userID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		CreatedAt: h.now(),
	}
	if err := h.reviews.SubmitReview(r.Context(), review); err != nil {
		h.logger.Error("failed to submit review", "venue_id", venueID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	w.WriteHeader(http.StatusCreated)
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// handleContact relays a contact message. The route is throttled per
// address; authenticated senders additionally consume their per-identity
// contact quota so a logged-in caller cannot rotate addresses around it.
func (h *Handler) handleContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_body", "")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		httputil.WriteError(w, http.StatusBadRequest, "empty_message", "message is required")
		return
	}

	if userID := auth.GetUserID(r.Context()); userID != "" {
		limit, ok := h.cfg.IdentityLimit(models.BucketContact)
		if ok {
			result, err := h.limiter.CheckByIdentity(r.Context(), userID, models.BucketContact, limit.Ceiling)
			if err != nil {
				h.logger.Error("contact rate limit check failed", "error", err)
				httputil.WriteError(w, http.StatusServiceUnavailable, "service_unavailable", "")
				return
			}
			if !result.Allowed {
				httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
					Error:      "rate_limit_exceeded",
					Message:    "Too many contact messages today. Please try again tomorrow.",
					RetryAfter: result.RetryAfter,
				})
				return
			}
		}
	}

	message := directory.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Message: strings.TrimSpace(req.Message),
	}
	if err := h.contacts.SubmitContact(r.Context(), message); err != nil {
		h.logger.Error("failed to relay contact message", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type suggestionRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Schedule string `json:"schedule"`
}

func (h *Handler) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	var req suggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_body", "")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httputil.WriteError(w, http.StatusBadRequest, "empty_name", "venue name is required")
		return
	}

	suggestion := directory.Suggestion{
		Name:     strings.TrimSpace(req.Name),
		Address:  strings.TrimSpace(req.Address),
		Schedule: strings.TrimSpace(req.Schedule),
	}
	if err := h.suggestions.SubmitSuggestion(r.Context(), suggestion); err != nil {
		h.logger.Error("failed to submit suggestion", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to load stats", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
