package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"singluten/internal/directory"
	"singluten/internal/openinghours"
	auth "singluten/internal/platform/middleware/auth"
	"singluten/internal/ratelimit/config"
	"singluten/internal/ratelimit/limiter"
	"singluten/internal/ratelimit/middleware"
	"singluten/internal/ratelimit/store/counter"
)

// Justification for unit tests:
// The router is where the gatekeeping pieces meet: auth, identity and
// address throttles, and the schedule badge all compose here. These tests
// exercise the assembled surface end to end against in-memory stores, the
// closest thing to a production request path that runs without containers.

var testSigningKey = []byte("handler-test-signing-key")

type HandlerSuite struct {
	suite.Suite

	dir    *directory.MemoryDirectory
	router http.Handler
	ready  error
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	// Wednesday 2024-03-06 10:07 in UTC-3.
	s.now = time.Date(2024, 3, 6, 13, 7, 0, 0, time.UTC)
	s.ready = nil

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return s.now }

	engine, err := limiter.New(counter.NewMemory(), counter.NewMemory(),
		limiter.WithLogger(logger),
		limiter.WithClock(clock),
	)
	s.Require().NoError(err)

	cfg := config.DefaultConfig()
	rl := middleware.New(engine, cfg, logger)

	s.dir = directory.NewMemoryDirectory()
	s.dir.AddVenue(directory.Venue{ID: "v1", Name: "Panaderia Sin TACC", Schedule: "Lun a Vie 9-18"})
	s.dir.AddVenue(directory.Venue{ID: "v2", Name: "Bar Nocturno", Schedule: "Cerrado"})
	s.dir.AddVenue(directory.Venue{ID: "v3", Name: "Casa de Pastas", Schedule: "consultar por telefono"})

	h := NewHandler(s.dir, s.dir, s.dir, s.dir, s.dir, openinghours.New(), engine, cfg, logger,
		WithClock(clock),
	)
	s.router = NewRouter(h, auth.Authenticate(testSigningKey), rl, func(*http.Request) error {
		return s.ready
	})
}

func (s *HandlerSuite) token(userID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(testSigningKey)
	s.Require().NoError(err)
	return signed
}

func (s *HandlerSuite) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// === Venue status badge ===

func (s *HandlerSuite) TestVenueStatus_Open() {
	rec := s.do(http.MethodGet, "/venues/v1/status", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	var body venueStatusResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("v1", body.VenueID)
	s.Equal("Panaderia Sin TACC", body.Name)
	s.Equal("open", body.Status)
}

func (s *HandlerSuite) TestVenueStatus_Closed() {
	rec := s.do(http.MethodGet, "/venues/v2/status", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"closed"`)
}

func (s *HandlerSuite) TestVenueStatus_UnknownSchedule() {
	rec := s.do(http.MethodGet, "/venues/v3/status", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"unknown"`)
}

func (s *HandlerSuite) TestVenueStatus_NotFound() {
	rec := s.do(http.MethodGet, "/venues/nope/status", "", nil)

	s.Equal(http.StatusNotFound, rec.Code)
	s.Contains(rec.Body.String(), "venue_not_found")
}

// === Reviews ===

func (s *HandlerSuite) TestCreateReview_RequiresAuth() {
	rec := s.do(http.MethodPost, "/venues/v1/reviews", `{"rating":5}`, nil)

	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestCreateReview_Accepted() {
	rec := s.do(http.MethodPost, "/venues/v1/reviews", `{"rating":4,"comment":"  excelente  "}`, map[string]string{
		"Authorization": "Bearer " + s.token("user-1"),
	})

	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("5", rec.Header().Get("X-RateLimit-Limit"))
	s.Equal("4", rec.Header().Get("X-RateLimit-Remaining"))

	reviews := s.dir.Reviews()
	s.Require().Len(reviews, 1)
	s.Equal("user-1", reviews[0].UserID)
	s.Equal("v1", reviews[0].VenueID)
	s.Equal(4, reviews[0].Rating)
	s.Equal("excelente", reviews[0].Comment)
}

func (s *HandlerSuite) TestCreateReview_InvalidRating() {
	rec := s.do(http.MethodPost, "/venues/v1/reviews", `{"rating":6}`, map[string]string{
		"Authorization": "Bearer " + s.token("user-1"),
	})

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "invalid_rating")
}

func (s *HandlerSuite) TestCreateReview_VenueNotFound() {
	rec := s.do(http.MethodPost, "/venues/nope/reviews", `{"rating":3}`, map[string]string{
		"Authorization": "Bearer " + s.token("user-1"),
	})

	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestCreateReview_ThrottledAtCeiling() {
	headers := map[string]string{"Authorization": "Bearer " + s.token("user-2")}

	for i := 0; i < 5; i++ {
		rec := s.do(http.MethodPost, "/venues/v1/reviews", `{"rating":5}`, headers)
		s.Require().Equal(http.StatusCreated, rec.Code, "request %d should pass", i+1)
	}

	rec := s.do(http.MethodPost, "/venues/v1/reviews", `{"rating":5}`, headers)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Contains(rec.Body.String(), "rate_limit_exceeded")
	s.NotEmpty(rec.Header().Get("Retry-After"))
	s.Len(s.dir.Reviews(), 5)
}

func (s *HandlerSuite) TestCreateReview_QuotaIsPerUser() {
	for i := 0; i < 5; i++ {
		rec := s.do(http.MethodPost, "/venues/v1/reviews", `{"rating":5}`, map[string]string{
			"Authorization": "Bearer " + s.token("user-3"),
		})
		s.Require().Equal(http.StatusCreated, rec.Code)
	}

	rec := s.do(http.MethodPost, "/venues/v1/reviews", `{"rating":5}`, map[string]string{
		"Authorization": "Bearer " + s.token("user-4"),
	})
	s.Equal(http.StatusCreated, rec.Code)
}

// === Contact ===

func (s *HandlerSuite) TestContact_AnonymousAccepted() {
	rec := s.do(http.MethodPost, "/contact", `{"name":"Ana","email":"ana@example.com","message":"hola"}`, map[string]string{
		"X-Forwarded-For": "203.0.113.7",
	})

	s.Equal(http.StatusAccepted, rec.Code)
	s.Require().Len(s.dir.Contacts(), 1)
	s.Equal("Ana", s.dir.Contacts()[0].Name)
}

func (s *HandlerSuite) TestContact_EmptyMessageRejected() {
	rec := s.do(http.MethodPost, "/contact", `{"name":"Ana","message":"   "}`, nil)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Contains(rec.Body.String(), "empty_message")
}

func (s *HandlerSuite) TestContact_AddressThrottled() {
	headers := map[string]string{"X-Forwarded-For": "203.0.113.8"}

	for i := 0; i < 10; i++ {
		rec := s.do(http.MethodPost, "/contact", fmt.Sprintf(`{"message":"mensaje %d"}`, i), headers)
		s.Require().Equal(http.StatusAccepted, rec.Code, "request %d should pass", i+1)
	}

	rec := s.do(http.MethodPost, "/contact", `{"message":"una mas"}`, headers)
	s.Equal(http.StatusTooManyRequests, rec.Code)
}

func (s *HandlerSuite) TestContact_AuthenticatedIdentityQuota() {
	// Rotate addresses on every request; the per-identity quota of 3 per
	// day still catches the fourth message.
	for i := 0; i < 3; i++ {
		rec := s.do(http.MethodPost, "/contact", `{"message":"hola"}`, map[string]string{
			"Authorization":   "Bearer " + s.token("user-5"),
			"X-Forwarded-For": fmt.Sprintf("198.51.100.%d", i+1),
		})
		s.Require().Equal(http.StatusAccepted, rec.Code)
	}

	rec := s.do(http.MethodPost, "/contact", `{"message":"hola"}`, map[string]string{
		"Authorization":   "Bearer " + s.token("user-5"),
		"X-Forwarded-For": "198.51.100.99",
	})
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Contains(rec.Body.String(), "Too many contact messages today")
	s.Len(s.dir.Contacts(), 3)
}

// === Suggestions ===

func (s *HandlerSuite) TestSuggestion_Accepted() {
	rec := s.do(http.MethodPost, "/suggestions", `{"name":"Nueva Confiteria","address":"Av. Siempre Viva 742","schedule":"Lun a Sab 8-20"}`, map[string]string{
		"X-Forwarded-For": "203.0.113.20",
	})

	s.Equal(http.StatusAccepted, rec.Code)
	s.Require().Len(s.dir.Suggestions(), 1)
	s.Equal("Nueva Confiteria", s.dir.Suggestions()[0].Name)
}

func (s *HandlerSuite) TestSuggestion_RequiresName() {
	rec := s.do(http.MethodPost, "/suggestions", `{"address":"sin nombre"}`, nil)

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestSuggestion_AddressThrottled() {
	headers := map[string]string{"X-Forwarded-For": "203.0.113.21"}

	for i := 0; i < 5; i++ {
		rec := s.do(http.MethodPost, "/suggestions", fmt.Sprintf(`{"name":"lugar %d"}`, i), headers)
		s.Require().Equal(http.StatusAccepted, rec.Code)
	}

	rec := s.do(http.MethodPost, "/suggestions", `{"name":"otro"}`, headers)
	s.Equal(http.StatusTooManyRequests, rec.Code)
}

// === Stats ===

func (s *HandlerSuite) TestStats() {
	rec := s.do(http.MethodGet, "/stats", "", map[string]string{
		"X-Forwarded-For": "203.0.113.30",
	})

	s.Equal(http.StatusOK, rec.Code)
	var stats directory.Stats
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &stats))
	s.Equal(3, stats.Venues)
	s.Equal("30", rec.Header().Get("X-RateLimit-Limit"))
}

// === Probes ===

func (s *HandlerSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestReadyz_OK() {
	rec := s.do(http.MethodGet, "/readyz", "", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestReadyz_DependencyDown() {
	s.ready = errors.New("postgres unreachable")

	rec := s.do(http.MethodGet, "/readyz", "", nil)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *HandlerSuite) TestMetricsExposed() {
	rec := s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "go_goroutines")
}
