package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"mosaic/internal/auth"
	"mosaic/internal/http/handlers"
	"mosaic/internal/metrics"
)

type staticVerifier struct{}

func (staticVerifier) Verify(token string) (*auth.Claims, error) {
	if token == "valid" {
		return &auth.Claims{UserID: "u1"}, nil
	}
	return nil, errors.New("invalid")
}

func newTestRouter() http.Handler {
	m := metrics.New()
	app := &handlers.App{Logger: zerolog.Nop()}
	return NewRouter(app, Options{
		Logger:         zerolog.Nop(),
		Verifier:       staticVerifier{},
		Metrics:        m,
		MetricsHandler: m.Handler(),
		AllowedOrigins: []string{"https://app.example.com"},
		DefaultLocale:  "en",
		RateLimit:      100,
	})
}

func TestPublicRoutes(t *testing.T) {
	router := newTestRouter()
	for _, path := range []string{"/v1/healthz", "/v1/plans", "/metrics"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"), path)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter()
	routes := []struct{ method, path string }{
		{http.MethodGet, "/v1/me"},
		{http.MethodGet, "/v1/me/export"},
		{http.MethodPost, "/v1/billing/checkout"},
		{http.MethodPost, "/v1/billing/portal"},
		{http.MethodPost, "/v1/billing/cancel"},
		{http.MethodPost, "/v1/ai/completions"},
	}
	for _, route := range routes {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(route.method, route.path, nil)
		req.Header.Set("Authorization", "Bearer nope")
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, route.path)
	}
}

func TestWebhookIsPublic(t *testing.T) {
	router := newTestRouter()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", strings.NewReader(`{}`)))
	// The app has no billing configured, so the handler itself answers.
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestCompletionsWithoutProviders(t *testing.T) {
	router := newTestRouter()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/ai/completions", strings.NewReader(`{"prompt":"hi"}`))
	req.Header.Set("Authorization", "Bearer valid")
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ai_unavailable"`)
}

func TestPreflight(t *testing.T) {
	router := newTestRouter()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/v1/me", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
