package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic/internal/auth"
)

type verifierFunc func(string) (*auth.Claims, error)

func (f verifierFunc) Verify(token string) (*auth.Claims, error) { return f(token) }

func TestAuthStoresClaims(t *testing.T) {
	verifier := verifierFunc(func(token string) (*auth.Claims, error) {
		if token != "good" {
			return nil, errors.New("bad token")
		}
		return &auth.Claims{UserID: "user-1", Email: "a@example.com"}, nil
	})
	var seen string
	h := Auth(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	cases := []struct {
		header string
		status int
	}{
		{header: "", status: http.StatusUnauthorized},
		{header: "Basic abc", status: http.StatusUnauthorized},
		{header: "Bearer bad", status: http.StatusUnauthorized},
		{header: "bearer good", status: http.StatusOK},
	}
	for _, tc := range cases {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, tc.status, rr.Code, tc.header)
		if tc.status == http.StatusOK {
			assert.Equal(t, "user-1", seen)
		} else {
			assert.Contains(t, rr.Body.String(), `"unauthorized"`)
		}
	}
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, rr.Header().Get("X-Request-ID"), 36)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/me", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

type observation struct {
	route  string
	method string
	code   int
}

type recordingObserver struct {
	seen []observation
}

func (o *recordingObserver) ObserveHTTP(route, method string, code int, _ time.Duration) {
	o.seen = append(o.seen, observation{route: route, method: method, code: code})
}

func TestMetricsAndLoggerUseRoutePattern(t *testing.T) {
	obs := &recordingObserver{}
	r := chi.NewRouter()
	r.Use(RequestID, Logger(zerolog.Nop()), Metrics(obs))
	r.Get("/v1/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, zerolog.Ctx(r.Context()))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/items/42", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, obs.seen, 1)
	assert.Equal(t, observation{route: "/v1/items/{id}", method: http.MethodGet, code: http.StatusAccepted}, obs.seen[0])
}
