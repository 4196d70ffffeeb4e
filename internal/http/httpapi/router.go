package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"mosaic/internal/http/handlers"
	"mosaic/internal/middleware"
)

// Options configures the cross-cutting middleware.
type Options struct {
	Logger         zerolog.Logger
	Verifier       middleware.TokenVerifier
	Metrics        middleware.HTTPObserver
	MetricsHandler http.Handler
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	// RateLimit is requests per minute per client; zero disables limiting.
	RateLimit int
	// TrustedProxies may set X-Forwarded-For for rate limit keys.
	TrustedProxies middleware.TrustedProxies
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
	)
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
	}
	r.Use(
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/plans", app.Plans)

		// Signed by the processor, never rate limited.
		r.Post("/webhooks/stripe", app.StripeWebhook)

		r.Group(func(r chi.Router) {
			limit(r, opts)
			r.Route("/auth", func(r chi.Router) {
				r.Post("/signup", app.SignUp)
				r.Post("/signin", app.SignIn)
				r.Post("/refresh", app.Refresh)
				r.Post("/signout", app.SignOut)
				r.Post("/password/reset", app.RequestPasswordReset)
				r.Post("/password/update", app.UpdatePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(opts.Verifier))
			limit(r, opts)

			r.Get("/me", app.Me)
			r.Get("/me/export", app.Export)

			r.Route("/billing", func(r chi.Router) {
				r.Post("/checkout", app.Checkout)
				r.Post("/portal", app.Portal)
				r.Post("/cancel", app.CancelSubscription)
			})

			r.Post("/ai/completions", app.Completion)
		})
	})

	return r
}

func limit(r chi.Router, opts Options) {
	if opts.RateLimit > 0 {
		r.Use(middleware.RateLimit(opts.RateLimit, time.Minute, opts.TrustedProxies))
	}
}
