package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mosaic/internal/adapter/repo"
	"mosaic/internal/auth"
	"mosaic/internal/billing"
	stripegw "mosaic/internal/billing/stripe"
	"mosaic/internal/domain"
	"mosaic/internal/email"
	"mosaic/internal/http/handlers"
	httpapi "mosaic/internal/http/httpapi"
	"mosaic/internal/infra"
	"mosaic/internal/infra/credentials"
	"mosaic/internal/infra/geoip"
	"mosaic/internal/metrics"
	"mosaic/internal/middleware"
	"mosaic/internal/providers/ai"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if err := cfg.ValidateAPI(); err != nil {
		logger.Fatal().Err(err).Msg("api: invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	profiles := repo.NewProfileRepository(runner)
	subscriptions := repo.NewSubscriptionRepository(runner)
	usage := repo.NewUsageRepository(runner)
	events := repo.NewWebhookEventRepository(runner)
	mtr := metrics.New()

	mailer, err := email.NewMailer(newSender(cfg, logger), email.MailerOptions{
		From:      cfg.EmailFrom,
		PublicURL: cfg.PublicURL,
		Logger:    logger,
		OnSend:    mtr.Email,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure mailer")
	}

	authClient, err := auth.NewClient(auth.Options{
		URL:        cfg.SupabaseURL,
		AnonKey:    cfg.SupabaseAnonKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure auth client")
	}
	var verifierOpts []auth.VerifierOption
	if cfg.SupabaseJWKS {
		keys, err := auth.NewKeySet(cfg.SupabaseURL, &http.Client{Timeout: 10 * time.Second})
		if err != nil {
			logger.Fatal().Err(err).Msg("api: failed to configure signing keys")
		}
		verifierOpts = append(verifierOpts, auth.WithKeySet(keys))
	}
	verifier, err := auth.NewVerifier(cfg.SupabaseJWTSecret, verifierOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure token verifier")
	}

	app := &handlers.App{
		Logger:        logger,
		Auth:          authClient,
		Profiles:      profiles,
		Subscriptions: subscriptions,
		Usage:         usage,
		Mailer:        mailer,
		PublicURL:     cfg.PublicURL,
	}

	if cfg.BillingEnabled() {
		gateway, err := stripegw.New(stripegw.Options{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Logger:        logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("api: failed to configure stripe")
		}
		svc, err := billing.NewService(billing.Options{
			Gateway:       gateway,
			Profiles:      profiles,
			Subscriptions: subscriptions,
			Events:        events,
			Notifier:      mailer,
			Prices:        billing.NewPriceBook(cfg.StripePrices),
			PublicURL:     cfg.PublicURL,
			Logger:        logger,
			OnWebhook:     mtr.WebhookEvent,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("api: failed to configure billing")
		}
		app.Billing = svc
	} else {
		logger.Warn().Msg("api: stripe keys missing, billing endpoints disabled")
	}

	if completions := newCompletions(ctx, cfg, runner, usage, mtr, logger); completions != nil {
		app.AI = completions
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("api: geoip database unavailable, country lookup disabled")
	}
	defer resolver.Close()

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: invalid TRUSTED_PROXIES")
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:         logger,
		Verifier:       verifier,
		Metrics:        mtr,
		MetricsHandler: mtr.Handler(),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		DefaultLocale:  cfg.DefaultLocale,
		CountryLookup:  resolver.Lookup(),
		RateLimit:      cfg.RateLimitPerMin,
		TrustedProxies: proxies,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newSender(cfg *infra.Config, logger infra.Logger) email.Sender {
	if cfg.ResendAPIKey == "" {
		logger.Warn().Msg("api: RESEND_API_KEY missing, emails are logged instead of sent")
		return email.LogSender{Logger: logger}
	}
	sender, err := email.NewResendSender(email.ResendOptions{
		APIKey: cfg.ResendAPIKey,
		Retry:  infra.DefaultRetryPolicy(),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure resend")
	}
	return sender
}

// newCompletions returns nil when no AI provider has a key.
func newCompletions(ctx context.Context, cfg *infra.Config, runner *infra.SQLRunner, usage domain.UsageRepository, mtr *metrics.Metrics, logger infra.Logger) *ai.Metered {
	store := credentials.NewStore(runner)
	resolve := func(provider, configured string) string {
		key, err := store.Resolve(ctx, provider, configured)
		if err != nil {
			logger.Warn().Err(err).Str("provider", provider).Msg("api: failed to load provider key from store")
		}
		return key
	}
	warn := func(provider string) func(reason, detail string) {
		return func(reason, detail string) {
			logger.Warn().Str("provider", provider).Str("reason", reason).Str("detail", detail).Msg("api: provider configuration adjusted")
		}
	}
	httpClient := &http.Client{Timeout: 60 * time.Second}

	registry := ai.NewRegistry()
	if key := resolve(credentials.ProviderOpenAI, cfg.OpenAIAPIKey); key != "" {
		p, err := ai.NewOpenAIProvider(ai.Options{
			APIKey:       key,
			Model:        cfg.OpenAIModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
			HTTPClient:   httpClient,
			OnWarning:    warn(credentials.ProviderOpenAI),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("api: failed to configure openai")
		}
		registry.Register(p)
	}
	if key := resolve(credentials.ProviderAnthropic, cfg.AnthropicAPIKey); key != "" {
		p, err := ai.NewAnthropicProvider(ai.Options{
			APIKey:     key,
			Model:      cfg.AnthropicModel,
			BaseURL:    cfg.AnthropicBaseURL,
			HTTPClient: httpClient,
			OnWarning:  warn(credentials.ProviderAnthropic),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("api: failed to configure anthropic")
		}
		registry.Register(p)
	}
	if key := resolve(credentials.ProviderGemini, cfg.GeminiAPIKey); key != "" {
		p, err := ai.NewGeminiProvider(ai.Options{
			APIKey:     key,
			Model:      cfg.GeminiModel,
			BaseURL:    cfg.GeminiBaseURL,
			HTTPClient: httpClient,
			OnWarning:  warn(credentials.ProviderGemini),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("api: failed to configure gemini")
		}
		registry.Register(p)
	}

	svc, err := ai.NewService(registry, ai.ServiceOptions{
		Primary:   cfg.AIPrimaryProvider,
		Fallbacks: cfg.AIFallbackProviders,
		OnFallback: func(provider, reason string, err error) {
			mtr.AIFallback(provider, reason)
			logger.Warn().Err(err).Str("provider", provider).Str("reason", reason).Msg("ai provider failed")
		},
		OnSkip: func(provider string) {
			logger.Warn().Str("provider", provider).Msg("api: ai provider has no key, skipped")
		},
		OnComplete: mtr.AICompletion,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("api: no ai provider configured, completions disabled")
		return nil
	}
	logger.Info().Strs("chain", svc.Chain()).Msg("api: ai provider chain ready")
	return ai.NewMetered(svc, usage, logger)
}
