package infra

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	PublicURL   string `env:"PUBLIC_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`

	SupabaseURL       string `env:"SUPABASE_URL"`
	SupabaseAnonKey   string `env:"SUPABASE_ANON_KEY"`
	SupabaseJWTSecret string `env:"SUPABASE_JWT_SECRET"`
	// SupabaseJWKS enables verification of asymmetrically signed tokens.
	SupabaseJWKS bool `env:"SUPABASE_JWKS" envDefault:"false"`

	StripeSecretKey     string       `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string       `env:"STRIPE_WEBHOOK_SECRET"`
	StripePrices        StripePrices `envPrefix:"STRIPE_PRICE_"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	EmailFrom    string `env:"EMAIL_FROM" envDefault:"Mosaic <no-reply@mosaic.local>"`

	AIPrimaryProvider   string   `env:"AI_PRIMARY_PROVIDER" envDefault:"openai"`
	AIFallbackProviders []string `env:"AI_FALLBACK_PROVIDERS" envSeparator:"," envDefault:"anthropic,gemini"`
	OpenAIAPIKey        string   `env:"OPENAI_API_KEY"`
	OpenAIModel         string   `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL       string   `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIOrg           string   `env:"OPENAI_ORG"`
	AnthropicAPIKey     string   `env:"ANTHROPIC_API_KEY"`
	AnthropicModel      string   `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-latest"`
	AnthropicBaseURL    string   `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com/v1"`
	GeminiAPIKey        string   `env:"GEMINI_API_KEY"`
	GeminiModel         string   `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiBaseURL       string   `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`

	GeoIPDBPath        string   `env:"GEOIP_DB_PATH"`
	DefaultLocale      string   `env:"DEFAULT_LOCALE" envDefault:"en"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	TrustedProxies     []string `env:"TRUSTED_PROXIES" envSeparator:","`

	HTTPReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	HTTPIdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	RateLimitPerMin  int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	WorkerGraceSweep  string `env:"WORKER_GRACE_SWEEP" envDefault:"@hourly"`
	WorkerCleanup     string `env:"WORKER_CLEANUP" envDefault:"0 3 * * *"`
	WorkerMetricsAddr string `env:"WORKER_METRICS_ADDR"`
}

// StripePrices maps a plan and billing interval to a Stripe price id.
type StripePrices struct {
	PremiumMonthly    string `env:"PREMIUM_MONTHLY"`
	PremiumYearly     string `env:"PREMIUM_YEARLY"`
	EnterpriseMonthly string `env:"ENTERPRISE_MONTHLY"`
	EnterpriseYearly  string `env:"ENTERPRISE_YEARLY"`
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	return loadConfig(env.Options{})
}

func loadConfig(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if strings.TrimSpace(cfg.PublicURL) == "" {
		cfg.PublicURL = "http://localhost:" + cfg.Port
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	if _, err := url.ParseRequestURI(cfg.PublicURL); err != nil {
		return nil, fmt.Errorf("PUBLIC_URL is invalid: %w", err)
	}

	cfg.AIPrimaryProvider = strings.ToLower(strings.TrimSpace(cfg.AIPrimaryProvider))
	cfg.AIFallbackProviders = cleanList(cfg.AIFallbackProviders, cfg.AIPrimaryProvider)
	for i, name := range cfg.AIFallbackProviders {
		cfg.AIFallbackProviders[i] = strings.ToLower(name)
	}
	cfg.CORSAllowedOrigins = cleanList(cfg.CORSAllowedOrigins, "")
	cfg.TrustedProxies = cleanList(cfg.TrustedProxies, "")

	return &cfg, nil
}

// ValidateAPI reports the settings the HTTP API cannot start without. The
// worker and CLIs only need the database.
func (c *Config) ValidateAPI() error {
	var errs []error
	if strings.TrimSpace(c.SupabaseURL) == "" {
		errs = append(errs, errors.New("SUPABASE_URL is required"))
	}
	if strings.TrimSpace(c.SupabaseAnonKey) == "" {
		errs = append(errs, errors.New("SUPABASE_ANON_KEY is required"))
	}
	if strings.TrimSpace(c.SupabaseJWTSecret) == "" && !c.SupabaseJWKS {
		errs = append(errs, errors.New("SUPABASE_JWT_SECRET is required unless SUPABASE_JWKS is enabled"))
	}
	return errors.Join(errs...)
}

// BillingEnabled reports whether Stripe credentials are configured.
func (c *Config) BillingEnabled() bool {
	return strings.TrimSpace(c.StripeSecretKey) != "" && strings.TrimSpace(c.StripeWebhookSecret) != ""
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// cleanList trims entries and drops blanks, case-insensitive duplicates and skip.
func cleanList(values []string, skip string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, skip) {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
