package infra

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func loadFrom(t *testing.T, environ map[string]string) *Config {
	t.Helper()
	cfg, err := loadConfig(env.Options{Environment: environ})
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	return cfg
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	if _, err := loadConfig(env.Options{Environment: map[string]string{}}); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfigDefaultPublicURL(t *testing.T) {
	cfg := loadFrom(t, map[string]string{"DATABASE_URL": "postgres://example"})
	if cfg.PublicURL != "http://localhost:8080" {
		t.Fatalf("PublicURL mismatch: got %q", cfg.PublicURL)
	}
	if cfg.HTTPReadTimeout != 15*time.Second {
		t.Fatalf("HTTPReadTimeout mismatch: got %s", cfg.HTTPReadTimeout)
	}
	if cfg.RateLimitPerMin != 60 {
		t.Fatalf("RateLimitPerMin mismatch: got %d", cfg.RateLimitPerMin)
	}
}

func TestLoadConfigInheritsPortInPublicURL(t *testing.T) {
	cfg := loadFrom(t, map[string]string{"DATABASE_URL": "postgres://example", "PORT": "1919"})
	if cfg.PublicURL != "http://localhost:1919" {
		t.Fatalf("PublicURL mismatch: got %q", cfg.PublicURL)
	}
}

func TestLoadConfigTrimsExplicitPublicURL(t *testing.T) {
	cfg := loadFrom(t, map[string]string{
		"DATABASE_URL": "postgres://example",
		"PUBLIC_URL":   "https://app.example.com/",
	})
	if cfg.PublicURL != "https://app.example.com" {
		t.Fatalf("PublicURL mismatch: got %q", cfg.PublicURL)
	}
}

func TestLoadConfigNormalizesFallbackProviders(t *testing.T) {
	cfg := loadFrom(t, map[string]string{
		"DATABASE_URL":          "postgres://example",
		"AI_PRIMARY_PROVIDER":   " Anthropic ",
		"AI_FALLBACK_PROVIDERS": "openai, anthropic,, Gemini,OPENAI",
	})
	if cfg.AIPrimaryProvider != "anthropic" {
		t.Fatalf("AIPrimaryProvider = %q", cfg.AIPrimaryProvider)
	}
	want := []string{"openai", "gemini"}
	if len(cfg.AIFallbackProviders) != len(want) {
		t.Fatalf("AIFallbackProviders = %#v, want %#v", cfg.AIFallbackProviders, want)
	}
	for i := range want {
		if cfg.AIFallbackProviders[i] != want[i] {
			t.Fatalf("AIFallbackProviders[%d] = %q, want %q", i, cfg.AIFallbackProviders[i], want[i])
		}
	}
}

func TestLoadConfigReadsTrustedProxies(t *testing.T) {
	cfg := loadFrom(t, map[string]string{
		"DATABASE_URL":    "postgres://example",
		"TRUSTED_PROXIES": " 10.0.0.0/8 ,, 127.0.0.1",
	})
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" || cfg.TrustedProxies[1] != "127.0.0.1" {
		t.Fatalf("TrustedProxies = %#v", cfg.TrustedProxies)
	}
}

func TestLoadConfigReadsStripePrices(t *testing.T) {
	cfg := loadFrom(t, map[string]string{
		"DATABASE_URL":                   "postgres://example",
		"STRIPE_PRICE_PREMIUM_MONTHLY":   "price_pm",
		"STRIPE_PRICE_ENTERPRISE_YEARLY": "price_ey",
	})
	if cfg.StripePrices.PremiumMonthly != "price_pm" || cfg.StripePrices.EnterpriseYearly != "price_ey" {
		t.Fatalf("StripePrices mismatch: %#v", cfg.StripePrices)
	}
	if cfg.BillingEnabled() {
		t.Fatal("billing should be disabled without stripe keys")
	}
}

func TestValidateAPIListsMissingSupabaseSettings(t *testing.T) {
	cfg := loadFrom(t, map[string]string{"DATABASE_URL": "postgres://example"})
	if err := cfg.ValidateAPI(); err == nil {
		t.Fatal("expected validation error")
	}
	cfg.SupabaseURL = "https://xyz.supabase.co"
	cfg.SupabaseAnonKey = "anon"
	cfg.SupabaseJWTSecret = "secret"
	if err := cfg.ValidateAPI(); err != nil {
		t.Fatalf("ValidateAPI returned error: %v", err)
	}
}

func TestValidateAPIAcceptsJWKSWithoutSecret(t *testing.T) {
	cfg := loadFrom(t, map[string]string{
		"DATABASE_URL":      "postgres://example",
		"SUPABASE_URL":      "https://xyz.supabase.co",
		"SUPABASE_ANON_KEY": "anon",
		"SUPABASE_JWKS":     "true",
	})
	if err := cfg.ValidateAPI(); err != nil {
		t.Fatalf("ValidateAPI returned error: %v", err)
	}
}
