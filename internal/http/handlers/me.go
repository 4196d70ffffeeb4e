package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mosaic/internal/domain"
	"mosaic/internal/middleware"
	"mosaic/internal/subscription"
	"mosaic/pkg/zip"
)

type usageDTO struct {
	Period               string `json:"period"`
	Completions          int    `json:"completions"`
	Tokens               int    `json:"tokens"`
	CompletionsLimit     int    `json:"completions_limit"`
	CompletionsRemaining int    `json:"completions_remaining"`
}

type meResponse struct {
	Profile  domain.Profile      `json:"profile"`
	Access   subscription.Access `json:"access"`
	Plan     domain.Plan         `json:"plan"`
	Usage    usageDTO            `json:"usage"`
	Features []domain.Feature    `json:"features"`
}

// account is the state every authenticated handler starts from.
type account struct {
	profile *domain.Profile
	sub     *domain.Subscription
	access  subscription.Access
	plan    domain.Plan
}

// loadAccount reads the caller's profile and subscription. A missing profile
// is created from the token claims, covering users created outside sign up.
func (a *App) loadAccount(ctx context.Context) (*account, error) {
	claims := middleware.ClaimsFromContext(ctx)
	if claims == nil || claims.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	profile, err := a.Profiles.GetByID(ctx, claims.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		profile, err = a.Profiles.Upsert(ctx, &domain.Profile{
			ID:     claims.UserID,
			Email:  claims.Email,
			Locale: middleware.LocaleFromContext(ctx),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	sub, err := a.Subscriptions.GetCurrentByUserID(ctx, claims.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	access := subscription.Evaluate(sub, a.now())
	return &account{profile: profile, sub: sub, access: access, plan: access.Limits()}, nil
}

func (a *App) loadUsage(ctx context.Context, acct *account) (usageDTO, error) {
	period := domain.UsagePeriod(a.now())
	completions, err := a.Usage.Get(ctx, acct.profile.ID, domain.MetricCompletions, period)
	if err != nil {
		return usageDTO{}, fmt.Errorf("load completions usage: %w", err)
	}
	tokens, err := a.Usage.Get(ctx, acct.profile.ID, domain.MetricTokens, period)
	if err != nil {
		return usageDTO{}, fmt.Errorf("load token usage: %w", err)
	}
	return usageDTO{
		Period:               period,
		Completions:          completions,
		Tokens:               tokens,
		CompletionsLimit:     acct.plan.Limits.MonthlyCompletions,
		CompletionsRemaining: acct.plan.RemainingCompletions(completions),
	}, nil
}

// Me returns the dashboard summary for the caller.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	acct, err := a.loadAccount(r.Context())
	if err != nil {
		a.fail(w, r, err, "load account")
		return
	}
	usage, err := a.loadUsage(r.Context(), acct)
	if err != nil {
		a.fail(w, r, err, "load usage")
		return
	}
	a.json(w, http.StatusOK, meResponse{
		Profile:  *acct.profile,
		Access:   acct.access,
		Plan:     acct.plan,
		Usage:    usage,
		Features: acct.plan.Features,
	})
}

// Export streams a zip with the caller's profile, subscription and usage.
func (a *App) Export(w http.ResponseWriter, r *http.Request) {
	acct, err := a.loadAccount(r.Context())
	if err != nil {
		a.fail(w, r, err, "load account")
		return
	}
	if !acct.plan.HasFeature(domain.FeatureDataExport) {
		a.fail(w, r, fmt.Errorf("%w: %s", domain.ErrFeatureUnavailable, domain.FeatureDataExport), "export denied")
		return
	}
	usage, err := a.loadUsage(r.Context(), acct)
	if err != nil {
		a.fail(w, r, err, "load usage")
		return
	}

	now := a.now().UTC()
	docs := []struct {
		name string
		v    any
	}{
		{"profile.json", acct.profile},
		{"subscription.json", map[string]any{"subscription": acct.sub, "access": acct.access}},
		{"usage.json", usage},
	}
	entries := make([]zip.Entry, 0, len(docs))
	for _, doc := range docs {
		entry, err := zip.JSONEntry(doc.name, doc.v, now)
		if err != nil {
			a.fail(w, r, err, "encode export")
			return
		}
		entries = append(entries, entry)
	}
	data, err := zip.Archive(entries)
	if err != nil {
		a.fail(w, r, err, "build export archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="mosaic-export-%s.zip"`, now.Format(time.DateOnly)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
