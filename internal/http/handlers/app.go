package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"mosaic/internal/auth"
	"mosaic/internal/billing"
	"mosaic/internal/domain"
	"mosaic/internal/middleware"
	"mosaic/internal/providers/ai"
)

// AuthBackend is the managed auth service.
type AuthBackend interface {
	SignUp(ctx context.Context, email, password string, meta map[string]any) (*auth.Session, *auth.User, error)
	SignIn(ctx context.Context, email, password string) (*auth.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	SendPasswordReset(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, newPassword string) (*auth.User, error)
}

// Billing is the payment adapter surface the API exposes.
type Billing interface {
	Checkout(ctx context.Context, user domain.Profile, plan domain.PlanType, interval billing.Interval) (string, error)
	Portal(ctx context.Context, user domain.Profile) (string, error)
	Cancel(ctx context.Context, user domain.Profile) (*domain.Subscription, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*billing.WebhookResult, error)
}

// Completions runs metered AI completions.
type Completions interface {
	Complete(ctx context.Context, userID string, plan domain.Plan, req ai.Request) (*ai.MeteredResult, error)
}

// WelcomeMailer sends the sign-up email.
type WelcomeMailer interface {
	Welcome(ctx context.Context, profile domain.Profile) error
}

// App carries the dependencies of every handler. Billing and AI are nil when
// their credentials are not configured.
type App struct {
	Logger        zerolog.Logger
	Auth          AuthBackend
	Profiles      domain.ProfileRepository
	Subscriptions domain.SubscriptionRepository
	Usage         domain.UsageRepository
	Billing       Billing
	AI            Completions
	Mailer        WelcomeMailer
	// PublicURL is the dashboard origin used for auth redirects.
	PublicURL string
	Now       func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}

const maxBodyBytes = 1 << 20

// decode reads a JSON body into v, answering 400 itself on failure.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return false
	}
	return true
}
