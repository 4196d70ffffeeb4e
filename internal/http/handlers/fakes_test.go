package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mosaic/internal/auth"
	"mosaic/internal/billing"
	"mosaic/internal/domain"
	"mosaic/internal/middleware"
	"mosaic/internal/providers/ai"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeAuth struct {
	session *auth.Session
	user    *auth.User
	err     error
	calls   []string
	token   string
	redir   string
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string, meta map[string]any) (*auth.Session, *auth.User, error) {
	f.calls = append(f.calls, "signup")
	return f.session, f.user, f.err
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	f.calls = append(f.calls, "signin")
	return f.session, f.err
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	f.calls = append(f.calls, "refresh")
	return f.session, f.err
}

func (f *fakeAuth) SignOut(ctx context.Context, accessToken string) error {
	f.calls = append(f.calls, "signout")
	f.token = accessToken
	return f.err
}

func (f *fakeAuth) SendPasswordReset(ctx context.Context, email, redirectTo string) error {
	f.calls = append(f.calls, "reset")
	f.redir = redirectTo
	return f.err
}

func (f *fakeAuth) UpdatePassword(ctx context.Context, accessToken, newPassword string) (*auth.User, error) {
	f.calls = append(f.calls, "update")
	f.token = accessToken
	return f.user, f.err
}

type memProfiles struct {
	byID map[string]domain.Profile
}

func (m *memProfiles) Upsert(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	cur, ok := m.byID[p.ID]
	if !ok {
		cur = domain.Profile{ID: p.ID, Locale: "en", CreatedAt: fixedNow}
	}
	cur.Email = p.Email
	if p.FullName != "" {
		cur.FullName = p.FullName
	}
	if p.Locale != "" {
		cur.Locale = p.Locale
	}
	m.byID[p.ID] = cur
	return &cur, nil
}

func (m *memProfiles) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	if p, ok := m.byID[id]; ok {
		return &p, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memProfiles) GetByCustomerID(ctx context.Context, customerID string) (*domain.Profile, error) {
	return nil, domain.ErrNotFound
}

func (m *memProfiles) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return nil, domain.ErrNotFound
}

func (m *memProfiles) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	return nil
}

type memSubscriptions struct {
	byUser map[string]domain.Subscription
}

func (m *memSubscriptions) Upsert(ctx context.Context, sub *domain.Subscription) error {
	m.byUser[sub.UserID] = *sub
	return nil
}

func (m *memSubscriptions) GetCurrentByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	if s, ok := m.byUser[userID]; ok {
		return &s, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptions) ListEndedBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]domain.Subscription, error) {
	return nil, nil
}

func (m *memSubscriptions) MarkAccessEndedNotified(ctx context.Context, id string, at time.Time) error {
	return nil
}

type memUsage struct {
	counts map[string]int
}

func (m *memUsage) Get(ctx context.Context, userID string, metric domain.UsageMetric, period string) (int, error) {
	return m.counts[userID+"|"+string(metric)+"|"+period], nil
}

func (m *memUsage) Increment(ctx context.Context, userID string, metric domain.UsageMetric, period string, delta int) (int, error) {
	k := userID + "|" + string(metric) + "|" + period
	m.counts[k] += delta
	return m.counts[k], nil
}

func (m *memUsage) PruneBefore(ctx context.Context, period string) (int64, error) {
	return 0, nil
}

type fakeBilling struct {
	url      string
	err      error
	plan     domain.PlanType
	interval billing.Interval
	result   *billing.WebhookResult
	payload  string
	sig      string
}

func (f *fakeBilling) Checkout(ctx context.Context, user domain.Profile, plan domain.PlanType, interval billing.Interval) (string, error) {
	f.plan, f.interval = plan, interval
	return f.url, f.err
}

func (f *fakeBilling) Portal(ctx context.Context, user domain.Profile) (string, error) {
	return f.url, f.err
}

func (f *fakeBilling) Cancel(ctx context.Context, user domain.Profile) (*domain.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Subscription{ID: "sub_1", Status: domain.SubscriptionActive, CancelAtPeriodEnd: true}, nil
}

func (f *fakeBilling) HandleWebhook(ctx context.Context, payload []byte, signature string) (*billing.WebhookResult, error) {
	f.payload, f.sig = string(payload), signature
	return f.result, f.err
}

type fakeCompletions struct {
	plan domain.Plan
	req  ai.Request
	err  error
}

func (f *fakeCompletions) Complete(ctx context.Context, userID string, plan domain.Plan, req ai.Request) (*ai.MeteredResult, error) {
	f.plan, f.req = plan, req
	if f.err != nil {
		return nil, f.err
	}
	return &ai.MeteredResult{
		Response:  &ai.Response{Text: "hello", Provider: "openai", Model: "gpt-4o-mini"},
		Used:      1,
		Limit:     plan.Limits.MonthlyCompletions,
		Remaining: plan.RemainingCompletions(1),
	}, nil
}

type fakeMailer struct {
	welcomed []string
	err      error
}

func (f *fakeMailer) Welcome(ctx context.Context, profile domain.Profile) error {
	f.welcomed = append(f.welcomed, profile.Email)
	return f.err
}

type testApp struct {
	*App
	auth     *fakeAuth
	profiles *memProfiles
	subs     *memSubscriptions
	usage    *memUsage
	billing  *fakeBilling
	ai       *fakeCompletions
	mailer   *fakeMailer
}

func newTestApp() *testApp {
	t := &testApp{
		auth:     &fakeAuth{},
		profiles: &memProfiles{byID: map[string]domain.Profile{}},
		subs:     &memSubscriptions{byUser: map[string]domain.Subscription{}},
		usage:    &memUsage{counts: map[string]int{}},
		billing:  &fakeBilling{},
		ai:       &fakeCompletions{},
		mailer:   &fakeMailer{},
	}
	t.App = &App{
		Logger:        zerolog.Nop(),
		Auth:          t.auth,
		Profiles:      t.profiles,
		Subscriptions: t.subs,
		Usage:         t.usage,
		Billing:       t.billing,
		AI:            t.ai,
		Mailer:        t.mailer,
		PublicURL:     "https://app.example.com",
		Now:           func() time.Time { return fixedNow },
	}
	return t
}

func request(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func authed(req *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithClaims(req.Context(), &auth.Claims{UserID: userID, Email: userID + "@example.com"})
	return req.WithContext(ctx)
}

func serve(t *testing.T, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}
