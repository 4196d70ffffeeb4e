package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic/internal/domain"
	"mosaic/internal/infra"
)

var testPrices = infra.StripePrices{
	PremiumMonthly:    "price_premium_m",
	PremiumYearly:     "price_premium_y",
	EnterpriseMonthly: "price_ent_m",
}

type harness struct {
	svc      *Service
	gateway  *fakeGateway
	profiles *memProfiles
	subs     *memSubscriptions
	events   *memEvents
	notifier *recordingNotifier
	outcomes []string
}

func newHarness(t *testing.T, profiles []domain.Profile, subs ...domain.Subscription) *harness {
	t.Helper()
	h := &harness{
		gateway:  &fakeGateway{subscriptions: map[string]*SubscriptionSnapshot{}},
		profiles: newMemProfiles(profiles...),
		subs:     newMemSubscriptions(subs...),
		events:   newMemEvents(),
		notifier: &recordingNotifier{},
	}
	svc, err := NewService(Options{
		Gateway:       h.gateway,
		Profiles:      h.profiles,
		Subscriptions: h.subs,
		Events:        h.events,
		Notifier:      h.notifier,
		Prices:        NewPriceBook(testPrices),
		PublicURL:     "https://app.example.com/",
		Retry:         infra.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		Logger:        zerolog.Nop(),
		OnWebhook: func(eventType, outcome string) {
			h.outcomes = append(h.outcomes, eventType+":"+outcome)
		},
		Now: func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

var ana = domain.Profile{ID: "u1", Email: "ana@example.com", FullName: "Ana", Locale: "es"}

func TestNewServiceRequiresGateway(t *testing.T) {
	_, err := NewService(Options{})
	assert.ErrorIs(t, err, domain.ErrBillingNotConfigured)
}

func TestCheckoutCreatesCustomerOnce(t *testing.T) {
	h := newHarness(t, []domain.Profile{ana})
	ctx := context.Background()

	url, err := h.svc.Checkout(ctx, ana, domain.PlanPremium, IntervalYear)
	require.NoError(t, err)
	assert.Contains(t, url, "checkout.stripe.com")
	assert.Equal(t, "price_premium_y", h.gateway.checkout.PriceID)
	assert.Equal(t, "cus_new", h.gateway.checkout.CustomerID)
	assert.Equal(t, "u1", h.gateway.checkout.UserID)
	assert.Equal(t, "https://app.example.com/dashboard/billing?checkout=success", h.gateway.checkout.SuccessURL)

	linked, _ := h.profiles.GetByID(ctx, "u1")
	assert.Equal(t, "cus_new", linked.StripeCustomerID)

	_, err = h.svc.Checkout(ctx, *linked, domain.PlanPremium, IntervalMonth)
	require.NoError(t, err)
	assert.Equal(t, 1, h.gateway.customerCalls)
}

func TestCheckoutRejects(t *testing.T) {
	live := domain.Subscription{ID: "sub_1", UserID: "u1", Plan: domain.PlanPremium, Status: domain.SubscriptionActive}
	h := newHarness(t, []domain.Profile{ana})
	ctx := context.Background()

	_, err := h.svc.Checkout(ctx, ana, domain.PlanFree, IntervalMonth)
	assert.ErrorIs(t, err, domain.ErrUnsupportedPlan)

	_, err = h.svc.Checkout(ctx, ana, domain.PlanEnterprise, IntervalYear)
	assert.ErrorIs(t, err, domain.ErrBillingNotConfigured)

	h2 := newHarness(t, []domain.Profile{ana}, live)
	_, err = h2.svc.Checkout(ctx, ana, domain.PlanEnterprise, IntervalMonth)
	assert.ErrorIs(t, err, domain.ErrDuplicateOperation)
}

func TestCheckoutAllowedOverManualGrant(t *testing.T) {
	manual := domain.Subscription{ID: ManualSubscriptionPrefix + "u1", UserID: "u1", Plan: domain.PlanPremium, Status: domain.SubscriptionActive}
	h := newHarness(t, []domain.Profile{ana}, manual)
	_, err := h.svc.Checkout(context.Background(), ana, domain.PlanPremium, IntervalMonth)
	assert.NoError(t, err)
}

func TestCheckoutRetriesTransientFailures(t *testing.T) {
	h := newHarness(t, []domain.Profile{ana})
	h.gateway.failures = []error{
		&GatewayError{Code: "rate_limit", Transient: true},
		&GatewayError{Code: "api_error", Transient: true},
	}
	_, err := h.svc.Checkout(context.Background(), ana, domain.PlanPremium, IntervalMonth)
	require.NoError(t, err)
	assert.Equal(t, 3, h.gateway.customerCalls)
}

func TestCheckoutStopsOnPermanentFailure(t *testing.T) {
	h := newHarness(t, []domain.Profile{ana})
	h.gateway.failures = []error{&GatewayError{Code: "card_declined", Message: "Your card was declined."}}
	_, err := h.svc.Checkout(context.Background(), ana, domain.PlanPremium, IntervalMonth)
	require.Error(t, err)
	assert.Equal(t, 1, h.gateway.customerCalls)
	assert.Equal(t, "Your card was declined.", UserMessage(err))
}

func TestPortalRequiresCustomer(t *testing.T) {
	h := newHarness(t, []domain.Profile{ana})
	_, err := h.svc.Portal(context.Background(), ana)
	assert.ErrorIs(t, err, domain.ErrNoBillingCustomer)

	withCustomer := ana
	withCustomer.StripeCustomerID = "cus_1"
	url, err := h.svc.Portal(context.Background(), withCustomer)
	require.NoError(t, err)
	assert.Contains(t, url, "cus_1")
}

func TestCancel(t *testing.T) {
	periodEnd := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	live := domain.Subscription{ID: "sub_1", UserID: "u1", CustomerID: "cus_1", PriceID: "price_premium_m", Plan: domain.PlanPremium, Status: domain.SubscriptionActive, CurrentPeriodEnd: periodEnd}
	h := newHarness(t, []domain.Profile{ana}, live)
	h.gateway.subscriptions["sub_1"] = &SubscriptionSnapshot{ID: "sub_1", CustomerID: "cus_1", PriceID: "price_premium_m", Status: "active", CurrentPeriodEnd: periodEnd}

	updated, err := h.svc.Cancel(context.Background(), ana)
	require.NoError(t, err)
	assert.True(t, updated.CancelAtPeriodEnd)
	assert.Equal(t, domain.PlanPremium, updated.Plan)
	assert.True(t, h.subs.byID["sub_1"].CancelAtPeriodEnd)

	again, err := h.svc.Cancel(context.Background(), ana)
	require.NoError(t, err)
	assert.True(t, again.CancelAtPeriodEnd)
}

func TestCancelWithoutSubscription(t *testing.T) {
	h := newHarness(t, []domain.Profile{ana}, domain.Subscription{ID: "sub_old", UserID: "u1", Status: domain.SubscriptionCanceled})
	_, err := h.svc.Cancel(context.Background(), ana)
	assert.ErrorIs(t, err, domain.ErrNoSubscription)

	h2 := newHarness(t, []domain.Profile{ana})
	_, err = h2.svc.Cancel(context.Background(), ana)
	assert.ErrorIs(t, err, domain.ErrNoSubscription)
}

func TestPriceBook(t *testing.T) {
	book := NewPriceBook(testPrices)
	plan, ok := book.PlanFor("price_ent_m")
	assert.True(t, ok)
	assert.Equal(t, domain.PlanEnterprise, plan)
	_, ok = book.PriceFor(domain.PlanEnterprise, IntervalYear)
	assert.False(t, ok)
	assert.True(t, NewPriceBook(infra.StripePrices{}).Empty())
}

func TestParseInterval(t *testing.T) {
	for input, want := range map[string]Interval{"": IntervalMonth, "Monthly": IntervalMonth, "year": IntervalYear, "annual": IntervalYear} {
		got, err := ParseInterval(input)
		require.NoError(t, err)
		assert.Equal(t, want, got, input)
	}
	_, err := ParseInterval("weekly")
	assert.Error(t, err)
}

func TestUserMessageIgnoresOtherErrors(t *testing.T) {
	assert.Empty(t, UserMessage(errors.New("plain")))
}
