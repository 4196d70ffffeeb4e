package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mosaic/internal/domain"
	"mosaic/internal/infra"
	"mosaic/internal/subscription"
)

// Notifier sends the transactional emails tied to billing transitions.
type Notifier interface {
	SubscriptionActivated(ctx context.Context, profile domain.Profile, plan domain.Plan) error
	SubscriptionCanceled(ctx context.Context, profile domain.Profile, plan domain.Plan, accessUntil time.Time) error
	PaymentFailed(ctx context.Context, profile domain.Profile, invoiceURL string) error
}

type Options struct {
	Gateway       Gateway
	Profiles      domain.ProfileRepository
	Subscriptions domain.SubscriptionRepository
	Events        domain.WebhookEventRepository
	Notifier      Notifier
	Prices        *PriceBook
	// PublicURL is the dashboard origin used for checkout and portal redirects.
	PublicURL string
	Retry     infra.RetryPolicy
	Logger    zerolog.Logger
	// OnWebhook observes every handled event with its outcome.
	OnWebhook func(eventType, outcome string)
	Now       func() time.Time
}

type Service struct {
	gateway   Gateway
	profiles  domain.ProfileRepository
	subs      domain.SubscriptionRepository
	events    domain.WebhookEventRepository
	notifier  Notifier
	prices    *PriceBook
	publicURL string
	retry     infra.RetryPolicy
	logger    zerolog.Logger
	onWebhook func(eventType, outcome string)
	now       func() time.Time
}

func NewService(opts Options) (*Service, error) {
	if opts.Gateway == nil {
		return nil, domain.ErrBillingNotConfigured
	}
	if opts.Profiles == nil || opts.Subscriptions == nil || opts.Events == nil {
		return nil, errors.New("billing: repositories are required")
	}
	prices := opts.Prices
	if prices == nil {
		prices = NewPriceBook(infra.StripePrices{})
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = infra.DefaultRetryPolicy()
	}
	retry.Transient = IsTransient
	logger := opts.Logger.With().Str("component", "billing").Logger()
	if retry.OnRetry == nil {
		retry.OnRetry = func(err error, wait time.Duration) {
			logger.Warn().Err(err).Dur("wait", wait).Msg("payment gateway call failed, retrying")
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		gateway:   opts.Gateway,
		profiles:  opts.Profiles,
		subs:      opts.Subscriptions,
		events:    opts.Events,
		notifier:  opts.Notifier,
		prices:    prices,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
		retry:     retry,
		logger:    logger,
		onWebhook: opts.OnWebhook,
		now:       now,
	}, nil
}

// Checkout returns a hosted checkout URL for plan billed every interval.
func (s *Service) Checkout(ctx context.Context, user domain.Profile, plan domain.PlanType, interval Interval) (string, error) {
	if !plan.IsPaid() {
		return "", fmt.Errorf("%w: %s cannot be purchased", domain.ErrUnsupportedPlan, plan)
	}
	priceID, ok := s.prices.PriceFor(plan, interval)
	if !ok {
		return "", fmt.Errorf("%w: no price for %s/%s", domain.ErrBillingNotConfigured, plan, interval)
	}

	current, err := s.subs.GetCurrentByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("load subscription: %w", err)
	}
	if current != nil && current.Status.IsLive() && !strings.HasPrefix(current.ID, ManualSubscriptionPrefix) {
		return "", fmt.Errorf("%w: already subscribed to %s", domain.ErrDuplicateOperation, current.Plan)
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", err
	}
	url, err := infra.Retry(ctx, s.retry, func(ctx context.Context) (string, error) {
		return s.gateway.CreateCheckoutSession(ctx, CheckoutParams{
			UserID:     user.ID,
			CustomerID: customerID,
			PriceID:    priceID,
			SuccessURL: s.publicURL + "/dashboard/billing?checkout=success",
			CancelURL:  s.publicURL + "/pricing?checkout=canceled",
		})
	})
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	s.logger.Info().Str("user_id", user.ID).Str("plan", string(plan)).Str("interval", string(interval)).Msg("checkout session created")
	return url, nil
}

// Portal returns a billing portal URL for a user who already has a customer.
func (s *Service) Portal(ctx context.Context, user domain.Profile) (string, error) {
	if !user.HasBillingCustomer() {
		return "", domain.ErrNoBillingCustomer
	}
	url, err := infra.Retry(ctx, s.retry, func(ctx context.Context) (string, error) {
		return s.gateway.CreatePortalSession(ctx, user.StripeCustomerID, s.publicURL+"/dashboard/billing")
	})
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return url, nil
}

// Cancel schedules the current subscription to end with its paid period.
func (s *Service) Cancel(ctx context.Context, user domain.Profile) (*domain.Subscription, error) {
	current, err := s.subs.GetCurrentByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoSubscription
		}
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if !current.Status.IsLive() || strings.HasPrefix(current.ID, ManualSubscriptionPrefix) {
		return nil, domain.ErrNoSubscription
	}
	if current.CancelAtPeriodEnd {
		return current, nil
	}

	snap, err := infra.Retry(ctx, s.retry, func(ctx context.Context) (*SubscriptionSnapshot, error) {
		return s.gateway.CancelAtPeriodEnd(ctx, current.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	updated := s.toDomain(snap, user.ID)
	if err := s.subs.Upsert(ctx, updated); err != nil {
		return nil, fmt.Errorf("store subscription: %w", err)
	}
	s.logger.Info().Str("user_id", user.ID).Str("subscription_id", current.ID).Msg("subscription set to cancel at period end")
	return updated, nil
}

func (s *Service) ensureCustomer(ctx context.Context, user domain.Profile) (string, error) {
	if user.HasBillingCustomer() {
		return user.StripeCustomerID, nil
	}
	customerID, err := infra.Retry(ctx, s.retry, func(ctx context.Context) (string, error) {
		return s.gateway.CreateCustomer(ctx, CustomerParams{UserID: user.ID, Email: user.Email, Name: user.FullName})
	})
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	if err := s.profiles.SetStripeCustomer(ctx, user.ID, customerID); err != nil {
		return "", fmt.Errorf("link customer: %w", err)
	}
	return customerID, nil
}

func (s *Service) toDomain(snap *SubscriptionSnapshot, userID string) *domain.Subscription {
	plan, ok := s.prices.PlanFor(snap.PriceID)
	if !ok {
		s.logger.Warn().Str("price_id", snap.PriceID).Str("subscription_id", snap.ID).Msg("unknown price id, treating as free")
		plan = domain.PlanFree
	}
	return &domain.Subscription{
		ID:                snap.ID,
		UserID:            userID,
		CustomerID:        snap.CustomerID,
		PriceID:           snap.PriceID,
		Plan:              plan,
		Status:            domain.SubscriptionStatus(snap.Status),
		CurrentPeriodEnd:  snap.CurrentPeriodEnd,
		CancelAtPeriodEnd: snap.CancelAtPeriodEnd,
		CanceledAt:        snap.CanceledAt,
	}
}

// ManualSubscriptionPrefix marks subscriptions granted by an operator rather
// than billed by the processor.
const ManualSubscriptionPrefix = "manual_"

// accessUntil is when a canceled subscription stops granting its plan.
func accessUntil(sub *domain.Subscription) time.Time {
	return subscription.GraceEndsAt(sub)
}
