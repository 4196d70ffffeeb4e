package billing

import (
	"context"
	"errors"
	"fmt"

	"mosaic/internal/domain"
	"mosaic/internal/infra"
)

// WebhookResult reports how an event was handled.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
}

// HandleWebhook verifies and reconciles one processor event. Each event id is
// applied at most once; a failed event is forgotten so the processor's
// redelivery can apply it.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		s.observe("unknown", "invalid_signature")
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	result := &WebhookResult{EventID: event.ID, Type: event.Type}
	log := s.logger.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()

	fresh, err := s.events.MarkProcessed(ctx, event.ID, event.Type)
	if err != nil {
		s.observe(event.Type, "error")
		return nil, fmt.Errorf("record event: %w", err)
	}
	if !fresh {
		log.Info().Msg("duplicate webhook event skipped")
		result.Duplicate = true
		s.observe(event.Type, "duplicate")
		return result, nil
	}

	handled, err := s.dispatch(ctx, event)
	if err != nil {
		if forgetErr := s.events.Forget(ctx, event.ID); forgetErr != nil {
			log.Error().Err(forgetErr).Msg("forget failed webhook event")
		}
		log.Error().Err(err).Msg("webhook reconciliation failed")
		s.observe(event.Type, "error")
		return nil, err
	}
	if !handled {
		result.Ignored = true
		s.observe(event.Type, "ignored")
		return result, nil
	}
	log.Info().Msg("webhook event reconciled")
	s.observe(event.Type, "processed")
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, event *Event) (bool, error) {
	switch event.Type {
	case EventCheckoutCompleted:
		if event.Checkout == nil {
			return false, errors.New("checkout event without session payload")
		}
		return true, s.onCheckoutCompleted(ctx, event.Checkout)
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		if event.Subscription == nil {
			return false, errors.New("subscription event without subscription payload")
		}
		deleted := event.Type == EventSubscriptionDeleted
		snap := event.Subscription
		if !deleted {
			current, err := s.latest(ctx, snap)
			if err != nil {
				return true, err
			}
			snap = current
		}
		return true, s.reconcile(ctx, snap, "", deleted)
	case EventInvoicePaymentFailed:
		if event.Invoice == nil {
			return false, errors.New("invoice event without invoice payload")
		}
		return true, s.onPaymentFailed(ctx, event.Invoice)
	}
	return false, nil
}

func (s *Service) onCheckoutCompleted(ctx context.Context, checkout *CheckoutCompleted) error {
	userID := checkout.ClientReferenceID
	if userID == "" {
		profile, err := s.profiles.GetByCustomerID(ctx, checkout.CustomerID)
		if err != nil {
			return fmt.Errorf("resolve checkout owner: %w", err)
		}
		userID = profile.ID
	}
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load checkout owner %s: %w", userID, err)
	}
	if checkout.CustomerID != "" && profile.StripeCustomerID != checkout.CustomerID {
		if err := s.profiles.SetStripeCustomer(ctx, profile.ID, checkout.CustomerID); err != nil {
			return fmt.Errorf("link customer: %w", err)
		}
	}
	if checkout.SubscriptionID == "" {
		return nil
	}
	snap, err := infra.Retry(ctx, s.retry, func(ctx context.Context) (*SubscriptionSnapshot, error) {
		return s.gateway.GetSubscription(ctx, checkout.SubscriptionID)
	})
	if err != nil {
		return fmt.Errorf("fetch subscription: %w", err)
	}
	return s.reconcile(ctx, snap, profile.ID, false)
}

// latest re-reads a subscription so a created or updated event delivered after
// a later change stores the current state. The payload is kept when the
// processor no longer knows the subscription.
func (s *Service) latest(ctx context.Context, snap *SubscriptionSnapshot) (*SubscriptionSnapshot, error) {
	current, err := infra.Retry(ctx, s.retry, func(ctx context.Context) (*SubscriptionSnapshot, error) {
		return s.gateway.GetSubscription(ctx, snap.ID)
	})
	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.Code == CodeResourceMissing {
			return snap, nil
		}
		return nil, fmt.Errorf("fetch subscription: %w", err)
	}
	if current.UserID == "" {
		current.UserID = snap.UserID
	}
	return current, nil
}

// reconcile upserts the snapshot and emails the owner on transitions.
func (s *Service) reconcile(ctx context.Context, snap *SubscriptionSnapshot, userID string, deleted bool) error {
	profile, err := s.ownerOf(ctx, snap, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn().Str("subscription_id", snap.ID).Str("customer_id", snap.CustomerID).Msg("subscription owner unknown, skipping")
			return nil
		}
		return err
	}

	previous, err := s.subs.GetCurrentByUserID(ctx, profile.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load subscription: %w", err)
	}
	next := s.toDomain(snap, profile.ID)
	if deleted {
		next.Status = domain.SubscriptionCanceled
		if next.CanceledAt == nil {
			canceledAt := s.now().UTC()
			next.CanceledAt = &canceledAt
		}
	}
	if err := s.subs.Upsert(ctx, next); err != nil {
		return fmt.Errorf("store subscription: %w", err)
	}

	plan := domain.PlanFor(next.Plan)
	switch {
	case deleted:
		s.notify(profile, "subscription_canceled", func(n Notifier) error {
			return n.SubscriptionCanceled(ctx, *profile, plan, accessUntil(next))
		})
	case becameActive(previous, next):
		s.notify(profile, "subscription_activated", func(n Notifier) error {
			return n.SubscriptionActivated(ctx, *profile, plan)
		})
	}
	return nil
}

func (s *Service) onPaymentFailed(ctx context.Context, invoice *InvoiceFailed) error {
	profile, err := s.profiles.GetByCustomerID(ctx, invoice.CustomerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn().Str("customer_id", invoice.CustomerID).Msg("failed invoice for unknown customer")
			return nil
		}
		return fmt.Errorf("resolve invoice owner: %w", err)
	}
	s.notify(profile, "payment_failed", func(n Notifier) error {
		return n.PaymentFailed(ctx, *profile, invoice.HostedInvoiceURL)
	})
	return nil
}

func (s *Service) ownerOf(ctx context.Context, snap *SubscriptionSnapshot, userID string) (*domain.Profile, error) {
	if userID == "" {
		userID = snap.UserID
	}
	if userID != "" {
		profile, err := s.profiles.GetByID(ctx, userID)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return profile, err
		}
	}
	if snap.CustomerID == "" {
		return nil, domain.ErrNotFound
	}
	return s.profiles.GetByCustomerID(ctx, snap.CustomerID)
}

// notify sends an email without failing reconciliation; the row is already
// stored and a redelivered event would be skipped as a duplicate.
func (s *Service) notify(profile *domain.Profile, template string, send func(Notifier) error) {
	if s.notifier == nil {
		return
	}
	if err := send(s.notifier); err != nil {
		s.logger.Error().Err(err).Str("user_id", profile.ID).Str("template", template).Msg("billing email failed")
	}
}

func (s *Service) observe(eventType, outcome string) {
	if s.onWebhook != nil {
		s.onWebhook(eventType, outcome)
	}
}

func becameActive(previous, next *domain.Subscription) bool {
	if next.Status != domain.SubscriptionActive && next.Status != domain.SubscriptionTrialing {
		return false
	}
	if previous == nil || previous.ID != next.ID {
		return true
	}
	return previous.Status != domain.SubscriptionActive && previous.Status != domain.SubscriptionTrialing
}
