package domain

import (
	"context"
	"time"
)

// ProfileRepository persists profiles mirrored from the auth backend.
type ProfileRepository interface {
	Upsert(ctx context.Context, profile *Profile) (*Profile, error)
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByCustomerID(ctx context.Context, customerID string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	SetStripeCustomer(ctx context.Context, userID, customerID string) error
}

// SubscriptionRepository persists reconciled subscription snapshots.
type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *Subscription) error
	GetCurrentByUserID(ctx context.Context, userID string) (*Subscription, error)
	ListEndedBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]Subscription, error)
	MarkAccessEndedNotified(ctx context.Context, id string, at time.Time) error
}

// UsageRepository maintains monthly usage counters.
type UsageRepository interface {
	Get(ctx context.Context, userID string, metric UsageMetric, period string) (int, error)
	Increment(ctx context.Context, userID string, metric UsageMetric, period string, delta int) (int, error)
	PruneBefore(ctx context.Context, period string) (int64, error)
}

// WebhookEventRepository records processed payment webhook events.
type WebhookEventRepository interface {
	// MarkProcessed returns false when the event id was already recorded.
	MarkProcessed(ctx context.Context, id, eventType string) (bool, error)
	Forget(ctx context.Context, id string) error
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
}
