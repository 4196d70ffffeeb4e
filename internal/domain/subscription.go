package domain

import "time"

// SubscriptionStatus mirrors the payment processor's subscription states.
type SubscriptionStatus string

const (
	SubscriptionNone              SubscriptionStatus = "none"
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionTrialing          SubscriptionStatus = "trialing"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionPaused            SubscriptionStatus = "paused"
)

// Subscription is the locally reconciled snapshot of a processor subscription.
type Subscription struct {
	ID                    string             `json:"id"`
	UserID                string             `json:"user_id"`
	CustomerID            string             `json:"customer_id"`
	PriceID               string             `json:"price_id"`
	Plan                  PlanType           `json:"plan"`
	Status                SubscriptionStatus `json:"status"`
	CurrentPeriodEnd      time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd     bool               `json:"cancel_at_period_end"`
	CanceledAt            *time.Time         `json:"canceled_at,omitempty"`
	AccessEndedNotifiedAt *time.Time         `json:"access_ended_notified_at,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// IsLive reports whether the processor still bills or honors the subscription.
func (s SubscriptionStatus) IsLive() bool {
	switch s {
	case SubscriptionActive, SubscriptionTrialing, SubscriptionPastDue:
		return true
	}
	return false
}
