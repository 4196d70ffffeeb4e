// Package subscription derives the plan a user may use right now from the
// reconciled processor subscription.
package subscription

import (
	"time"

	"mosaic/internal/domain"
)

// GracePeriod is how long premium access survives a cancellation.
const GracePeriod = 3 * 24 * time.Hour

// Access is the effective entitlement of a user at a point in time.
type Access struct {
	Plan           domain.PlanType           `json:"plan"`
	SubscribedPlan domain.PlanType           `json:"subscribed_plan"`
	Status         domain.SubscriptionStatus `json:"status"`
	PastDue        bool                      `json:"past_due"`
	InGracePeriod  bool                      `json:"in_grace_period"`
	GraceEndsAt    *time.Time                `json:"grace_ends_at,omitempty"`
	CancelsAt      *time.Time                `json:"cancels_at,omitempty"`
	RenewsAt       *time.Time                `json:"renews_at,omitempty"`
}

// IsPremium reports whether a paid plan is in effect.
func (a Access) IsPremium() bool {
	return a.Plan.IsPaid()
}

// Limits returns the plan declaration for the effective plan.
func (a Access) Limits() domain.Plan {
	return domain.PlanFor(a.Plan)
}

// Evaluate resolves the effective plan for sub at now. A nil subscription is
// the free plan.
func Evaluate(sub *domain.Subscription, now time.Time) Access {
	if sub == nil || sub.Status == "" {
		return Access{Plan: domain.PlanFree, SubscribedPlan: domain.PlanFree, Status: domain.SubscriptionNone}
	}

	subscribed := sub.Plan
	if subscribed == "" {
		subscribed = domain.PlanFree
	}
	access := Access{Plan: domain.PlanFree, SubscribedPlan: subscribed, Status: sub.Status}

	status := sub.Status
	if lapsed(sub, now) {
		status = domain.SubscriptionCanceled
	}

	switch status {
	case domain.SubscriptionActive, domain.SubscriptionTrialing:
		access.Plan = subscribed
		if !sub.CurrentPeriodEnd.IsZero() {
			end := sub.CurrentPeriodEnd
			if sub.CancelAtPeriodEnd {
				access.CancelsAt = &end
			} else {
				access.RenewsAt = &end
			}
		}
	case domain.SubscriptionPastDue:
		access.Plan = subscribed
		access.PastDue = true
	case domain.SubscriptionCanceled:
		graceEnd := GraceEndsAt(sub)
		if now.Before(graceEnd) {
			access.Plan = subscribed
			access.InGracePeriod = true
			access.GraceEndsAt = &graceEnd
		}
	}

	return access
}

// lapsed reports a live subscription set to end with its period whose period
// is over, as happens before the processor's deletion event arrives and for
// operator grants with an end date.
func lapsed(sub *domain.Subscription, now time.Time) bool {
	if sub.Status != domain.SubscriptionActive && sub.Status != domain.SubscriptionTrialing {
		return false
	}
	return sub.CancelAtPeriodEnd && !sub.CurrentPeriodEnd.IsZero() && !now.Before(sub.CurrentPeriodEnd)
}

// GraceEndsAt returns the end of the grace window for a canceled
// subscription. The window starts at the later of the cancellation time and
// the end of the paid period.
func GraceEndsAt(sub *domain.Subscription) time.Time {
	anchor := sub.CurrentPeriodEnd
	if sub.CanceledAt != nil && sub.CanceledAt.After(anchor) {
		anchor = *sub.CanceledAt
	}
	return anchor.Add(GracePeriod)
}

// GraceExpired reports whether a canceled or lapsed subscription no longer
// grants access.
func GraceExpired(sub *domain.Subscription, now time.Time) bool {
	if sub == nil {
		return false
	}
	if sub.Status != domain.SubscriptionCanceled && !lapsed(sub, now) {
		return false
	}
	return !now.Before(GraceEndsAt(sub))
}
