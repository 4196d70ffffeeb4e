package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrUnsupportedPlan      = errors.New("unsupported plan")
	ErrFeatureUnavailable   = errors.New("feature not available on current plan")
	ErrProviderFailure      = errors.New("provider failure")
	ErrDuplicateOperation   = errors.New("duplicate operation")
	ErrNoBillingCustomer    = errors.New("no billing customer")
	ErrNoSubscription       = errors.New("no active subscription")
	ErrBillingNotConfigured = errors.New("billing not configured")
)
