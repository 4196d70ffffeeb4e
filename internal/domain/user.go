package domain

import "time"

// Profile mirrors an account of the managed auth backend plus the billing
// linkage the service maintains for it.
type Profile struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FullName         string    `json:"full_name"`
	Locale           string    `json:"locale"`
	StripeCustomerID string    `json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasBillingCustomer reports whether a Stripe customer is linked.
func (p Profile) HasBillingCustomer() bool {
	return p.StripeCustomerID != ""
}
