// Package billing reconciles the payment processor's subscription state with
// the local database and exposes checkout, portal and cancellation flows.
package billing

import (
	"context"
	"time"
)

// Event types the reconciler acts on.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// MetadataUserID is the metadata key carrying the local user id on processor
// objects created by this service.
const MetadataUserID = "user_id"

// CustomerParams describes a processor customer to create.
type CustomerParams struct {
	UserID string
	Email  string
	Name   string
}

// CheckoutParams describes a hosted subscription checkout.
type CheckoutParams struct {
	UserID     string
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// SubscriptionSnapshot is the processor's view of a subscription.
type SubscriptionSnapshot struct {
	ID                string
	CustomerID        string
	PriceID           string
	Status            string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	CanceledAt        *time.Time
	// UserID is read from the subscription metadata when present.
	UserID string
}

// CheckoutCompleted is the payload of a completed checkout session.
type CheckoutCompleted struct {
	CustomerID        string
	SubscriptionID    string
	ClientReferenceID string
}

// InvoiceFailed is the payload of a failed invoice payment.
type InvoiceFailed struct {
	CustomerID       string
	SubscriptionID   string
	AmountDue        int64
	Currency         string
	HostedInvoiceURL string
}

// Event is a verified processor webhook event. At most one payload is set.
type Event struct {
	ID           string
	Type         string
	Subscription *SubscriptionSnapshot
	Checkout     *CheckoutCompleted
	Invoice      *InvoiceFailed
}

// Gateway is the payment processor surface the service depends on.
type Gateway interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	GetSubscription(ctx context.Context, id string) (*SubscriptionSnapshot, error)
	CancelAtPeriodEnd(ctx context.Context, id string) (*SubscriptionSnapshot, error)
	// ParseEvent verifies the signature header and decodes the event.
	ParseEvent(payload []byte, signature string) (*Event, error)
}
