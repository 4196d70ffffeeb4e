package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	stripeapi "github.com/stripe/stripe-go/v76"

	"mosaic/internal/billing"
)

func decodeEvent(event stripeapi.Event) (*billing.Event, error) {
	out := &billing.Event{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}
	raw := event.Data.Raw

	switch out.Type {
	case billing.EventCheckoutCompleted:
		var session stripeapi.CheckoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Checkout = &billing.CheckoutCompleted{ClientReferenceID: session.ClientReferenceID}
		if session.Customer != nil {
			out.Checkout.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			out.Checkout.SubscriptionID = session.Subscription.ID
		}
	case billing.EventSubscriptionCreated, billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		var sub stripeapi.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.Subscription = snapshot(&sub)
	case billing.EventInvoicePaymentFailed:
		var invoice stripeapi.Invoice
		if err := json.Unmarshal(raw, &invoice); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		out.Invoice = &billing.InvoiceFailed{
			AmountDue:        invoice.AmountDue,
			Currency:         string(invoice.Currency),
			HostedInvoiceURL: invoice.HostedInvoiceURL,
		}
		if invoice.Customer != nil {
			out.Invoice.CustomerID = invoice.Customer.ID
		}
		if invoice.Subscription != nil {
			out.Invoice.SubscriptionID = invoice.Subscription.ID
		}
	}
	return out, nil
}

func snapshot(sub *stripeapi.Subscription) *billing.SubscriptionSnapshot {
	snap := &billing.SubscriptionSnapshot{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		UserID:            sub.Metadata[billing.MetadataUserID],
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		snap.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.CanceledAt > 0 {
		canceled := time.Unix(sub.CanceledAt, 0).UTC()
		snap.CanceledAt = &canceled
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.Price != nil {
				snap.PriceID = item.Price.ID
				break
			}
		}
	}
	return snap
}
