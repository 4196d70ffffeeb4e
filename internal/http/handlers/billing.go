package handlers

import (
	"errors"
	"io"
	"net/http"

	"mosaic/internal/billing"
	"mosaic/internal/domain"
)

type checkoutRequest struct {
	Plan     string `json:"plan"`
	Interval string `json:"interval"`
}

type redirectResponse struct {
	URL string `json:"url"`
}

func (a *App) billingEnabled(w http.ResponseWriter, r *http.Request) bool {
	if a.Billing == nil {
		a.fail(w, r, domain.ErrBillingNotConfigured, "billing request")
		return false
	}
	return true
}

func (a *App) Checkout(w http.ResponseWriter, r *http.Request) {
	if !a.billingEnabled(w, r) {
		return
	}
	var req checkoutRequest
	if !a.decode(w, r, &req) {
		return
	}
	plan, err := domain.ParsePlanType(req.Plan)
	if err != nil {
		a.fail(w, r, err, "checkout plan")
		return
	}
	interval, err := billing.ParseInterval(req.Interval)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "interval must be month or year")
		return
	}
	acct, err := a.loadAccount(r.Context())
	if err != nil {
		a.fail(w, r, err, "load account")
		return
	}
	url, err := a.Billing.Checkout(r.Context(), *acct.profile, plan, interval)
	if err != nil {
		a.fail(w, r, err, "create checkout session")
		return
	}
	a.json(w, http.StatusOK, redirectResponse{URL: url})
}

func (a *App) Portal(w http.ResponseWriter, r *http.Request) {
	if !a.billingEnabled(w, r) {
		return
	}
	acct, err := a.loadAccount(r.Context())
	if err != nil {
		a.fail(w, r, err, "load account")
		return
	}
	url, err := a.Billing.Portal(r.Context(), *acct.profile)
	if err != nil {
		a.fail(w, r, err, "create portal session")
		return
	}
	a.json(w, http.StatusOK, redirectResponse{URL: url})
}

func (a *App) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	if !a.billingEnabled(w, r) {
		return
	}
	acct, err := a.loadAccount(r.Context())
	if err != nil {
		a.fail(w, r, err, "load account")
		return
	}
	sub, err := a.Billing.Cancel(r.Context(), *acct.profile)
	if err != nil {
		a.fail(w, r, err, "cancel subscription")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"subscription": sub})
}

const maxWebhookBytes = 512 << 10

// StripeWebhook verifies and applies a processor event. Errors other than a
// bad signature answer 500 so the processor redelivers.
func (a *App) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if !a.billingEnabled(w, r) {
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook payload too large")
		return
	}
	result, err := a.Billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		a.json(w, http.StatusOK, map[string]any{"received": true, "result": result})
	case errors.Is(err, billing.ErrInvalidSignature):
		a.log(r).Warn().Err(err).Msg("webhook signature rejected")
		a.error(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
	default:
		a.log(r).Error().Err(err).Msg("webhook processing failed")
		a.error(w, http.StatusInternalServerError, "webhook_failed", "webhook processing failed")
	}
}
