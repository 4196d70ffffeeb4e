package handlers

import (
	"context"
	"errors"
	"net/http"

	"mosaic/internal/auth"
	"mosaic/internal/billing"
	"mosaic/internal/domain"
	"mosaic/internal/providers/ai"
)

var authStatus = map[auth.ErrorKind]int{
	auth.KindInvalidCredentials: http.StatusUnauthorized,
	auth.KindEmailTaken:         http.StatusConflict,
	auth.KindEmailNotConfirmed:  http.StatusForbidden,
	auth.KindWeakPassword:       http.StatusUnprocessableEntity,
	auth.KindSessionExpired:     http.StatusUnauthorized,
	auth.KindRateLimited:        http.StatusTooManyRequests,
	auth.KindUnavailable:        http.StatusServiceUnavailable,
	auth.KindUnknown:            http.StatusBadGateway,
}

// fail logs err and answers with the envelope matching its class.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var authErr *auth.Error
	switch {
	case errors.As(err, &authErr):
		status := authStatus[authErr.Kind]
		if status == 0 {
			status = http.StatusBadGateway
		}
		a.log(r).Warn().Err(err).Str("kind", string(authErr.Kind)).Msg(msg)
		a.error(w, status, string(authErr.Kind), authErr.Message)
		return
	case errors.Is(err, context.Canceled):
		a.log(r).Debug().Err(err).Msg(msg)
		return
	case errors.Is(err, context.DeadlineExceeded):
		a.log(r).Warn().Err(err).Msg(msg)
		a.error(w, http.StatusGatewayTimeout, "timeout", "the request took too long")
		return
	}

	status, code, message := classify(err)
	event := a.log(r).Warn()
	if status >= http.StatusInternalServerError {
		event = a.log(r).Error()
	}
	event.Err(err).Int("status", status).Msg(msg)
	a.error(w, status, code, message)
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "sign in to continue"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "resource not found"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "quota_exceeded", "monthly AI completion limit reached, upgrade your plan for more"
	case errors.Is(err, domain.ErrFeatureUnavailable):
		return http.StatusForbidden, "feature_unavailable", "your plan does not include this feature"
	case errors.Is(err, domain.ErrUnsupportedPlan):
		return http.StatusBadRequest, "unsupported_plan", "choose a paid plan"
	case errors.Is(err, domain.ErrDuplicateOperation):
		return http.StatusConflict, "already_subscribed", "you already have an active subscription, manage it from the billing portal"
	case errors.Is(err, domain.ErrNoBillingCustomer):
		return http.StatusConflict, "no_billing_account", "no billing account yet, subscribe to a plan first"
	case errors.Is(err, domain.ErrNoSubscription):
		return http.StatusConflict, "no_subscription", "there is no active subscription to cancel"
	case errors.Is(err, domain.ErrBillingNotConfigured):
		return http.StatusServiceUnavailable, "billing_not_configured", "billing is not available right now"
	case errors.Is(err, ai.ErrEmptyPrompt):
		return http.StatusBadRequest, "bad_request", "prompt is required"
	case errors.Is(err, domain.ErrProviderFailure):
		return http.StatusBadGateway, "ai_unavailable", "the AI service is unavailable, please try again"
	}
	if msg := billing.UserMessage(err); msg != "" {
		status := http.StatusPaymentRequired
		if billing.IsTransient(err) {
			status = http.StatusServiceUnavailable
		}
		return status, "payment_error", msg
	}
	return http.StatusInternalServerError, "internal", "something went wrong"
}
