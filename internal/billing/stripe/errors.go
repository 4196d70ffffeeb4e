package stripe

import (
	"errors"
	"net/http"

	stripeapi "github.com/stripe/stripe-go/v76"

	"mosaic/internal/billing"
)

const (
	msgUnavailable = "The payment service is temporarily unavailable. Please try again in a moment."
	msgRejected    = "The payment request could not be completed. Please contact support if this continues."
	msgCard        = "Your card was declined. Please use a different payment method."
)

// translateError converts stripe-go failures into *billing.GatewayError.
// Network failures, rate limits and 5xx responses are transient.
func translateError(err error) error {
	var stripeErr *stripeapi.Error
	if !errors.As(err, &stripeErr) {
		return &billing.GatewayError{Code: "network_error", Message: msgUnavailable, Transient: true, Err: err}
	}
	out := &billing.GatewayError{
		Code:   string(stripeErr.Code),
		Status: stripeErr.HTTPStatusCode,
		Err:    err,
	}
	switch {
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests || stripeErr.Code == stripeapi.ErrorCodeRateLimit:
		out.Transient = true
		out.Message = msgUnavailable
	case stripeErr.HTTPStatusCode >= 500 || stripeErr.Type == stripeapi.ErrorTypeAPI:
		out.Transient = true
		out.Message = msgUnavailable
	case stripeErr.Type == stripeapi.ErrorTypeCard:
		out.Message = msgCard
		if stripeErr.Msg != "" {
			out.Message = stripeErr.Msg
		}
	default:
		out.Message = msgRejected
	}
	if out.Code == "" {
		out.Code = string(stripeErr.Type)
	}
	return out
}
