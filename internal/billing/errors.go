package billing

import (
	"errors"
	"fmt"
)

// ErrInvalidSignature is returned for webhook payloads that fail verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// CodeResourceMissing is the gateway code for an object the processor does
// not know.
const CodeResourceMissing = "resource_missing"

// GatewayError is a translated processor failure. Message is safe to show
// to the paying user.
type GatewayError struct {
	Code      string
	Message   string
	Status    int
	Transient bool
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway: %s: %v", e.Code, e.Err)
	}
	return "payment gateway: " + e.Code
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a gateway failure worth retrying.
func IsTransient(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Transient
}

// UserMessage returns the user-facing message of a gateway error, or empty.
func UserMessage(err error) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return ""
}
