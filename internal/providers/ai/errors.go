package ai

import (
	"context"
	"errors"
	"fmt"

	"mosaic/internal/domain"
)

var (
	// ErrAllProvidersFailed is returned, joined with each provider's error, when
	// no provider in the chain produced a completion.
	ErrAllProvidersFailed = fmt.Errorf("all ai providers failed: %w", domain.ErrProviderFailure)
	ErrEmptyPrompt        = errors.New("prompt is required")
	ErrNoProviders        = errors.New("no ai providers configured")
)

// ProviderError is a failed vendor call. Reason is a short machine-readable
// cause such as "http_429" or "decode_response".
type ProviderError struct {
	Provider string
	Reason   string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func providerError(provider, reason string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Reason: reason, Status: status, Err: err}
}

// reasonOf extracts the fallback reason for err.
func reasonOf(err error) string {
	var pe *ProviderError
	switch {
	case errors.As(err, &pe):
		return pe.Reason
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}
