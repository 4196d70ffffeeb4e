package infra

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds the exponential backoff used around provider calls.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Transient decides whether a failed attempt is worth repeating. A nil
	// Transient retries every error.
	Transient func(error) bool
	// OnRetry is called before sleeping between attempts.
	OnRetry func(err error, wait time.Duration)
}

// DefaultRetryPolicy is three attempts starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Retry runs op until it succeeds, returns a non-transient error, runs out of
// attempts, or ctx is done.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = 1
	}
	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(policy.MaxAttempts),
	}
	if policy.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			policy.OnRetry(err, wait)
		}))
	}

	return backoff.Retry(ctx, func() (T, error) {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		if policy.Transient != nil && !policy.Transient(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}, opts...)
}
