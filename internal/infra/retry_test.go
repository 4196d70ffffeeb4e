package infra

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want %v", err, errTransient)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryReturnsFirstSuccess(t *testing.T) {
	calls := 0
	var retried int
	policy := fastPolicy()
	policy.OnRetry = func(error, time.Duration) { retried++ }
	got, err := Retry(context.Background(), policy, func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 2 || retried != 1 {
		t.Fatalf("got=%q calls=%d retried=%d", got, calls, retried)
	}
}

func TestRetrySkipsPermanentErrors(t *testing.T) {
	permanent := errors.New("card declined")
	policy := fastPolicy()
	policy.Transient = func(err error) bool { return errors.Is(err, errTransient) }
	calls := 0
	_, err := Retry(context.Background(), policy, func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("err = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
