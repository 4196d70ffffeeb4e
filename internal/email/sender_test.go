package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic/internal/infra"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func fastRetry() infra.RetryPolicy {
	return infra.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func TestResendSenderDelivers(t *testing.T) {
	var payload map[string]any
	sender, err := NewResendSender(ResendOptions{
		APIKey: "re_test",
		Retry:  fastRetry(),
		Logger: zerolog.Nop(),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
			_ = json.NewDecoder(r.Body).Decode(&payload)
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": {"application/json"}},
				Body:       io.NopCloser(strings.NewReader(`{"id":"4ef9a417-02e9-4d39-ad75-9611e0fcc33c"}`)),
			}, nil
		})},
	})
	require.NoError(t, err)

	id, err := sender.Send(context.Background(), Message{
		From:    "Mosaic <hi@example.com>",
		To:      []string{"ana@example.com"},
		Subject: "Hello",
		HTML:    "<p>Hello</p>",
		Text:    "Hello",
		Tags:    map[string]string{"template": "welcome", "locale": "en"},
	})
	require.NoError(t, err)
	assert.Equal(t, "4ef9a417-02e9-4d39-ad75-9611e0fcc33c", id)
	assert.Equal(t, "Hello", payload["subject"])
	tags, _ := payload["tags"].([]any)
	require.Len(t, tags, 2)
	first, _ := tags[0].(map[string]any)
	assert.Equal(t, "locale", first["name"])
}

func TestResendSenderRetriesTransportErrors(t *testing.T) {
	calls := 0
	sender, err := NewResendSender(ResendOptions{
		APIKey: "re_test",
		Retry:  fastRetry(),
		Logger: zerolog.Nop(),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("i/o timeout")
		})},
	})
	require.NoError(t, err)
	_, err = sender.Send(context.Background(), Message{From: "a@example.com", To: []string{"b@example.com"}, Subject: "x", Text: "x"})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestNewResendSenderRequiresKey(t *testing.T) {
	_, err := NewResendSender(ResendOptions{})
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(errors.New("[ERROR]: Too many requests. Please limit the number of requests per second.")))
	assert.True(t, isTransient(errors.New("[ERROR]: Internal server error")))
	assert.False(t, isTransient(errors.New("[ERROR]: The `from` field is invalid")))
	assert.False(t, isTransient(context.Canceled))
}

func TestLogSenderReturnsID(t *testing.T) {
	id, err := LogSender{Logger: zerolog.Nop()}.Send(context.Background(), Message{To: []string{"a@example.com"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "log_"))
}
