// Package email sends transactional email through Resend and renders the
// localized templates the product sends.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"mosaic/internal/infra"
)

// Message is a rendered email ready for delivery.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
	// Tags are attached for provider-side analytics.
	Tags map[string]string
}

// Sender delivers a message and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type ResendOptions struct {
	APIKey     string
	HTTPClient *http.Client
	Retry      infra.RetryPolicy
	Logger     zerolog.Logger
}

// ResendSender delivers through the Resend API, retrying transient failures.
type ResendSender struct {
	client *resend.Client
	retry  infra.RetryPolicy
}

func NewResendSender(opts ResendOptions) (*ResendSender, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("resend api key is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = infra.DefaultRetryPolicy()
	}
	retry.Transient = isTransient
	if retry.OnRetry == nil {
		logger := opts.Logger
		retry.OnRetry = func(err error, wait time.Duration) {
			logger.Warn().Err(err).Dur("wait", wait).Msg("email send failed, retrying")
		}
	}
	return &ResendSender{client: resend.NewCustomClient(httpClient, key), retry: retry}, nil
}

func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Tags:    tags(msg.Tags),
	}
	id, err := infra.Retry(ctx, s.retry, func(ctx context.Context) (string, error) {
		resp, err := s.client.Emails.SendWithContext(ctx, req)
		if err != nil {
			return "", err
		}
		return resp.Id, nil
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	return id, nil
}

func tags(in map[string]string) []resend.Tag {
	if len(in) == 0 {
		return nil
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]resend.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, resend.Tag{Name: k, Value: in[k]})
	}
	return out
}

// isTransient treats transport failures, rate limits and 5xx answers as
// retryable. Resend reports API failures as plain errors.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "too many requests", "internal server error", "service unavailable", "bad gateway", "timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// LogSender writes messages to the log instead of delivering them. It is used
// when no Resend key is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) (string, error) {
	id := "log_" + uuid.NewString()
	s.Logger.Info().
		Str("message_id", id).
		Strs("to", msg.To).
		Str("subject", msg.Subject).
		Str("text", msg.Text).
		Msg("email not delivered, no provider configured")
	return id, nil
}

var (
	_ Sender = (*ResendSender)(nil)
	_ Sender = LogSender{}
)
