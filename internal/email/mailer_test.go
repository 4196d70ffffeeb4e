package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic/internal/domain"
)

type captureSender struct {
	messages []Message
	err      error
}

func (c *captureSender) Send(ctx context.Context, msg Message) (string, error) {
	c.messages = append(c.messages, msg)
	return "msg_1", c.err
}

func newTestMailer(t *testing.T, sender Sender) *Mailer {
	t.Helper()
	m, err := NewMailer(sender, MailerOptions{From: "Mosaic <hi@example.com>", PublicURL: "https://app.example.com/", Logger: zerolog.Nop()})
	require.NoError(t, err)
	return m
}

func TestMatchLocale(t *testing.T) {
	cases := map[string]string{
		"":      "en",
		"en-US": "en",
		"es":    "es",
		"es-MX": "es",
		"fr":    "en",
		"???":   "en",
	}
	for input, want := range cases {
		assert.Equal(t, want, MatchLocale(input), input)
	}
}

func TestEveryTemplateRendersInEveryLocale(t *testing.T) {
	m := newTestMailer(t, &captureSender{})
	for _, tag := range Locales {
		for _, name := range templateNames {
			msg, err := m.Render(name, tag.String(), Data{Name: "Ana", PlanName: "Premium", AccessUntil: "soon", InvoiceURL: "https://pay.example.com/i"})
			require.NoError(t, err, "%s/%s", tag, name)
			assert.NotEmpty(t, msg.Subject, "%s/%s", tag, name)
			assert.Contains(t, msg.Text, "Ana")
			assert.Contains(t, msg.HTML, "<p>")
			assert.Equal(t, name, msg.Tags["template"])
		}
	}
}

func TestRenderEscapesHTMLOnly(t *testing.T) {
	m := newTestMailer(t, &captureSender{})
	msg, err := m.Render(TemplateWelcome, "en", Data{Name: "<b>Ana</b>"})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Hi <b>Ana</b>,")
	assert.Contains(t, msg.HTML, "&lt;b&gt;Ana&lt;/b&gt;")
	assert.Contains(t, msg.Text, "https://app.example.com/dashboard")
}

func TestRenderUnknownTemplate(t *testing.T) {
	m := newTestMailer(t, &captureSender{})
	_, err := m.Render("newsletter", "en", Data{})
	assert.Error(t, err)
}

func TestSubscriptionCanceledUsesRecipientLocale(t *testing.T) {
	sender := &captureSender{}
	m := newTestMailer(t, sender)
	until := time.Date(2024, 7, 4, 12, 0, 0, 0, time.UTC)

	err := m.SubscriptionCanceled(context.Background(), domain.Profile{ID: "u1", Email: "ana@example.com", Locale: "es-MX"}, domain.PlanFor(domain.PlanPremium), until)
	require.NoError(t, err)
	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Equal(t, []string{"ana@example.com"}, msg.To)
	assert.Equal(t, "Tu suscripción Premium fue cancelada", msg.Subject)
	assert.Contains(t, msg.Text, "4 de julio de 2024")
	assert.Contains(t, msg.Text, "Hola ana,")

	err = m.SubscriptionCanceled(context.Background(), domain.Profile{ID: "u2", Email: "bo@example.com", FullName: "Bo", Locale: "de"}, domain.PlanFor(domain.PlanEnterprise), until)
	require.NoError(t, err)
	assert.Contains(t, sender.messages[1].Text, "July 4, 2024")
	assert.Equal(t, "en", sender.messages[1].Tags["locale"])
}

func TestPaymentFailedOmitsMissingInvoiceLink(t *testing.T) {
	sender := &captureSender{}
	m := newTestMailer(t, sender)
	require.NoError(t, m.PaymentFailed(context.Background(), domain.Profile{ID: "u1", Email: "a@example.com"}, ""))
	assert.False(t, strings.Contains(sender.messages[0].Text, "Pay the invoice"))
}

func TestSendRequiresEmailAndWrapsErrors(t *testing.T) {
	sender := &captureSender{err: errors.New("boom")}
	m := newTestMailer(t, sender)
	assert.Error(t, m.Welcome(context.Background(), domain.Profile{ID: "u1"}))
	assert.Empty(t, sender.messages)

	err := m.AccessEnded(context.Background(), domain.Profile{ID: "u1", Email: "a@example.com"}, domain.PlanFor(domain.PlanPremium))
	assert.ErrorContains(t, err, "send access_ended")
}

func TestNewMailerValidates(t *testing.T) {
	_, err := NewMailer(nil, MailerOptions{From: "a@example.com"})
	assert.Error(t, err)
	_, err = NewMailer(&captureSender{}, MailerOptions{})
	assert.Error(t, err)
}

func TestOnSendObservesEveryAttempt(t *testing.T) {
	var seen []string
	sender := &captureSender{}
	m, err := NewMailer(sender, MailerOptions{
		From:   "Mosaic <hi@example.com>",
		Logger: zerolog.Nop(),
		OnSend: func(template string, err error) {
			seen = append(seen, template+"|"+map[bool]string{true: "error", false: "ok"}[err != nil])
		},
	})
	require.NoError(t, err)
	profile := domain.Profile{ID: "u1", Email: "ana@example.com"}

	require.NoError(t, m.Welcome(context.Background(), profile))
	sender.err = errors.New("boom")
	require.Error(t, m.AccessEnded(context.Background(), profile, domain.PlanFor(domain.PlanPremium)))

	assert.Equal(t, []string{"welcome|ok", "access_ended|error"}, seen)
}
