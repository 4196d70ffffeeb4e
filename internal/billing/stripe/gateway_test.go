package stripe

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"mosaic/internal/billing"
)

const whsec = "whsec_test_secret"

func newGateway(t *testing.T) *Gateway {
	t.Helper()
	gw, err := New(Options{SecretKey: "sk_test_123", WebhookSecret: whsec, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return gw
}

func signed(t *testing.T, payload string) (body []byte, header string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    whsec,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return sp.Payload, sp.Header
}

func TestNewRequiresSecrets(t *testing.T) {
	_, err := New(Options{WebhookSecret: whsec})
	assert.Error(t, err)
	_, err = New(Options{SecretKey: "sk_test_123"})
	assert.Error(t, err)
}

func TestParseSubscriptionEvent(t *testing.T) {
	gw := newGateway(t)
	body, header := signed(t, `{
		"id": "evt_sub",
		"object": "event",
		"api_version": "2020-08-27",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_1",
			"object": "subscription",
			"customer": "cus_1",
			"status": "active",
			"current_period_end": 1717200000,
			"cancel_at_period_end": true,
			"canceled_at": 1717100000,
			"metadata": {"user_id": "u1"},
			"items": {"object": "list", "data": [{"id": "si_1", "object": "subscription_item", "price": {"id": "price_premium_m", "object": "price"}}]}
		}}
	}`)

	event, err := gw.ParseEvent(body, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_sub", event.ID)
	require.NotNil(t, event.Subscription)
	snap := event.Subscription
	assert.Equal(t, "sub_1", snap.ID)
	assert.Equal(t, "cus_1", snap.CustomerID)
	assert.Equal(t, "price_premium_m", snap.PriceID)
	assert.Equal(t, "active", snap.Status)
	assert.Equal(t, "u1", snap.UserID)
	assert.True(t, snap.CancelAtPeriodEnd)
	assert.Equal(t, time.Unix(1717200000, 0).UTC(), snap.CurrentPeriodEnd)
	require.NotNil(t, snap.CanceledAt)
	assert.Equal(t, time.Unix(1717100000, 0).UTC(), *snap.CanceledAt)
}

func TestParseCheckoutEvent(t *testing.T) {
	gw := newGateway(t)
	body, header := signed(t, `{
		"id": "evt_co",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "object": "checkout.session", "customer": "cus_9", "subscription": "sub_9", "client_reference_id": "u9", "mode": "subscription"}}
	}`)
	event, err := gw.ParseEvent(body, header)
	require.NoError(t, err)
	require.NotNil(t, event.Checkout)
	assert.Equal(t, billing.CheckoutCompleted{CustomerID: "cus_9", SubscriptionID: "sub_9", ClientReferenceID: "u9"}, *event.Checkout)
}

func TestParseInvoiceEvent(t *testing.T) {
	gw := newGateway(t)
	body, header := signed(t, `{
		"id": "evt_inv",
		"object": "event",
		"type": "invoice.payment_failed",
		"data": {"object": {"id": "in_1", "object": "invoice", "customer": "cus_2", "subscription": "sub_2", "amount_due": 1500, "currency": "usd", "hosted_invoice_url": "https://pay.stripe.com/i/1"}}
	}`)
	event, err := gw.ParseEvent(body, header)
	require.NoError(t, err)
	require.NotNil(t, event.Invoice)
	assert.Equal(t, "cus_2", event.Invoice.CustomerID)
	assert.Equal(t, int64(1500), event.Invoice.AmountDue)
	assert.Equal(t, "https://pay.stripe.com/i/1", event.Invoice.HostedInvoiceURL)
}

func TestParseIgnoredEventHasNoPayload(t *testing.T) {
	gw := newGateway(t)
	body, header := signed(t, `{"id": "evt_x", "object": "event", "type": "charge.refunded", "data": {"object": {"id": "ch_1", "object": "charge"}}}`)
	event, err := gw.ParseEvent(body, header)
	require.NoError(t, err)
	assert.Nil(t, event.Subscription)
	assert.Nil(t, event.Checkout)
	assert.Nil(t, event.Invoice)
}

func TestParseEventRejectsBadSignature(t *testing.T) {
	gw := newGateway(t)
	body, _ := signed(t, `{"id": "evt_x", "object": "event", "type": "charge.refunded", "data": {"object": {}}}`)
	_, err := gw.ParseEvent(body, "t=1,v1=deadbeef")
	assert.Error(t, err)

	other := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: "whsec_other", Timestamp: time.Now(), Scheme: "v1"})
	_, err = gw.ParseEvent(body, other.Header)
	assert.Error(t, err)
}

func TestTranslateError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		transient bool
		message   string
	}{
		{name: "network", err: errors.New("dial tcp: i/o timeout"), transient: true, message: msgUnavailable},
		{name: "rate limit", err: &stripeapi.Error{HTTPStatusCode: 429, Code: stripeapi.ErrorCodeRateLimit, Type: stripeapi.ErrorTypeInvalidRequest}, transient: true, message: msgUnavailable},
		{name: "server", err: &stripeapi.Error{HTTPStatusCode: 502, Type: stripeapi.ErrorTypeAPI}, transient: true, message: msgUnavailable},
		{name: "card", err: &stripeapi.Error{HTTPStatusCode: 402, Type: stripeapi.ErrorTypeCard, Msg: "Your card has insufficient funds."}, message: "Your card has insufficient funds."},
		{name: "card without message", err: &stripeapi.Error{HTTPStatusCode: 402, Type: stripeapi.ErrorTypeCard}, message: msgCard},
		{name: "invalid request", err: &stripeapi.Error{HTTPStatusCode: 400, Type: stripeapi.ErrorTypeInvalidRequest, Code: stripeapi.ErrorCodeResourceMissing}, message: msgRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := translateError(tc.err)
			var gwErr *billing.GatewayError
			require.True(t, errors.As(err, &gwErr))
			assert.Equal(t, tc.transient, gwErr.Transient)
			assert.Equal(t, tc.message, gwErr.Message)
			assert.Equal(t, tc.transient, billing.IsTransient(err))
			assert.True(t, errors.Is(err, tc.err))
		})
	}
}
