// Package stripe implements billing.Gateway on top of stripe-go.
package stripe

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"mosaic/internal/billing"
)

const defaultTimeout = 20 * time.Second

type Options struct {
	SecretKey     string
	WebhookSecret string
	// BaseURL overrides the API endpoint, used against stripe-mock.
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Gateway is a Stripe-backed billing.Gateway. Retries are left to the caller.
type Gateway struct {
	api           *client.API
	webhookSecret string
}

func New(opts Options) (*Gateway, error) {
	key := strings.TrimSpace(opts.SecretKey)
	if key == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if strings.TrimSpace(opts.WebhookSecret) == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	cfg := &stripeapi.BackendConfig{
		HTTPClient:        httpClient,
		LeveledLogger:     leveledLogger{logger: opts.Logger.With().Str("component", "stripe").Logger()},
		MaxNetworkRetries: stripeapi.Int64(0),
	}
	if opts.BaseURL != "" {
		cfg.URL = stripeapi.String(strings.TrimRight(opts.BaseURL, "/"))
	}
	backends := &stripeapi.Backends{
		API:     stripeapi.GetBackendWithConfig(stripeapi.APIBackend, cfg),
		Connect: stripeapi.GetBackendWithConfig(stripeapi.ConnectBackend, cfg),
		Uploads: stripeapi.GetBackendWithConfig(stripeapi.UploadsBackend, cfg),
	}
	return &Gateway{api: client.New(key, backends), webhookSecret: strings.TrimSpace(opts.WebhookSecret)}, nil
}

func (g *Gateway) CreateCustomer(ctx context.Context, params billing.CustomerParams) (string, error) {
	p := &stripeapi.CustomerParams{Email: stripeapi.String(params.Email)}
	if params.Name != "" {
		p.Name = stripeapi.String(params.Name)
	}
	p.Context = ctx
	p.AddMetadata(billing.MetadataUserID, params.UserID)
	customer, err := g.api.Customers.New(p)
	if err != nil {
		return "", translateError(err)
	}
	return customer.ID, nil
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, params billing.CheckoutParams) (string, error) {
	p := &stripeapi.CheckoutSessionParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModeSubscription)),
		Customer:          stripeapi.String(params.CustomerID),
		ClientReferenceID: stripeapi.String(params.UserID),
		SuccessURL:        stripeapi.String(params.SuccessURL),
		CancelURL:         stripeapi.String(params.CancelURL),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{Price: stripeapi.String(params.PriceID), Quantity: stripeapi.Int64(1)},
		},
		AllowPromotionCodes: stripeapi.Bool(true),
		SubscriptionData: &stripeapi.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{billing.MetadataUserID: params.UserID},
		},
	}
	p.Context = ctx
	session, err := g.api.CheckoutSessions.New(p)
	if err != nil {
		return "", translateError(err)
	}
	return session.URL, nil
}

func (g *Gateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	p := &stripeapi.BillingPortalSessionParams{
		Customer:  stripeapi.String(customerID),
		ReturnURL: stripeapi.String(returnURL),
	}
	p.Context = ctx
	session, err := g.api.BillingPortalSessions.New(p)
	if err != nil {
		return "", translateError(err)
	}
	return session.URL, nil
}

func (g *Gateway) GetSubscription(ctx context.Context, id string) (*billing.SubscriptionSnapshot, error) {
	p := &stripeapi.SubscriptionParams{}
	p.Context = ctx
	sub, err := g.api.Subscriptions.Get(id, p)
	if err != nil {
		return nil, translateError(err)
	}
	return snapshot(sub), nil
}

func (g *Gateway) CancelAtPeriodEnd(ctx context.Context, id string) (*billing.SubscriptionSnapshot, error) {
	p := &stripeapi.SubscriptionParams{CancelAtPeriodEnd: stripeapi.Bool(true)}
	p.Context = ctx
	sub, err := g.api.Subscriptions.Update(id, p)
	if err != nil {
		return nil, translateError(err)
	}
	return snapshot(sub), nil
}

// ParseEvent verifies the Stripe-Signature header and decodes the object the
// reconciler needs. The account API version may differ from the library's.
func (g *Gateway) ParseEvent(payload []byte, signature string) (*billing.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}
	return decodeEvent(event)
}

var _ billing.Gateway = (*Gateway)(nil)
