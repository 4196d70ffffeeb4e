package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v76"

	"mosaic/internal/billing"
	"mosaic/internal/domain"
	"mosaic/internal/infra"
)

// PlanAmounts are unit amounts in the currency's minor unit.
type PlanAmounts struct {
	Monthly int64
	Yearly  int64
}

type CatalogOptions struct {
	Currency string
	Amounts  map[domain.PlanType]PlanAmounts
	// Retry bounds every API call; zero means infra.DefaultRetryPolicy.
	Retry infra.RetryPolicy
}

// CatalogPrice is one recurring price of a paid plan.
type CatalogPrice struct {
	Plan      domain.PlanType
	Interval  billing.Interval
	LookupKey string
	PriceID   string
	Created   bool
}

// EnvLine renders the variable the API reads the price id from.
func (p CatalogPrice) EnvLine() string {
	suffix := "MONTHLY"
	if p.Interval == billing.IntervalYear {
		suffix = "YEARLY"
	}
	return fmt.Sprintf("STRIPE_PRICE_%s_%s=%s", strings.ToUpper(string(p.Plan)), suffix, p.PriceID)
}

// LookupKey names the price of plan billed every interval.
func LookupKey(plan domain.PlanType, interval billing.Interval) string {
	return fmt.Sprintf("mosaic_%s_%sly", plan, interval)
}

var catalogIntervals = []billing.Interval{billing.IntervalMonth, billing.IntervalYear}

// EnsureCatalog creates a product and monthly/yearly prices for every paid
// plan in opts.Amounts. Prices are matched by lookup key, so running it
// again only fills in what is missing.
func (g *Gateway) EnsureCatalog(ctx context.Context, opts CatalogOptions) ([]CatalogPrice, error) {
	currency := strings.ToLower(strings.TrimSpace(opts.Currency))
	if currency == "" {
		currency = string(stripeapi.CurrencyUSD)
	}

	var wanted []CatalogPrice
	for _, plan := range domain.Catalog() {
		if _, ok := opts.Amounts[plan.Type]; !ok || !plan.Type.IsPaid() {
			continue
		}
		for _, interval := range catalogIntervals {
			wanted = append(wanted, CatalogPrice{Plan: plan.Type, Interval: interval, LookupKey: LookupKey(plan.Type, interval)})
		}
	}
	if len(wanted) == 0 {
		return nil, fmt.Errorf("no paid plan amounts given")
	}
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = infra.DefaultRetryPolicy()
	}
	retry.Transient = billing.IsTransient

	existing, err := infra.Retry(ctx, retry, func(ctx context.Context) (map[string]*stripeapi.Price, error) {
		return g.pricesByLookupKey(ctx, wanted)
	})
	if err != nil {
		return nil, err
	}
	products := map[domain.PlanType]string{}
	for _, price := range existing {
		if price.Product != nil && price.Product.ID != "" {
			products[planOfLookupKey(wanted, price.LookupKey)] = price.Product.ID
		}
	}

	for i := range wanted {
		w := &wanted[i]
		if price, ok := existing[w.LookupKey]; ok {
			w.PriceID = price.ID
			continue
		}
		productID, ok := products[w.Plan]
		if !ok {
			plan, key := domain.PlanFor(w.Plan), uuid.NewString()
			productID, err = infra.Retry(ctx, retry, func(ctx context.Context) (string, error) {
				return g.createProduct(ctx, plan, key)
			})
			if err != nil {
				return nil, err
			}
			products[w.Plan] = productID
		}
		amounts := opts.Amounts[w.Plan]
		amount := amounts.Monthly
		if w.Interval == billing.IntervalYear {
			amount = amounts.Yearly
		}
		if amount <= 0 {
			return nil, fmt.Errorf("%s %s amount must be positive", w.Plan, w.Interval)
		}
		key := uuid.NewString()
		id, err := infra.Retry(ctx, retry, func(ctx context.Context) (string, error) {
			return g.createPrice(ctx, productID, currency, amount, *w, key)
		})
		if err != nil {
			return nil, err
		}
		w.PriceID = id
		w.Created = true
	}
	return wanted, nil
}

func (g *Gateway) pricesByLookupKey(ctx context.Context, wanted []CatalogPrice) (map[string]*stripeapi.Price, error) {
	keys := make([]string, len(wanted))
	for i, w := range wanted {
		keys[i] = w.LookupKey
	}
	params := &stripeapi.PriceListParams{LookupKeys: stripeapi.StringSlice(keys), Active: stripeapi.Bool(true)}
	params.Context = ctx
	out := map[string]*stripeapi.Price{}
	iter := g.api.Prices.List(params)
	for iter.Next() {
		price := iter.Price()
		out[price.LookupKey] = price
	}
	if err := iter.Err(); err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

// createProduct and createPrice take an idempotency key shared by retries of
// the same create.
func (g *Gateway) createProduct(ctx context.Context, plan domain.Plan, idempotencyKey string) (string, error) {
	p := &stripeapi.ProductParams{Name: stripeapi.String("Mosaic " + plan.Name)}
	p.Context = ctx
	p.SetIdempotencyKey(idempotencyKey)
	p.AddMetadata("plan", string(plan.Type))
	product, err := g.api.Products.New(p)
	if err != nil {
		return "", translateError(err)
	}
	return product.ID, nil
}

func (g *Gateway) createPrice(ctx context.Context, productID, currency string, amount int64, w CatalogPrice, idempotencyKey string) (string, error) {
	p := &stripeapi.PriceParams{
		Product:    stripeapi.String(productID),
		Currency:   stripeapi.String(currency),
		UnitAmount: stripeapi.Int64(amount),
		LookupKey:  stripeapi.String(w.LookupKey),
		Nickname:   stripeapi.String(fmt.Sprintf("%s %sly", domain.PlanFor(w.Plan).Name, w.Interval)),
		Recurring: &stripeapi.PriceRecurringParams{
			Interval: stripeapi.String(string(w.Interval)),
		},
	}
	p.Context = ctx
	p.SetIdempotencyKey(idempotencyKey)
	p.AddMetadata("plan", string(w.Plan))
	price, err := g.api.Prices.New(p)
	if err != nil {
		return "", translateError(err)
	}
	return price.ID, nil
}

func planOfLookupKey(wanted []CatalogPrice, key string) domain.PlanType {
	for _, w := range wanted {
		if w.LookupKey == key {
			return w.Plan
		}
	}
	return ""
}
