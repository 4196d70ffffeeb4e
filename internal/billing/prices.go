package billing

import (
	"fmt"
	"strings"

	"mosaic/internal/domain"
	"mosaic/internal/infra"
)

// Interval is a billing cadence.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// ParseInterval accepts month/monthly and year/yearly/annual, defaulting to month.
func ParseInterval(raw string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "month", "monthly":
		return IntervalMonth, nil
	case "year", "yearly", "annual":
		return IntervalYear, nil
	}
	return "", fmt.Errorf("unsupported billing interval %q", raw)
}

type priceKey struct {
	plan     domain.PlanType
	interval Interval
}

// PriceBook maps processor price ids to plans in both directions.
type PriceBook struct {
	byKey   map[priceKey]string
	byPrice map[string]domain.PlanType
}

func NewPriceBook(prices infra.StripePrices) *PriceBook {
	book := &PriceBook{byKey: map[priceKey]string{}, byPrice: map[string]domain.PlanType{}}
	book.add(domain.PlanPremium, IntervalMonth, prices.PremiumMonthly)
	book.add(domain.PlanPremium, IntervalYear, prices.PremiumYearly)
	book.add(domain.PlanEnterprise, IntervalMonth, prices.EnterpriseMonthly)
	book.add(domain.PlanEnterprise, IntervalYear, prices.EnterpriseYearly)
	return book
}

func (b *PriceBook) add(plan domain.PlanType, interval Interval, priceID string) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return
	}
	b.byKey[priceKey{plan, interval}] = priceID
	b.byPrice[priceID] = plan
}

// PriceFor returns the price id configured for plan and interval.
func (b *PriceBook) PriceFor(plan domain.PlanType, interval Interval) (string, bool) {
	id, ok := b.byKey[priceKey{plan, interval}]
	return id, ok
}

// PlanFor returns the plan a price id bills for.
func (b *PriceBook) PlanFor(priceID string) (domain.PlanType, bool) {
	plan, ok := b.byPrice[strings.TrimSpace(priceID)]
	return plan, ok
}

// Empty reports whether no prices are configured at all.
func (b *PriceBook) Empty() bool {
	return len(b.byPrice) == 0
}
