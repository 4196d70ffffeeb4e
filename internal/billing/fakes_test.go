package billing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"mosaic/internal/domain"
)

type fakeGateway struct {
	mu            sync.Mutex
	customerCalls int
	checkoutCalls int
	failures      []error
	checkout      CheckoutParams
	subscriptions map[string]*SubscriptionSnapshot
	event         *Event
	parseErr      error
}

func (g *fakeGateway) fail() error {
	if len(g.failures) == 0 {
		return nil
	}
	err := g.failures[0]
	g.failures = g.failures[1:]
	return err
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, params CustomerParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customerCalls++
	if err := g.fail(); err != nil {
		return "", err
	}
	return "cus_new", nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkoutCalls++
	if err := g.fail(); err != nil {
		return "", err
	}
	g.checkout = params
	return "https://checkout.stripe.com/c/pay/cs_test", nil
}

func (g *fakeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if err := g.fail(); err != nil {
		return "", err
	}
	return "https://billing.stripe.com/p/session/" + customerID, nil
}

func (g *fakeGateway) GetSubscription(ctx context.Context, id string) (*SubscriptionSnapshot, error) {
	if err := g.fail(); err != nil {
		return nil, err
	}
	snap, ok := g.subscriptions[id]
	if !ok {
		return nil, &GatewayError{Code: CodeResourceMissing, Message: "missing"}
	}
	return snap, nil
}

func (g *fakeGateway) CancelAtPeriodEnd(ctx context.Context, id string) (*SubscriptionSnapshot, error) {
	if err := g.fail(); err != nil {
		return nil, err
	}
	snap := *g.subscriptions[id]
	snap.CancelAtPeriodEnd = true
	return &snap, nil
}

func (g *fakeGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	return g.event, nil
}

type memProfiles struct {
	byID map[string]*domain.Profile
}

func newMemProfiles(profiles ...domain.Profile) *memProfiles {
	m := &memProfiles{byID: map[string]*domain.Profile{}}
	for i := range profiles {
		p := profiles[i]
		m.byID[p.ID] = &p
	}
	return m
}

func (m *memProfiles) Upsert(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	cp := *profile
	m.byID[profile.ID] = &cp
	return &cp, nil
}

func (m *memProfiles) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	if p, ok := m.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memProfiles) GetByCustomerID(ctx context.Context, customerID string) (*domain.Profile, error) {
	for _, p := range m.byID {
		if p.StripeCustomerID == customerID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memProfiles) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	for _, p := range m.byID {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memProfiles) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	p, ok := m.byID[userID]
	if !ok {
		return domain.ErrNotFound
	}
	p.StripeCustomerID = customerID
	return nil
}

type memSubscriptions struct {
	byID    map[string]domain.Subscription
	upserts int
}

func newMemSubscriptions(subs ...domain.Subscription) *memSubscriptions {
	m := &memSubscriptions{byID: map[string]domain.Subscription{}}
	for _, s := range subs {
		m.byID[s.ID] = s
	}
	return m
}

func (m *memSubscriptions) Upsert(ctx context.Context, sub *domain.Subscription) error {
	m.upserts++
	cp := *sub
	cp.UpdatedAt = time.Now().Add(time.Duration(m.upserts) * time.Millisecond)
	m.byID[sub.ID] = cp
	return nil
}

func (m *memSubscriptions) GetCurrentByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	var subs []domain.Subscription
	for _, s := range m.byID {
		if s.UserID == userID {
			subs = append(subs, s)
		}
	}
	if len(subs) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(subs, func(i, j int) bool {
		li, lj := subs[i].Status.IsLive(), subs[j].Status.IsLive()
		if li != lj {
			return li
		}
		return subs[i].UpdatedAt.After(subs[j].UpdatedAt)
	})
	return &subs[0], nil
}

func (m *memSubscriptions) ListEndedBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]domain.Subscription, error) {
	return nil, errors.New("not used")
}

func (m *memSubscriptions) MarkAccessEndedNotified(ctx context.Context, id string, at time.Time) error {
	return errors.New("not used")
}

type memEvents struct {
	seen      map[string]string
	forgotten []string
}

func newMemEvents() *memEvents {
	return &memEvents{seen: map[string]string{}}
}

func (m *memEvents) MarkProcessed(ctx context.Context, id, eventType string) (bool, error) {
	if _, ok := m.seen[id]; ok {
		return false, nil
	}
	m.seen[id] = eventType
	return true, nil
}

func (m *memEvents) Forget(ctx context.Context, id string) error {
	delete(m.seen, id)
	m.forgotten = append(m.forgotten, id)
	return nil
}

func (m *memEvents) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type sentMail struct {
	template string
	userID   string
	plan     domain.PlanType
	until    time.Time
	url      string
}

type recordingNotifier struct {
	sent []sentMail
	err  error
}

func (n *recordingNotifier) SubscriptionActivated(ctx context.Context, profile domain.Profile, plan domain.Plan) error {
	n.sent = append(n.sent, sentMail{template: "subscription_activated", userID: profile.ID, plan: plan.Type})
	return n.err
}

func (n *recordingNotifier) SubscriptionCanceled(ctx context.Context, profile domain.Profile, plan domain.Plan, accessUntil time.Time) error {
	n.sent = append(n.sent, sentMail{template: "subscription_canceled", userID: profile.ID, plan: plan.Type, until: accessUntil})
	return n.err
}

func (n *recordingNotifier) PaymentFailed(ctx context.Context, profile domain.Profile, invoiceURL string) error {
	n.sent = append(n.sent, sentMail{template: "payment_failed", userID: profile.ID, url: invoiceURL})
	return n.err
}
