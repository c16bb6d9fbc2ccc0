package subscription

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/billing"
)

type memoryStore struct {
	mu     sync.Mutex
	subs   map[string]model.UserSubscription
	plans  []model.SubscriptionPlan
	users  map[uint]model.User
	nextID uint
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		subs:  map[string]model.UserSubscription{},
		users: map[uint]model.User{},
	}
}

func (m *memoryStore) id() uint {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) addUser(u model.User) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.id()
	}
	m.users[u.ID] = u
	return u
}

func (m *memoryStore) addPlan(name string, priceIDs ...string) model.SubscriptionPlan {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan := model.SubscriptionPlan{Name: name, Limits: model.PlanLimits{Contacts: 500, Storage: -1, APICalls: -1}}
	plan.ID = m.id()
	for _, p := range priceIDs {
		plan.Prices = append(plan.Prices, model.PlanPrice{ID: m.id(), PlanID: plan.ID, StripePriceID: p, Interval: model.IntervalMonth})
	}
	m.plans = append(m.plans, plan)
	return plan
}

func (m *memoryStore) get(stripeID string) (model.UserSubscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.subs[stripeID]
	return rec, ok
}

func (m *memoryStore) Mutate(_ context.Context, stripeID string, fn MutateFunc) (*model.UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur *model.UserSubscription
	if rec, ok := m.subs[stripeID]; ok {
		cp := rec
		cur = &cp
	}
	next := fn(cur)
	if next == nil {
		return cur, nil
	}
	next.StripeSubscriptionID = stripeID
	if cur == nil {
		next.ID = m.id()
		next.CreatedAt = time.Now()
	} else {
		next.ID = cur.ID
	}
	m.subs[stripeID] = *next
	out := *next
	return &out, nil
}

func (m *memoryStore) Insert(_ context.Context, rec *model.UserSubscription) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[rec.StripeSubscriptionID]; ok {
		return false, nil
	}
	rec.ID = m.id()
	rec.CreatedAt = time.Now()
	m.subs[rec.StripeSubscriptionID] = *rec
	return true, nil
}

func (m *memoryStore) withRefs(rec model.UserSubscription) *model.UserSubscription {
	rec.User = m.users[rec.UserID]
	if rec.PlanID != nil {
		for i := range m.plans {
			if m.plans[i].ID == *rec.PlanID {
				plan := m.plans[i]
				rec.Plan = &plan
			}
		}
	}
	return &rec
}

func (m *memoryStore) FindByStripeID(_ context.Context, stripeID string) (*model.UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.subs[stripeID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.withRefs(rec), nil
}

func (m *memoryStore) FindCurrentForUser(_ context.Context, userID uint) (*model.UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var recs []model.UserSubscription
	for _, rec := range m.subs {
		if rec.UserID == userID {
			recs = append(recs, rec)
		}
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(recs, func(i, j int) bool {
		ci, cj := recs[i].Status == model.SubscriptionCanceled, recs[j].Status == model.SubscriptionCanceled
		if ci != cj {
			return !ci
		}
		return recs[i].ID > recs[j].ID
	})
	return m.withRefs(recs[0]), nil
}

func (m *memoryStore) ListCancelingBetween(_ context.Context, from, to time.Time) ([]model.UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UserSubscription
	for _, rec := range m.subs {
		if !rec.CancelAtPeriodEnd || rec.Status == model.SubscriptionCanceled || rec.CurrentPeriodEnd == nil {
			continue
		}
		if !rec.CurrentPeriodEnd.Before(from) && rec.CurrentPeriodEnd.Before(to) {
			out = append(out, *m.withRefs(rec))
		}
	}
	return out, nil
}

func (m *memoryStore) ListLapsed(_ context.Context, before time.Time) ([]model.UserSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UserSubscription
	for _, rec := range m.subs {
		if rec.Status != model.SubscriptionCanceled && rec.CurrentPeriodEnd != nil && rec.CurrentPeriodEnd.Before(before) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryStore) FindPlanByPrice(_ context.Context, priceID string) (*model.SubscriptionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, plan := range m.plans {
		for _, p := range plan.Prices {
			if p.StripePriceID == priceID {
				out := plan
				return &out, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) CreatePlan(_ context.Context, plan *model.SubscriptionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan.ID = m.id()
	for i := range plan.Prices {
		plan.Prices[i].ID = m.id()
		plan.Prices[i].PlanID = plan.ID
	}
	m.plans = append(m.plans, *plan)
	return nil
}

func (m *memoryStore) ListPlans(context.Context) ([]model.SubscriptionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SubscriptionPlan(nil), m.plans...), nil
}

func (m *memoryStore) FindUser(_ context.Context, userID uint) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *memoryStore) SetUserCustomerID(_ context.Context, userID uint, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	u.StripeCustomerID = customerID
	m.users[userID] = u
	return nil
}

type priceCall struct {
	ProductID  string
	UnitAmount int64
	Currency   string
	Interval   string
}

type fakeBilling struct {
	mu sync.Mutex

	subs          map[string]*billing.Subscription
	customers     []string
	products      []string
	prices        []priceCall
	cancelCalls   []bool
	changeCalls   []string
	createErr     error
	getErr        error
	lastMetadata  map[string]string
	lastCustomer  string
	nextSubNumber int
}

func newFakeBilling() *fakeBilling {
	return &fakeBilling{subs: map[string]*billing.Subscription{}}
}

func (f *fakeBilling) CreateCustomer(_ context.Context, email, _ string, _ map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("cus_%d", len(f.customers)+1)
	f.customers = append(f.customers, email)
	return id, nil
}

func (f *fakeBilling) CreateSubscription(_ context.Context, customerID, priceID string, metadata map[string]string) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextSubNumber++
	sub := &billing.Subscription{
		ID:               fmt.Sprintf("sub_%d", f.nextSubNumber),
		CustomerID:       customerID,
		Status:           "incomplete",
		CurrentPeriodEnd: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		ItemID:           "si_1",
		PriceID:          priceID,
		ClientSecret:     "pi_secret",
		Metadata:         metadata,
	}
	f.subs[sub.ID] = sub
	f.lastMetadata = metadata
	f.lastCustomer = customerID
	return sub, nil
}

func (f *fakeBilling) GetSubscription(_ context.Context, id string) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	sub, ok := f.subs[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription %s", id)
	}
	out := *sub
	return &out, nil
}

func (f *fakeBilling) SetCancelAtPeriodEnd(_ context.Context, id string, cancel bool) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, cancel)
	sub, ok := f.subs[id]
	if !ok {
		sub = &billing.Subscription{ID: id, Status: "active"}
		f.subs[id] = sub
	}
	sub.CancelAtPeriodEnd = cancel
	out := *sub
	return &out, nil
}

func (f *fakeBilling) ChangePrice(_ context.Context, id, newPriceID string) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changeCalls = append(f.changeCalls, newPriceID)
	sub, ok := f.subs[id]
	if !ok {
		sub = &billing.Subscription{ID: id, Status: "active"}
		f.subs[id] = sub
	}
	sub.PriceID = newPriceID
	out := *sub
	return &out, nil
}

func (f *fakeBilling) CreateProduct(_ context.Context, name, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = append(f.products, name)
	return fmt.Sprintf("prod_%d", len(f.products)), nil
}

func (f *fakeBilling) CreatePrice(_ context.Context, productID string, unitAmount int64, currency, interval string) (*billing.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices = append(f.prices, priceCall{ProductID: productID, UnitAmount: unitAmount, Currency: currency, Interval: interval})
	return &billing.Price{ID: fmt.Sprintf("price_%d", len(f.prices)), Interval: interval, UnitAmount: unitAmount}, nil
}

type notice struct {
	Kind     string
	Email    string
	Plan     string
	DaysLeft int
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (r *recordingNotifier) add(n notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) PaymentFailed(_ context.Context, user model.User, planName string) error {
	r.add(notice{Kind: "payment_failed", Email: user.Email, Plan: planName})
	return nil
}

func (r *recordingNotifier) CancellationScheduled(_ context.Context, user model.User, planName string, _ time.Time) error {
	r.add(notice{Kind: "cancellation_scheduled", Email: user.Email, Plan: planName})
	return nil
}

func (r *recordingNotifier) ExpiryWarning(_ context.Context, user model.User, planName string, _ time.Time, daysLeft int) error {
	r.add(notice{Kind: "expiry_warning", Email: user.Email, Plan: planName, DaysLeft: daysLeft})
	return nil
}

type memoryLedger struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (l *memoryLedger) Seen(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seen[id], nil
}

func (l *memoryLedger) Mark(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen == nil {
		l.seen = map[string]bool{}
	}
	l.seen[id] = true
	return nil
}
