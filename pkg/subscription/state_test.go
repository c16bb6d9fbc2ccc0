package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactbook_backend/internal/model"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func upsert(status model.SubscriptionStatus, at time.Time) Event {
	end := at.Add(30 * 24 * time.Hour)
	return Event{
		ID:               "evt_up",
		Kind:             EventSubscriptionUpserted,
		OccurredAt:       at,
		SubscriptionID:   "sub_1",
		CustomerID:       "cus_1",
		Status:           status,
		CurrentPeriodEnd: &end,
		PriceID:          "price_m",
		UserID:           7,
	}
}

func kindEvent(kind EventKind, at time.Time) Event {
	return Event{ID: "evt_" + string(kind), Kind: kind, OccurredAt: at, SubscriptionID: "sub_1"}
}

func TestReduceCreatesRecordFromUpsert(t *testing.T) {
	next, outcome := Reduce(nil, upsert(model.SubscriptionIncomplete, t0))
	require.NotNil(t, next)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, uint(7), next.UserID)
	assert.Equal(t, model.SubscriptionIncomplete, next.Status)
	assert.Equal(t, "sub_1", next.StripeSubscriptionID)
	assert.Equal(t, "price_m", next.PriceID)
	require.NotNil(t, next.LastEventAt)
	assert.True(t, next.LastEventAt.Equal(t0))
}

func TestReduceIgnoresUpsertWithoutOwner(t *testing.T) {
	ev := upsert(model.SubscriptionActive, t0)
	ev.UserID = 0
	next, outcome := Reduce(nil, ev)
	assert.Nil(t, next)
	assert.Equal(t, OutcomeIgnoredNoOwner, outcome)
}

func TestReduceIgnoresPaymentForUnknownSubscription(t *testing.T) {
	for _, kind := range []EventKind{EventPaymentSucceeded, EventPaymentFailed, EventSubscriptionDeleted} {
		next, outcome := Reduce(nil, kindEvent(kind, t0))
		assert.Nil(t, next, kind)
		assert.Equal(t, OutcomeIgnoredUnknown, outcome, kind)
	}
}

func TestReduceTransitions(t *testing.T) {
	cur, _ := Reduce(nil, upsert(model.SubscriptionIncomplete, t0))

	cur, outcome := Reduce(cur, kindEvent(EventPaymentSucceeded, t0.Add(time.Minute)))
	require.NotNil(t, cur)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, model.SubscriptionActive, cur.Status)

	cur, _ = Reduce(cur, kindEvent(EventPaymentFailed, t0.Add(2*time.Minute)))
	assert.Equal(t, model.SubscriptionPastDue, cur.Status)

	cur, _ = Reduce(cur, kindEvent(EventPaymentSucceeded, t0.Add(3*time.Minute)))
	assert.Equal(t, model.SubscriptionActive, cur.Status)

	cur, _ = Reduce(cur, kindEvent(EventSubscriptionDeleted, t0.Add(4*time.Minute)))
	assert.Equal(t, model.SubscriptionCanceled, cur.Status)
}

func TestReduceCanceledIsTerminal(t *testing.T) {
	cur, _ := Reduce(nil, upsert(model.SubscriptionActive, t0))
	cur, _ = Reduce(cur, kindEvent(EventSubscriptionDeleted, t0.Add(time.Minute)))
	require.Equal(t, model.SubscriptionCanceled, cur.Status)

	for _, ev := range []Event{
		kindEvent(EventPaymentSucceeded, t0.Add(time.Hour)),
		kindEvent(EventPaymentFailed, t0.Add(time.Hour)),
		upsert(model.SubscriptionActive, t0.Add(time.Hour)),
	} {
		next, outcome := Reduce(cur, ev)
		assert.Nil(t, next)
		assert.Equal(t, OutcomeIgnoredTerminal, outcome)
	}
}

func TestReduceIgnoresStaleEvents(t *testing.T) {
	cur, _ := Reduce(nil, upsert(model.SubscriptionActive, t0))
	next, outcome := Reduce(cur, kindEvent(EventPaymentFailed, t0.Add(-time.Second)))
	assert.Nil(t, next)
	assert.Equal(t, OutcomeIgnoredStale, outcome)
}

func TestReduceAppliesSameSecondEvents(t *testing.T) {
	cur, _ := Reduce(nil, upsert(model.SubscriptionIncomplete, t0))
	next, outcome := Reduce(cur, kindEvent(EventPaymentSucceeded, t0))
	require.NotNil(t, next)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, model.SubscriptionActive, next.Status)
}

func TestReduceUpdateIsIdempotent(t *testing.T) {
	ev := upsert(model.SubscriptionActive, t0)
	ev.CancelAtPeriodEnd = true

	first, _ := Reduce(nil, ev)
	second, outcome := Reduce(first, ev)
	assert.Nil(t, second)
	assert.Equal(t, OutcomeUnchanged, outcome)
}

func TestReduceKeepsOwnerAndPeriodWhenAbsent(t *testing.T) {
	cur, _ := Reduce(nil, upsert(model.SubscriptionActive, t0))
	ev := upsert(model.SubscriptionActive, t0.Add(time.Minute))
	ev.UserID = 99
	ev.CurrentPeriodEnd = nil
	ev.CancelAtPeriodEnd = true

	next, outcome := Reduce(cur, ev)
	require.NotNil(t, next)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, uint(7), next.UserID)
	assert.Equal(t, cur.CurrentPeriodEnd, next.CurrentPeriodEnd)
	assert.True(t, next.CancelAtPeriodEnd)
	assert.False(t, cur.CancelAtPeriodEnd)
}
