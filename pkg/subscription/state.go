package subscription

import (
	"time"

	"contactbook_backend/internal/model"
)

type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeUnchanged       Outcome = "unchanged"
	OutcomeIgnoredTerminal Outcome = "ignored_terminal"
	OutcomeIgnoredStale    Outcome = "ignored_stale"
	OutcomeIgnoredNoOwner  Outcome = "ignored_no_owner"
	OutcomeIgnoredUnknown  Outcome = "ignored_unknown"
	OutcomeIgnoredType     Outcome = "ignored_type"
	OutcomeDuplicate       Outcome = "duplicate"
)

// Reduce applies ev to the current record and returns the record to persist,
// or nil when nothing should be written. cur is nil when no local record
// exists for the event's subscription. Reduce never mutates cur.
//
// canceled is terminal. An event older than the last applied one is stale;
// equal timestamps are applied so redeliveries converge.
func Reduce(cur *model.UserSubscription, ev Event) (*model.UserSubscription, Outcome) {
	if cur == nil {
		if ev.Kind != EventSubscriptionUpserted {
			return nil, OutcomeIgnoredUnknown
		}
		if ev.UserID == 0 {
			return nil, OutcomeIgnoredNoOwner
		}
		occurred := ev.OccurredAt
		next := &model.UserSubscription{
			UserID:               ev.UserID,
			PlanID:               ev.PlanID,
			Status:               ev.Status,
			CurrentPeriodEnd:     ev.CurrentPeriodEnd,
			CancelAtPeriodEnd:    ev.CancelAtPeriodEnd,
			StripeCustomerID:     ev.CustomerID,
			StripeSubscriptionID: ev.SubscriptionID,
			PriceID:              ev.PriceID,
			LastEventAt:          &occurred,
		}
		return next, OutcomeApplied
	}

	if cur.Status == model.SubscriptionCanceled {
		return nil, OutcomeIgnoredTerminal
	}
	if cur.LastEventAt != nil && ev.OccurredAt.Before(*cur.LastEventAt) {
		return nil, OutcomeIgnoredStale
	}

	next := *cur
	switch ev.Kind {
	case EventSubscriptionUpserted:
		next.Status = ev.Status
		if ev.CurrentPeriodEnd != nil {
			end := *ev.CurrentPeriodEnd
			next.CurrentPeriodEnd = &end
		}
		next.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
		if ev.PriceID != "" {
			next.PriceID = ev.PriceID
		}
		if ev.PlanID != nil {
			planID := *ev.PlanID
			next.PlanID = &planID
		}
		if ev.CustomerID != "" {
			next.StripeCustomerID = ev.CustomerID
		}
		if next.UserID == 0 {
			next.UserID = ev.UserID
		}
	case EventSubscriptionDeleted:
		next.Status = model.SubscriptionCanceled
		next.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
		if ev.CurrentPeriodEnd != nil {
			end := *ev.CurrentPeriodEnd
			next.CurrentPeriodEnd = &end
		}
	case EventPaymentSucceeded:
		next.Status = model.SubscriptionActive
	case EventPaymentFailed:
		next.Status = model.SubscriptionPastDue
	default:
		return nil, OutcomeIgnoredUnknown
	}

	if sameState(cur, &next) {
		if cur.LastEventAt == nil || ev.OccurredAt.After(*cur.LastEventAt) {
			occurred := ev.OccurredAt
			next.LastEventAt = &occurred
			return &next, OutcomeUnchanged
		}
		return nil, OutcomeUnchanged
	}

	occurred := ev.OccurredAt
	next.LastEventAt = &occurred
	return &next, OutcomeApplied
}

func sameState(a, b *model.UserSubscription) bool {
	return a.Status == b.Status &&
		a.CancelAtPeriodEnd == b.CancelAtPeriodEnd &&
		a.PriceID == b.PriceID &&
		a.StripeCustomerID == b.StripeCustomerID &&
		a.UserID == b.UserID &&
		equalUintPtr(a.PlanID, b.PlanID) &&
		equalTimePtr(a.CurrentPeriodEnd, b.CurrentPeriodEnd)
}

func equalUintPtr(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
