package subscription

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v74"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/billing"
)

// Metadata keys written on processor subscriptions.
const (
	MetadataUserID = "user_id"
	MetadataPlanID = "plan_id"
)

type EventKind string

const (
	EventSubscriptionUpserted EventKind = "subscription_upserted"
	EventSubscriptionDeleted  EventKind = "subscription_deleted"
	EventPaymentSucceeded     EventKind = "payment_succeeded"
	EventPaymentFailed        EventKind = "payment_failed"
)

// Event is a processor notification reduced to what the reconciler applies.
type Event struct {
	ID         string
	Type       string
	Kind       EventKind
	OccurredAt time.Time

	SubscriptionID    string
	CustomerID        string
	Status            model.SubscriptionStatus
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	PriceID           string
	UserID            uint
	PlanID            *uint
}

// NormalizeStatus folds processor statuses into the four local ones.
func NormalizeStatus(status string) model.SubscriptionStatus {
	switch status {
	case "active", "trialing":
		return model.SubscriptionActive
	case "past_due", "unpaid", "paused":
		return model.SubscriptionPastDue
	case "canceled", "incomplete_expired":
		return model.SubscriptionCanceled
	default:
		return model.SubscriptionIncomplete
	}
}

// ParseEvent converts a verified Stripe event. ok is false for event types
// the reconciler does not handle and for invoices without a subscription.
func ParseEvent(e stripe.Event) (ev Event, ok bool, err error) {
	ev = Event{
		ID:         e.ID,
		Type:       string(e.Type),
		OccurredAt: time.Unix(e.Created, 0).UTC(),
	}
	if e.Data == nil {
		return ev, false, fmt.Errorf("event %s has no data", e.ID)
	}

	switch ev.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(e.Data.Raw, &sub); err != nil {
			return ev, false, fmt.Errorf("decode subscription in event %s: %w", e.ID, err)
		}
		ev = FromSubscription(billing.FromStripe(&sub), ev.ID, ev.Type, ev.OccurredAt)
		if ev.Type == "customer.subscription.deleted" {
			ev.Kind = EventSubscriptionDeleted
			ev.Status = model.SubscriptionCanceled
		}
		return ev, true, nil

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(e.Data.Raw, &inv); err != nil {
			return ev, false, fmt.Errorf("decode invoice in event %s: %w", e.ID, err)
		}
		if inv.Subscription == nil || inv.Subscription.ID == "" {
			return ev, false, nil
		}
		ev.SubscriptionID = inv.Subscription.ID
		if inv.Customer != nil {
			ev.CustomerID = inv.Customer.ID
		}
		if ev.Type == "invoice.payment_succeeded" {
			ev.Kind = EventPaymentSucceeded
			ev.Status = model.SubscriptionActive
		} else {
			ev.Kind = EventPaymentFailed
			ev.Status = model.SubscriptionPastDue
		}
		return ev, true, nil
	}

	return ev, false, nil
}

// FromSubscription builds an upsert event from processor state.
func FromSubscription(sub *billing.Subscription, id, eventType string, occurredAt time.Time) Event {
	ev := Event{
		ID:                id,
		Type:              eventType,
		Kind:              EventSubscriptionUpserted,
		OccurredAt:        occurredAt,
		SubscriptionID:    sub.ID,
		CustomerID:        sub.CustomerID,
		Status:            NormalizeStatus(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		PriceID:           sub.PriceID,
		UserID:            parseID(sub.Metadata[MetadataUserID]),
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd
		ev.CurrentPeriodEnd = &end
	}
	if planID := parseID(sub.Metadata[MetadataPlanID]); planID != 0 {
		ev.PlanID = &planID
	}
	return ev
}

func parseID(raw string) uint {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
