package subscription

import (
	"context"
	"time"

	"contactbook_backend/internal/model"
)

// EventLedger remembers processed webhook event ids. It only short-circuits
// redeliveries; applying an event twice is already safe.
type EventLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type NopLedger struct{}

func (NopLedger) Seen(context.Context, string) (bool, error) { return false, nil }
func (NopLedger) Mark(context.Context, string) error         { return nil }

// Notifier sends billing notices to users. Failures are logged by the caller.
type Notifier interface {
	PaymentFailed(ctx context.Context, user model.User, planName string) error
	CancellationScheduled(ctx context.Context, user model.User, planName string, endsAt time.Time) error
	ExpiryWarning(ctx context.Context, user model.User, planName string, endsAt time.Time, daysLeft int) error
}

type nopNotifier struct{}

func (nopNotifier) PaymentFailed(context.Context, model.User, string) error { return nil }
func (nopNotifier) CancellationScheduled(context.Context, model.User, string, time.Time) error {
	return nil
}
func (nopNotifier) ExpiryWarning(context.Context, model.User, string, time.Time, int) error {
	return nil
}
