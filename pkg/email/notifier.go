package email

import (
	"context"
	"time"

	"contactbook_backend/internal/model"
)

// Notifier adapts EmailService to the subscription notices.
type Notifier struct {
	svc *EmailService
}

func NewNotifier(svc *EmailService) *Notifier {
	return &Notifier{svc: svc}
}

func (n *Notifier) PaymentFailed(ctx context.Context, user model.User, planName string) error {
	return n.svc.SendPaymentFailedEmail(ctx, user.Email, user.Name, planName)
}

func (n *Notifier) CancellationScheduled(ctx context.Context, user model.User, planName string, endsAt time.Time) error {
	return n.svc.SendSubscriptionCancelledEmail(ctx, user.Email, user.Name, planName, endsAt)
}

func (n *Notifier) ExpiryWarning(ctx context.Context, user model.User, planName string, endsAt time.Time, daysLeft int) error {
	return n.svc.SendSubscriptionExpiryWarning(ctx, user.Email, user.Name, planName, endsAt, daysLeft)
}
