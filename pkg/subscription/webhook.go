package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v74/webhook"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/billing"
)

// HandleWebhook verifies and applies one processor notification. Nothing is
// applied when the signature does not verify.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	e, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		s.log.Warn("webhook rejected", "error", err)
		return "", apperror.Authenticity(err)
	}

	log := s.log.With("event_id", e.ID, "event_type", string(e.Type))

	seen, err := s.ledger.Seen(ctx, e.ID)
	if err != nil {
		log.Warn("event ledger lookup failed", "error", err)
	} else if seen {
		log.Info("duplicate webhook event skipped")
		return OutcomeDuplicate, nil
	}

	ev, ok, err := ParseEvent(e)
	if err != nil {
		log.Warn("malformed webhook event", "error", err)
		return "", apperror.Wrap(err, apperror.KindInvalidInput, "malformed webhook event")
	}
	if !ok {
		log.Debug("webhook event ignored")
		s.mark(ctx, e.ID)
		return OutcomeIgnoredType, nil
	}

	outcome, err := s.Apply(ctx, ev)
	if err != nil {
		return "", err
	}
	s.mark(ctx, e.ID)
	return outcome, nil
}

func (s *Service) mark(ctx context.Context, eventID string) {
	if err := s.ledger.Mark(ctx, eventID); err != nil {
		s.log.Warn("event ledger mark failed", "event_id", eventID, "error", err)
	}
}

// Apply reconciles the local record with ev.
func (s *Service) Apply(ctx context.Context, ev Event) (Outcome, error) {
	if ev.Kind == EventSubscriptionUpserted && ev.PlanID == nil && ev.PriceID != "" {
		plan, err := s.store.FindPlanByPrice(ctx, ev.PriceID)
		switch {
		case err == nil:
			planID := plan.ID
			ev.PlanID = &planID
		case errors.Is(err, ErrNotFound):
		default:
			return "", apperror.DataAccess(err)
		}
	}

	var outcome Outcome
	_, err := s.store.Mutate(ctx, ev.SubscriptionID, func(cur *model.UserSubscription) *model.UserSubscription {
		next, o := Reduce(cur, ev)
		outcome = o
		return next
	})
	if err != nil {
		s.log.Error("apply subscription event failed", "event_id", ev.ID, "subscription_id", ev.SubscriptionID, "error", err)
		return "", apperror.DataAccess(err)
	}

	s.log.Info("subscription event processed",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"subscription_id", ev.SubscriptionID,
		"outcome", string(outcome),
	)

	if outcome == OutcomeApplied && ev.Kind == EventPaymentFailed {
		s.notifyPaymentFailed(ctx, ev.SubscriptionID)
	}
	return outcome, nil
}

func (s *Service) notifyPaymentFailed(ctx context.Context, stripeSubscriptionID string) {
	rec, err := s.store.FindByStripeID(ctx, stripeSubscriptionID)
	if err != nil {
		s.log.Warn("payment failure notice skipped", "subscription_id", stripeSubscriptionID, "error", err)
		return
	}
	if err := s.notifier.PaymentFailed(ctx, rec.User, planName(rec.Plan)); err != nil {
		s.log.Warn("payment failure notice failed", "subscription_id", stripeSubscriptionID, "error", err)
	}
}

// Resync pulls processor state for one subscription and applies it as an
// update. A subscription the processor no longer knows is treated as deleted.
func (s *Service) Resync(ctx context.Context, stripeSubscriptionID string) (Outcome, error) {
	now := s.now().UTC()
	sub, err := s.billing.GetSubscription(ctx, stripeSubscriptionID)
	if err != nil {
		if billing.IsNotFound(err) {
			return s.Apply(ctx, Event{
				ID:             "resync",
				Type:           "resync",
				Kind:           EventSubscriptionDeleted,
				OccurredAt:     now,
				SubscriptionID: stripeSubscriptionID,
				Status:         model.SubscriptionCanceled,
			})
		}
		return "", apperror.Upstream(err, "could not fetch subscription")
	}

	ev := FromSubscription(sub, "resync", "resync", now)
	if ev.Status == model.SubscriptionCanceled {
		ev.Kind = EventSubscriptionDeleted
	}
	return s.Apply(ctx, ev)
}

// ResyncLapsed resyncs every subscription whose period ended before now but
// is not canceled locally. It returns how many were resynced successfully.
func (s *Service) ResyncLapsed(ctx context.Context) (int, error) {
	recs, err := s.store.ListLapsed(ctx, s.now())
	if err != nil {
		return 0, apperror.DataAccess(err)
	}
	done := 0
	for _, rec := range recs {
		if _, err := s.Resync(ctx, rec.StripeSubscriptionID); err != nil {
			s.log.Warn("resync failed", "subscription_id", rec.StripeSubscriptionID, "error", err)
			continue
		}
		done++
	}
	return done, nil
}

// SendExpiryWarnings notifies owners of subscriptions scheduled to end
// between daysLeft-1 and daysLeft days from now.
func (s *Service) SendExpiryWarnings(ctx context.Context, daysLeft int) (int, error) {
	now := s.now()
	from := now.Add(time.Duration(daysLeft-1) * 24 * time.Hour)
	to := now.Add(time.Duration(daysLeft) * 24 * time.Hour)

	recs, err := s.store.ListCancelingBetween(ctx, from, to)
	if err != nil {
		return 0, apperror.DataAccess(err)
	}
	sent := 0
	for _, rec := range recs {
		if rec.CurrentPeriodEnd == nil {
			continue
		}
		if err := s.notifier.ExpiryWarning(ctx, rec.User, planName(rec.Plan), *rec.CurrentPeriodEnd, daysLeft); err != nil {
			s.log.Warn("expiry warning failed", "subscription_id", rec.StripeSubscriptionID, "user_id", rec.UserID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}
