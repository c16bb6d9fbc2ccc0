package subscription

import (
	"context"
	"errors"
	"strings"
	"time"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/billing"
	"contactbook_backend/pkg/logger"
)

type Options struct {
	WebhookSecret string
	Currency      string
	Ledger        EventLedger
	Notifier      Notifier
	Now           func() time.Time
}

// Service owns every subscription state change, whether it comes from a
// user request or from a processor webhook.
type Service struct {
	store         Store
	billing       billing.Client
	log           *logger.Logger
	webhookSecret string
	currency      string
	ledger        EventLedger
	notifier      Notifier
	now           func() time.Time
}

func NewService(store Store, client billing.Client, log *logger.Logger, opts Options) *Service {
	s := &Service{
		store:         store,
		billing:       client,
		log:           log,
		webhookSecret: opts.WebhookSecret,
		currency:      strings.ToLower(opts.Currency),
		ledger:        opts.Ledger,
		notifier:      opts.Notifier,
		now:           opts.Now,
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.currency == "" {
		s.currency = "usd"
	}
	if s.ledger == nil {
		s.ledger = NopLedger{}
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type CreateInput struct {
	CustomerID string `json:"customerId"`
	PriceID    string `json:"priceId" validate:"required"`
}

type CreateResult struct {
	SubscriptionID string                   `json:"subscriptionId"`
	ClientSecret   string                   `json:"clientSecret"`
	Status         model.SubscriptionStatus `json:"status"`
}

// CreateSubscription opens an incomplete processor subscription for the
// user. It becomes active only once the processor reports payment.
func (s *Service) CreateSubscription(ctx context.Context, userID uint, in CreateInput) (*CreateResult, error) {
	in.PriceID = strings.TrimSpace(in.PriceID)
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	if in.PriceID == "" {
		return nil, apperror.InvalidInput("invalid subscription request",
			apperror.FieldError{Field: "priceId", Message: "is required"})
	}

	plan, err := s.planForPrice(ctx, in.PriceID, "priceId")
	if err != nil {
		return nil, err
	}

	user, err := s.store.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperror.NotFound("user not found")
		}
		return nil, apperror.DataAccess(err)
	}

	customerID, err := s.customerFor(ctx, user, in.CustomerID)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		MetadataUserID: formatID(user.ID),
		MetadataPlanID: formatID(plan.ID),
	}
	sub, err := s.billing.CreateSubscription(ctx, customerID, in.PriceID, metadata)
	if err != nil {
		s.log.Error("create subscription failed", "user_id", user.ID, "price_id", in.PriceID, "error", err)
		return nil, apperror.Upstream(err, "could not create subscription")
	}

	planID := plan.ID
	rec := &model.UserSubscription{
		UserID:               user.ID,
		PlanID:               &planID,
		Status:               model.SubscriptionIncomplete,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: sub.ID,
		PriceID:              in.PriceID,
	}
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd
		rec.CurrentPeriodEnd = &end
	}
	inserted, err := s.store.Insert(ctx, rec)
	if err != nil {
		s.log.Error("persist subscription failed", "user_id", user.ID, "subscription_id", sub.ID, "error", err)
		return nil, apperror.DataAccess(err)
	}
	if !inserted {
		s.log.Info("subscription already recorded by webhook", "subscription_id", sub.ID)
	}

	return &CreateResult{
		SubscriptionID: sub.ID,
		ClientSecret:   sub.ClientSecret,
		Status:         model.SubscriptionIncomplete,
	}, nil
}

// customerFor picks the processor customer: the stored one, the supplied
// one, or a freshly created one. A supplied id must match a stored id.
func (s *Service) customerFor(ctx context.Context, user *model.User, supplied string) (string, error) {
	if user.StripeCustomerID != "" {
		if supplied != "" && supplied != user.StripeCustomerID {
			return "", apperror.Forbidden("customer does not belong to the current user")
		}
		return user.StripeCustomerID, nil
	}

	customerID := supplied
	if customerID == "" {
		id, err := s.billing.CreateCustomer(ctx, user.Email, user.Name, map[string]string{
			MetadataUserID: formatID(user.ID),
		})
		if err != nil {
			s.log.Error("create customer failed", "user_id", user.ID, "error", err)
			return "", apperror.Upstream(err, "could not create customer")
		}
		customerID = id
	}

	if err := s.store.SetUserCustomerID(ctx, user.ID, customerID); err != nil {
		return "", apperror.DataAccess(err)
	}
	user.StripeCustomerID = customerID
	return customerID, nil
}

// Cancel schedules cancellation at the end of the current period. The status
// is left alone; the processor reports the final transition.
func (s *Service) Cancel(ctx context.Context, userID uint, stripeSubscriptionID string) (*model.UserSubscription, error) {
	rec, err := s.owned(ctx, userID, stripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	if rec.Status == model.SubscriptionCanceled {
		return nil, apperror.Conflict("subscription is already canceled")
	}

	upstream, err := s.billing.SetCancelAtPeriodEnd(ctx, stripeSubscriptionID, true)
	if err != nil {
		s.log.Error("cancel subscription failed", "subscription_id", stripeSubscriptionID, "error", err)
		return nil, apperror.Upstream(err, "could not cancel subscription")
	}

	updated, err := s.setCancelFlag(ctx, rec, true, upstream)
	if err != nil {
		return nil, err
	}

	endsAt := s.now()
	if updated.CurrentPeriodEnd != nil {
		endsAt = *updated.CurrentPeriodEnd
	}
	if err := s.notifier.CancellationScheduled(ctx, rec.User, planName(rec.Plan), endsAt); err != nil {
		s.log.Warn("cancellation notice failed", "subscription_id", stripeSubscriptionID, "error", err)
	}
	return updated, nil
}

// Reactivate clears a scheduled cancellation. It does nothing when none is
// scheduled.
func (s *Service) Reactivate(ctx context.Context, userID uint, stripeSubscriptionID string) (*model.UserSubscription, error) {
	rec, err := s.owned(ctx, userID, stripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	if rec.Status == model.SubscriptionCanceled {
		return nil, apperror.Conflict("subscription is already canceled")
	}
	if !rec.CancelAtPeriodEnd {
		return rec, nil
	}

	upstream, err := s.billing.SetCancelAtPeriodEnd(ctx, stripeSubscriptionID, false)
	if err != nil {
		s.log.Error("reactivate subscription failed", "subscription_id", stripeSubscriptionID, "error", err)
		return nil, apperror.Upstream(err, "could not reactivate subscription")
	}
	return s.setCancelFlag(ctx, rec, false, upstream)
}

func (s *Service) setCancelFlag(ctx context.Context, rec *model.UserSubscription, flag bool, upstream *billing.Subscription) (*model.UserSubscription, error) {
	updated, err := s.store.Mutate(ctx, rec.StripeSubscriptionID, func(cur *model.UserSubscription) *model.UserSubscription {
		if cur == nil {
			return nil
		}
		next := *cur
		next.CancelAtPeriodEnd = flag
		if upstream != nil && !upstream.CurrentPeriodEnd.IsZero() {
			end := upstream.CurrentPeriodEnd
			next.CurrentPeriodEnd = &end
		}
		return &next
	})
	if err != nil {
		return nil, apperror.DataAccess(err)
	}
	if updated == nil {
		return nil, apperror.NotFound("subscription not found")
	}
	updated.Plan = rec.Plan
	return updated, nil
}

type ChangePlanInput struct {
	NewPriceID string `json:"newPriceId" validate:"required"`
}

// ChangePlan swaps the price on the existing subscription item with
// proration. The status is unchanged.
func (s *Service) ChangePlan(ctx context.Context, userID uint, stripeSubscriptionID string, in ChangePlanInput) (*model.UserSubscription, error) {
	newPriceID := strings.TrimSpace(in.NewPriceID)
	if newPriceID == "" {
		return nil, apperror.InvalidInput("invalid plan change",
			apperror.FieldError{Field: "newPriceId", Message: "is required"})
	}

	rec, err := s.owned(ctx, userID, stripeSubscriptionID)
	if err != nil {
		return nil, err
	}
	if rec.Status == model.SubscriptionCanceled {
		return nil, apperror.Conflict("subscription is already canceled")
	}

	plan, err := s.planForPrice(ctx, newPriceID, "newPriceId")
	if err != nil {
		return nil, err
	}
	if rec.PriceID == newPriceID {
		return rec, nil
	}

	if _, err := s.billing.ChangePrice(ctx, stripeSubscriptionID, newPriceID); err != nil {
		s.log.Error("change plan failed", "subscription_id", stripeSubscriptionID, "price_id", newPriceID, "error", err)
		return nil, apperror.Upstream(err, "could not change plan")
	}

	planID := plan.ID
	updated, err := s.store.Mutate(ctx, stripeSubscriptionID, func(cur *model.UserSubscription) *model.UserSubscription {
		if cur == nil {
			return nil
		}
		next := *cur
		next.PriceID = newPriceID
		next.PlanID = &planID
		return &next
	})
	if err != nil {
		return nil, apperror.DataAccess(err)
	}
	if updated == nil {
		return nil, apperror.NotFound("subscription not found")
	}
	updated.Plan = plan
	return updated, nil
}

// MySubscription returns the caller's current subscription.
func (s *Service) MySubscription(ctx context.Context, userID uint) (*model.UserSubscription, error) {
	rec, err := s.store.FindCurrentForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperror.NotFound("no subscription found")
		}
		return nil, apperror.DataAccess(err)
	}
	return rec, nil
}

// Limits returns the plan limits the user is entitled to right now.
func (s *Service) Limits(ctx context.Context, userID uint) (model.PlanLimits, error) {
	rec, err := s.store.FindCurrentForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return FreeLimits, nil
		}
		return model.PlanLimits{}, apperror.DataAccess(err)
	}
	return EntitledLimits(rec), nil
}

func (s *Service) owned(ctx context.Context, userID uint, stripeSubscriptionID string) (*model.UserSubscription, error) {
	rec, err := s.store.FindByStripeID(ctx, stripeSubscriptionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperror.NotFound("subscription not found")
		}
		return nil, apperror.DataAccess(err)
	}
	if rec.UserID != userID {
		return nil, apperror.Forbidden("subscription belongs to another user")
	}
	return rec, nil
}

func (s *Service) planForPrice(ctx context.Context, priceID, field string) (*model.SubscriptionPlan, error) {
	plan, err := s.store.FindPlanByPrice(ctx, priceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperror.InvalidInput("unknown price",
				apperror.FieldError{Field: field, Message: "is not a known plan price"})
		}
		return nil, apperror.DataAccess(err)
	}
	return plan, nil
}

func planName(plan *model.SubscriptionPlan) string {
	if plan == nil {
		return ""
	}
	return plan.Name
}
