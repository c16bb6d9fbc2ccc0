package subscription

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/utils/validation"
)

type PlanInput struct {
	Name          string            `json:"name" validate:"required,max=100"`
	Description   string            `json:"description" validate:"max=1000"`
	Features      []string          `json:"features"`
	Price         model.PlanPricing `json:"price"`
	Limits        *model.PlanLimits `json:"limits"`
}

type tier struct {
	field    string
	interval model.PriceInterval
	recur    string
	amount   *decimal.Decimal
}

func (in *PlanInput) tiers() []tier {
	return []tier{
		{field: "price.monthly", interval: model.IntervalMonth, recur: "month", amount: in.Price.Monthly},
		{field: "price.annual", interval: model.IntervalYear, recur: "year", amount: in.Price.Annual},
		{field: "price.lifetime", interval: model.IntervalLifetime, amount: in.Price.Lifetime},
	}
}

func (in *PlanInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)

	if err := validation.Struct(in, "invalid plan"); err != nil {
		return err
	}

	var details []apperror.FieldError
	for _, t := range in.tiers() {
		if t.amount != nil && t.amount.IsNegative() {
			details = append(details, apperror.FieldError{Field: t.field, Message: "must not be negative"})
		}
	}
	if in.Limits != nil {
		for field, v := range map[string]int{
			"limits.contacts": in.Limits.Contacts,
			"limits.storage":  in.Limits.Storage,
			"limits.apiCalls": in.Limits.APICalls,
		} {
			if v < Unlimited {
				details = append(details, apperror.FieldError{Field: field, Message: "must be -1 or greater"})
			}
		}
	}
	if len(details) > 0 {
		sortDetails(details)
		return apperror.InvalidInput("invalid plan", details...)
	}
	return nil
}

// MinorUnits converts a decimal amount to integer cents.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// CreatePlan creates one processor product and one price per supplied tier,
// then stores the plan with its price ids.
func (s *Service) CreatePlan(ctx context.Context, in PlanInput) (*model.SubscriptionPlan, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	productID, err := s.billing.CreateProduct(ctx, in.Name, in.Description)
	if err != nil {
		s.log.Error("create product failed", "plan", in.Name, "error", err)
		return nil, apperror.Upstream(err, "could not create plan product")
	}

	plan := &model.SubscriptionPlan{
		Name:            in.Name,
		Description:     in.Description,
		Features:        normalizeFeatures(in.Features),
		Price:           in.Price,
		Limits:          model.PlanLimits{Contacts: Unlimited, Storage: Unlimited, APICalls: Unlimited},
		StripeProductID: productID,
	}
	if in.Limits != nil {
		plan.Limits = *in.Limits
	}

	for _, t := range in.tiers() {
		if t.amount == nil {
			continue
		}
		amount := MinorUnits(*t.amount)
		price, err := s.billing.CreatePrice(ctx, productID, amount, s.currency, t.recur)
		if err != nil {
			s.log.Error("create price failed", "plan", in.Name, "product_id", productID, "interval", t.interval, "error", err)
			return nil, apperror.Upstream(err, fmt.Sprintf("could not create %s price", t.interval))
		}
		plan.Prices = append(plan.Prices, model.PlanPrice{
			StripePriceID: price.ID,
			Interval:      t.interval,
			UnitAmount:    amount,
		})
	}

	if err := s.store.CreatePlan(ctx, plan); err != nil {
		s.log.Error("persist plan failed", "plan", in.Name, "product_id", productID, "error", err)
		return nil, apperror.DataAccess(err)
	}
	s.log.Info("plan created", "plan_id", plan.ID, "product_id", productID, "prices", len(plan.Prices))
	return plan, nil
}

func (s *Service) ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return nil, apperror.DataAccess(err)
	}
	return plans, nil
}

func normalizeFeatures(features []string) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func sortDetails(details []apperror.FieldError) {
	sort.SliceStable(details, func(i, j int) bool { return details[i].Field < details[j].Field })
}
