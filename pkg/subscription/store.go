package subscription

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"contactbook_backend/internal/model"
)

var ErrNotFound = errors.New("subscription: record not found")

// MutateFunc receives the locked record (nil when absent) and returns the
// record to write, or nil to leave storage untouched.
type MutateFunc func(cur *model.UserSubscription) *model.UserSubscription

type Store interface {
	Mutate(ctx context.Context, stripeSubscriptionID string, fn MutateFunc) (*model.UserSubscription, error)
	Insert(ctx context.Context, rec *model.UserSubscription) (bool, error)
	FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*model.UserSubscription, error)
	FindCurrentForUser(ctx context.Context, userID uint) (*model.UserSubscription, error)
	ListCancelingBetween(ctx context.Context, from, to time.Time) ([]model.UserSubscription, error)
	ListLapsed(ctx context.Context, before time.Time) ([]model.UserSubscription, error)

	FindPlanByPrice(ctx context.Context, priceID string) (*model.SubscriptionPlan, error)
	CreatePlan(ctx context.Context, plan *model.SubscriptionPlan) error
	ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error)

	FindUser(ctx context.Context, userID uint) (*model.User, error)
	SetUserCustomerID(ctx context.Context, userID uint, customerID string) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var errInsertRace = errors.New("subscription: concurrent insert")

// Mutate runs fn against the row locked with SELECT ... FOR UPDATE. When the
// row does not exist yet and a concurrent writer inserts it first, fn is run
// once more against the winner's row.
func (s *GormStore) Mutate(ctx context.Context, stripeSubscriptionID string, fn MutateFunc) (*model.UserSubscription, error) {
	out, err := s.mutateOnce(ctx, stripeSubscriptionID, fn)
	if errors.Is(err, errInsertRace) {
		out, err = s.mutateOnce(ctx, stripeSubscriptionID, fn)
	}
	return out, err
}

func (s *GormStore) mutateOnce(ctx context.Context, stripeSubscriptionID string, fn MutateFunc) (*model.UserSubscription, error) {
	var out *model.UserSubscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur *model.UserSubscription
		var row model.UserSubscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("stripe_subscription_id = ?", stripeSubscriptionID).
			First(&row).Error
		switch {
		case err == nil:
			cur = &row
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		next := fn(cur)
		if next == nil {
			out = cur
			return nil
		}
		next.StripeSubscriptionID = stripeSubscriptionID

		if cur == nil {
			res := tx.Omit(clause.Associations).
				Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "stripe_subscription_id"}}, DoNothing: true}).
				Create(next)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errInsertRace
			}
			out = next
			return nil
		}

		next.ID = cur.ID
		if err := tx.Omit(clause.Associations).Save(next).Error; err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Insert creates rec unless a row with the same processor id exists.
func (s *GormStore) Insert(ctx context.Context, rec *model.UserSubscription) (bool, error) {
	res := s.db.WithContext(ctx).Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "stripe_subscription_id"}}, DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) FindByStripeID(ctx context.Context, stripeSubscriptionID string) (*model.UserSubscription, error) {
	var rec model.UserSubscription
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Plan").
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// FindCurrentForUser returns the newest non-canceled subscription, falling
// back to the newest canceled one.
func (s *GormStore) FindCurrentForUser(ctx context.Context, userID uint) (*model.UserSubscription, error) {
	var rec model.UserSubscription
	err := s.db.WithContext(ctx).
		Preload("Plan.Prices", func(db *gorm.DB) *gorm.DB { return db.Order("plan_prices.id") }).
		Where("user_id = ?", userID).
		Order("(status = 'canceled'), created_at DESC, id DESC").
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// ListCancelingBetween returns subscriptions set to end in [from, to).
func (s *GormStore) ListCancelingBetween(ctx context.Context, from, to time.Time) ([]model.UserSubscription, error) {
	var recs []model.UserSubscription
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Plan").
		Where("cancel_at_period_end = ? AND status <> ?", true, model.SubscriptionCanceled).
		Where("current_period_end >= ? AND current_period_end < ?", from, to).
		Order("current_period_end, id").
		Find(&recs).Error
	return recs, err
}

// ListLapsed returns subscriptions whose period ended before the cutoff but
// that are not canceled locally.
func (s *GormStore) ListLapsed(ctx context.Context, before time.Time) ([]model.UserSubscription, error) {
	var recs []model.UserSubscription
	err := s.db.WithContext(ctx).
		Where("status <> ? AND current_period_end IS NOT NULL AND current_period_end < ?", model.SubscriptionCanceled, before).
		Order("current_period_end, id").
		Find(&recs).Error
	return recs, err
}

func (s *GormStore) FindPlanByPrice(ctx context.Context, priceID string) (*model.SubscriptionPlan, error) {
	var plan model.SubscriptionPlan
	err := s.db.WithContext(ctx).
		Preload("Prices", func(db *gorm.DB) *gorm.DB { return db.Order("plan_prices.id") }).
		Where("EXISTS (SELECT 1 FROM plan_prices pp WHERE pp.plan_id = subscription_plans.id AND pp.stripe_price_id = ?)", priceID).
		First(&plan).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &plan, nil
}

func (s *GormStore) CreatePlan(ctx context.Context, plan *model.SubscriptionPlan) error {
	return s.db.WithContext(ctx).Create(plan).Error
}

func (s *GormStore) ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	var plans []model.SubscriptionPlan
	err := s.db.WithContext(ctx).
		Preload("Prices", func(db *gorm.DB) *gorm.DB { return db.Order("plan_prices.id") }).
		Order("id").
		Find(&plans).Error
	return plans, err
}

func (s *GormStore) FindUser(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) SetUserCustomerID(ctx context.Context, userID uint, customerID string) error {
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("stripe_customer_id", customerID).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
