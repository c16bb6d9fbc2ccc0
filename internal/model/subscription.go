package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
)

type PriceInterval string

const (
	IntervalMonth    PriceInterval = "month"
	IntervalYear     PriceInterval = "year"
	IntervalLifetime PriceInterval = "lifetime"
)

// PlanLimits caps usage for a plan. -1 means unlimited.
type PlanLimits struct {
	Contacts int `json:"contacts" gorm:"not null;default:-1"`
	Storage  int `json:"storage" gorm:"not null;default:-1"`
	APICalls int `json:"apiCalls" gorm:"not null;default:-1"`
}

// PlanPricing holds the optional price of each billing tier.
type PlanPricing struct {
	Monthly  *decimal.Decimal `json:"monthly" gorm:"type:numeric(12,2)"`
	Annual   *decimal.Decimal `json:"annual" gorm:"type:numeric(12,2)"`
	Lifetime *decimal.Decimal `json:"lifetime" gorm:"type:numeric(12,2)"`
}

type SubscriptionPlan struct {
	gorm.Model
	Name            string           `json:"name" gorm:"uniqueIndex;not null"`
	Description     string           `json:"description"`
	Features        pq.StringArray   `json:"features" gorm:"type:text[];not null;default:'{}'"`
	Price           PlanPricing      `json:"price" gorm:"embedded;embeddedPrefix:price_"`
	Limits          PlanLimits       `json:"limits" gorm:"embedded;embeddedPrefix:limit_"`
	StripeProductID string           `json:"stripeProductId"`

	Prices []PlanPrice `json:"prices" gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE"`
}

// PlanPrice is one Stripe price created for a plan tier.
type PlanPrice struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	PlanID        uint          `json:"planId" gorm:"index;not null"`
	StripePriceID string        `json:"stripePriceId" gorm:"uniqueIndex;not null"`
	Interval      PriceInterval `json:"interval" gorm:"not null"`
	UnitAmount    int64         `json:"unitAmount" gorm:"not null"`
}

// PriceIDs returns the Stripe price ids in creation order.
func (p *SubscriptionPlan) PriceIDs() []string {
	ids := make([]string, 0, len(p.Prices))
	for _, price := range p.Prices {
		ids = append(ids, price.StripePriceID)
	}
	return ids
}

type UserSubscription struct {
	gorm.Model
	UserID               uint               `json:"userId" gorm:"index"`
	PlanID               *uint              `json:"planId" gorm:"index"`
	Status               SubscriptionStatus `json:"status" gorm:"not null;default:'incomplete'"`
	CurrentPeriodEnd     *time.Time         `json:"currentPeriodEnd"`
	CancelAtPeriodEnd    bool               `json:"cancelAtPeriodEnd" gorm:"not null;default:false"`
	StripeCustomerID     string             `json:"stripeCustomerId"`
	StripeSubscriptionID string             `json:"stripeSubscriptionId" gorm:"uniqueIndex;not null"`
	PriceID              string             `json:"priceId"`
	LastEventAt          *time.Time         `json:"-"`

	User User              `json:"-" gorm:"foreignKey:UserID"`
	Plan *SubscriptionPlan `json:"plan,omitempty" gorm:"foreignKey:PlanID"`
}

func (UserSubscription) TableName() string {
	return "subscriptions"
}
