package billing

import (
	"context"
	"time"
)

// Subscription is the subset of processor state the service acts on.
type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	ItemID            string
	PriceID           string
	ClientSecret      string
	Metadata          map[string]string
}

type Price struct {
	ID         string
	Interval   string
	UnitAmount int64
}

// Client is the payment processor surface used by the subscription service.
type Client interface {
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)
	// CreateSubscription starts an incomplete subscription that waits for payment.
	CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (*Subscription, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*Subscription, error)
	// ChangePrice swaps the price on the subscription's existing item.
	ChangePrice(ctx context.Context, id, newPriceID string) (*Subscription, error)
	CreateProduct(ctx context.Context, name, description string) (string, error)
	// CreatePrice creates a recurring price for interval, or a one-time price
	// when interval is empty.
	CreatePrice(ctx context.Context, productID string, unitAmount int64, currency, interval string) (*Price, error)
}
