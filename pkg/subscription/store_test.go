package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactbook_backend/internal/model"
	"contactbook_backend/internal/testutil"
)

func TestGormStore(t *testing.T) {
	db := testutil.Tx(t, testutil.DB(t))
	store := NewGormStore(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "subscriber")

	plan := &model.SubscriptionPlan{
		Name:   "Pro-" + time.Now().Format("150405.000000"),
		Limits: model.PlanLimits{Contacts: 500, Storage: -1, APICalls: -1},
		Prices: []model.PlanPrice{
			{StripePriceID: "price_store_m_" + user.Email, Interval: model.IntervalMonth, UnitAmount: 999},
			{StripePriceID: "price_store_y_" + user.Email, Interval: model.IntervalYear, UnitAmount: 9900},
		},
	}
	require.NoError(t, store.CreatePlan(ctx, plan))

	t.Run("plan by price", func(t *testing.T) {
		found, err := store.FindPlanByPrice(ctx, plan.Prices[1].StripePriceID)
		require.NoError(t, err)
		assert.Equal(t, plan.ID, found.ID)
		assert.Equal(t, plan.PriceIDs(), found.PriceIDs())

		_, err = store.FindPlanByPrice(ctx, "price_missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	stripeID := "sub_store_" + user.Email

	t.Run("mutate inserts then updates", func(t *testing.T) {
		ev := upsert(model.SubscriptionIncomplete, t0)
		ev.SubscriptionID = stripeID
		ev.UserID = user.ID
		planID := plan.ID
		ev.PlanID = &planID

		rec, err := store.Mutate(ctx, stripeID, func(cur *model.UserSubscription) *model.UserSubscription {
			assert.Nil(t, cur)
			next, _ := Reduce(cur, ev)
			return next
		})
		require.NoError(t, err)
		require.NotZero(t, rec.ID)

		rec, err = store.Mutate(ctx, stripeID, func(cur *model.UserSubscription) *model.UserSubscription {
			require.NotNil(t, cur)
			next, _ := Reduce(cur, kindEvent(EventPaymentSucceeded, t0.Add(time.Minute)))
			return next
		})
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionActive, rec.Status)

		found, err := store.FindByStripeID(ctx, stripeID)
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionActive, found.Status)
		assert.Equal(t, user.Email, found.User.Email)
		require.NotNil(t, found.Plan)
		assert.Equal(t, plan.Name, found.Plan.Name)
	})

	t.Run("insert does not overwrite", func(t *testing.T) {
		inserted, err := store.Insert(ctx, &model.UserSubscription{
			UserID: user.ID, Status: model.SubscriptionIncomplete, StripeSubscriptionID: stripeID,
		})
		require.NoError(t, err)
		assert.False(t, inserted)

		found, err := store.FindByStripeID(ctx, stripeID)
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionActive, found.Status)
	})

	t.Run("current prefers live subscriptions", func(t *testing.T) {
		_, err := store.Insert(ctx, &model.UserSubscription{
			UserID: user.ID, Status: model.SubscriptionCanceled, StripeSubscriptionID: stripeID + "_old",
		})
		require.NoError(t, err)

		cur, err := store.FindCurrentForUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, stripeID, cur.StripeSubscriptionID)
		require.NotNil(t, cur.Plan)
		assert.Len(t, cur.Plan.Prices, 2)
	})

	t.Run("canceling window and lapsed", func(t *testing.T) {
		now := time.Now().UTC()
		end := now.Add(-time.Hour)
		_, err := store.Mutate(ctx, stripeID, func(cur *model.UserSubscription) *model.UserSubscription {
			next := *cur
			next.CancelAtPeriodEnd = true
			next.CurrentPeriodEnd = &end
			return &next
		})
		require.NoError(t, err)

		canceling, err := store.ListCancelingBetween(ctx, now.Add(-2*time.Hour), now)
		require.NoError(t, err)
		var mine *model.UserSubscription
		for i := range canceling {
			if canceling[i].StripeSubscriptionID == stripeID {
				mine = &canceling[i]
			}
		}
		require.NotNil(t, mine)
		assert.Equal(t, user.Email, mine.User.Email)

		lapsed, err := store.ListLapsed(ctx, now)
		require.NoError(t, err)
		ids := make([]string, 0, len(lapsed))
		for _, rec := range lapsed {
			ids = append(ids, rec.StripeSubscriptionID)
		}
		assert.Contains(t, ids, stripeID)
	})

	t.Run("customer id", func(t *testing.T) {
		require.NoError(t, store.SetUserCustomerID(ctx, user.ID, "cus_store"))
		u, err := store.FindUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "cus_store", u.StripeCustomerID)
	})
}
