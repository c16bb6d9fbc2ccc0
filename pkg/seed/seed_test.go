package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactbook_backend/internal/model"
	"contactbook_backend/internal/testutil"
	"contactbook_backend/pkg/logger"
	"contactbook_backend/pkg/subscription"
)

func TestSeedSubscriptionPlansIsIdempotent(t *testing.T) {
	db := testutil.Tx(t, testutil.DB(t))

	require.NoError(t, SeedSubscriptionPlans(db, logger.Nop()))
	require.NoError(t, SeedSubscriptionPlans(db, logger.Nop()))

	var plans []model.SubscriptionPlan
	require.NoError(t, db.Where("name = ?", subscription.FreePlanName).Find(&plans).Error)
	require.Len(t, plans, 1)
	assert.Equal(t, subscription.FreeLimits, plans[0].Limits)
	assert.Empty(t, plans[0].StripeProductID)
}
