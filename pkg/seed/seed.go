package seed

import (
	"github.com/lib/pq"
	"gorm.io/gorm"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/logger"
	"contactbook_backend/pkg/subscription"
)

// SeedSubscriptionPlans makes sure the local Free plan exists. Paid plans are
// created through the admin endpoint so their processor prices exist.
func SeedSubscriptionPlans(db *gorm.DB, log *logger.Logger) error {
	plans := []model.SubscriptionPlan{
		{
			Name:        subscription.FreePlanName,
			Description: "Get started with a personal contact book",
			Features:    pq.StringArray(subscription.FreeFeatures),
			Limits:      subscription.FreeLimits,
		},
	}

	for _, plan := range plans {
		result := db.Where(model.SubscriptionPlan{Name: plan.Name}).FirstOrCreate(&plan)
		if result.Error != nil {
			log.Error("Error creating plan", "plan", plan.Name, "error", result.Error)
			return result.Error
		}
		if result.RowsAffected > 0 {
			log.Info("Seeded subscription plan", "plan", plan.Name)
		}
	}
	return nil
}
