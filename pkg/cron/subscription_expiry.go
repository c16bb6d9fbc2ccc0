package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"contactbook_backend/pkg/logger"
)

const DailySchedule = "0 9 * * *"

// WarningDays are the days-before-end on which expiry warnings go out.
var WarningDays = []int{7, 3}

// SubscriptionJobs is the work the daily job drives.
type SubscriptionJobs interface {
	SendExpiryWarnings(ctx context.Context, daysLeft int) (int, error)
	ResyncLapsed(ctx context.Context) (int, error)
}

// InitSubscriptionCron schedules the daily subscription job and starts the
// scheduler. Callers stop it on shutdown.
func InitSubscriptionCron(jobs SubscriptionJobs, log *logger.Logger, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(DailySchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		RunSubscriptionJobs(ctx, jobs, log)
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

// RunSubscriptionJobs sends expiry warnings and resyncs lapsed subscriptions.
// Failures are logged; one failing step does not stop the others.
func RunSubscriptionJobs(ctx context.Context, jobs SubscriptionJobs, log *logger.Logger) {
	log.Info("Checking for expiring subscriptions")

	for _, days := range WarningDays {
		sent, err := jobs.SendExpiryWarnings(ctx, days)
		if err != nil {
			log.Error("Error sending expiry warnings", "days_left", days, "error", err)
			continue
		}
		log.Info("Sent expiry warnings", "days_left", days, "count", sent)
	}

	resynced, err := jobs.ResyncLapsed(ctx)
	if err != nil {
		log.Error("Error resyncing lapsed subscriptions", "error", err)
		return
	}
	log.Info("Resynced lapsed subscriptions", "count", resynced)
}
