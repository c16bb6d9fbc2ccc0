package subscription

import "contactbook_backend/internal/model"

// Unlimited marks a limit without a cap.
const Unlimited = -1

const FreePlanName = "Free"

// FreeLimits apply to users without an active or past-due subscription.
var FreeLimits = model.PlanLimits{
	Contacts: 25,
	Storage:  100,
	APICalls: 1000,
}

// FreeFeatures is the feature list shown for the free tier.
var FreeFeatures = []string{
	"Up to 25 contacts",
	"Conversation history",
	"Tag and keyword search",
}

// Within reports whether adding one more item keeps current under limit.
func Within(limit int, current int64) bool {
	if limit == Unlimited {
		return true
	}
	return current < int64(limit)
}

// EntitledLimits returns the limits a subscription grants. Past-due keeps the
// paid limits while the processor retries payment.
func EntitledLimits(sub *model.UserSubscription) model.PlanLimits {
	if sub == nil || sub.Plan == nil {
		return FreeLimits
	}
	switch sub.Status {
	case model.SubscriptionActive, model.SubscriptionPastDue:
		return sub.Plan.Limits
	default:
		return FreeLimits
	}
}
