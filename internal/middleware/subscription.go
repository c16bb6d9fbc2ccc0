package middleware

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/subscription"
)

type LimitSource interface {
	Limits(ctx context.Context, userID uint) (model.PlanLimits, error)
}

type ContactCounter interface {
	Count(ctx context.Context, userID uint) (int64, error)
}

// CheckContactLimit rejects contact creation once the user's plan cap is
// reached.
func CheckContactLimit(limits LimitSource, contacts ContactCounter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := CurrentUser(c)
		if err != nil {
			return err
		}

		planLimits, err := limits.Limits(c.UserContext(), claims.UserID)
		if err != nil {
			return err
		}
		if planLimits.Contacts == subscription.Unlimited {
			return c.Next()
		}

		current, err := contacts.Count(c.UserContext(), claims.UserID)
		if err != nil {
			return err
		}
		if !subscription.Within(planLimits.Contacts, current) {
			return apperror.Forbidden("You have reached your contact limit. Please upgrade your plan.").
				WithDetails(apperror.FieldError{
					Field:   "contacts",
					Message: fmt.Sprintf("limit of %d reached", planLimits.Contacts),
				})
		}

		return c.Next()
	}
}
