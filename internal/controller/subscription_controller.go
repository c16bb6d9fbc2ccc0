package controller

import (
	"github.com/gofiber/fiber/v2"

	"contactbook_backend/internal/middleware"
	"contactbook_backend/pkg/logger"
	"contactbook_backend/pkg/subscription"
)

const stripeSignatureHeader = "Stripe-Signature"

var (
	subscriptions   *subscription.Service
	subscriptionLog = logger.Nop()
)

func InitSubscriptionController(svc *subscription.Service, log *logger.Logger) {
	subscriptions = svc
	if log != nil {
		subscriptionLog = log
	}
}

func ListPlans(c *fiber.Ctx) error {
	plans, err := subscriptions.ListPlans(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(plans)
}

// CreatePlan registers a plan and its Stripe prices. Admin only.
func CreatePlan(c *fiber.Ctx) error {
	input := new(subscription.PlanInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	plan, err := subscriptions.CreatePlan(c.UserContext(), *input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(plan)
}

func CreateSubscription(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	input := new(subscription.CreateInput)
	if err := parseBody(c, input); err != nil {
		return err
	}

	result, err := subscriptions.CreateSubscription(c.UserContext(), claims.UserID, *input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// CancelSubscription schedules cancellation at the end of the billing period.
func CancelSubscription(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	rec, err := subscriptions.Cancel(c.UserContext(), claims.UserID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":      "Subscription will be cancelled at the end of the billing period",
		"subscription": rec,
	})
}

func ReactivateSubscription(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	rec, err := subscriptions.Reactivate(c.UserContext(), claims.UserID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":      "Subscription reactivated",
		"subscription": rec,
	})
}

func ChangeSubscriptionPlan(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	input := new(subscription.ChangePlanInput)
	if err := parseBody(c, input); err != nil {
		return err
	}
	rec, err := subscriptions.ChangePlan(c.UserContext(), claims.UserID, c.Params("id"), *input)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

func GetMySubscription(c *fiber.Ctx) error {
	claims, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}
	rec, err := subscriptions.MySubscription(c.UserContext(), claims.UserID)
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// HandleStripeWebhook verifies and reconciles one Stripe event. Storage
// failures answer 500 so Stripe redelivers.
func HandleStripeWebhook(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	outcome, err := subscriptions.HandleWebhook(c.UserContext(), payload, c.Get(stripeSignatureHeader))
	if err != nil {
		subscriptionLog.Warn("Webhook rejected", "error", err)
		return err
	}
	return c.JSON(fiber.Map{"received": true, "outcome": outcome})
}
