package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/utils/jwt"
)

const userLocalsKey = "user"

// AuthMiddleware validates the bearer token and stores its claims in
// c.Locals("user").
func AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return apperror.Unauthorized("missing bearer token")
		}

		claims, err := jwt.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			return apperror.Unauthorized("invalid or expired token")
		}

		c.Locals(userLocalsKey, claims)
		return c.Next()
	}
}

// CurrentUser returns the claims stored by AuthMiddleware.
func CurrentUser(c *fiber.Ctx) (*jwt.Claims, error) {
	claims, ok := c.Locals(userLocalsKey).(*jwt.Claims)
	if !ok || claims == nil {
		return nil, apperror.Unauthorized("authentication required")
	}
	return claims, nil
}
