package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"contactbook_backend/pkg/apperror"
)

const APIKeyHeader = "X-API-Key"

// RequireAdmin only lets admin users through. It must run after
// AuthMiddleware.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := CurrentUser(c)
		if err != nil {
			return err
		}
		if !claims.IsAdmin {
			return apperror.Forbidden("admin access required")
		}
		return c.Next()
	}
}

// APIKeyAuth requires the static API key in the X-API-Key header. An empty
// configured key rejects every request.
func APIKeyAuth(apiKey string) fiber.Handler {
	expected := []byte(apiKey)
	return func(c *fiber.Ctx) error {
		got := []byte(c.Get(APIKeyHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			return apperror.Unauthorized("invalid API key")
		}
		return c.Next()
	}
}
