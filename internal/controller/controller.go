package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"contactbook_backend/pkg/apperror"
)

// parseBody decodes the request body into out.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperror.Wrap(err, apperror.KindInvalidInput, "Invalid request body")
	}
	return nil
}

// paramID reads a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperror.InvalidInput("Invalid "+name,
			apperror.FieldError{Field: name, Message: "must be a positive integer"})
	}
	return uint(id), nil
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}
