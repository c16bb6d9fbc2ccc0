package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/logger"
)

// ErrorHandler renders every error as {"error": {code, message, details}}.
func ErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr, ok := apperror.As(err)
		if !ok {
			appErr = fromFiber(err)
		}

		status := appErr.HTTPStatus()
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("request failed", "method", c.Method(), "path", c.Path(), "code", string(appErr.Kind), "error", err)
		case appErr.Kind == apperror.KindAuthenticity:
			log.Warn("request not authentic", "method", c.Method(), "path", c.Path(), "error", err)
		}

		return c.Status(status).JSON(fiber.Map{"error": appErr})
	}
}

func fromFiber(err error) *apperror.Error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return apperror.Wrap(err, apperror.KindDataAccess, "internal server error")
	}
	switch fe.Code {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusRequestEntityTooLarge:
		return apperror.Wrap(err, apperror.KindInvalidInput, fe.Message)
	case fiber.StatusUnauthorized:
		return apperror.Wrap(err, apperror.KindUnauthorized, fe.Message)
	case fiber.StatusForbidden:
		return apperror.Wrap(err, apperror.KindForbidden, fe.Message)
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return apperror.Wrap(err, apperror.KindNotFound, fe.Message)
	case fiber.StatusConflict:
		return apperror.Wrap(err, apperror.KindConflict, fe.Message)
	default:
		return apperror.Wrap(err, apperror.KindDataAccess, "internal server error")
	}
}

// RateLimited renders the limiter's rejection in the common error shape.
func RateLimited(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "RATE_LIMITED",
			"message": "Too many requests, please try again later.",
		},
	})
}
