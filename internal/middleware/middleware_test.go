package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactbook_backend/internal/model"
	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/logger"
	"contactbook_backend/pkg/utils/jwt"
)

type errorBody struct {
	Error struct {
		Code    string                `json:"code"`
		Message string                `json:"message"`
		Details []apperror.FieldError `json:"details"`
	} `json:"error"`
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger.Nop())})
}

func do(t *testing.T, app *fiber.App, method, path string, headers map[string]string) (int, errorBody) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body errorBody
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &body)
	return resp.StatusCode, body
}

func bearer(t *testing.T, userID uint, admin bool) map[string]string {
	t.Helper()
	jwt.Init("middleware-secret", time.Hour)
	token, err := jwt.GenerateToken(userID, "u@example.com", admin)
	require.NoError(t, err)
	return map[string]string{fiber.HeaderAuthorization: "Bearer " + token}
}

func TestAuthMiddleware(t *testing.T) {
	app := newApp()
	app.Get("/me", AuthMiddleware(), func(c *fiber.Ctx) error {
		claims, err := CurrentUser(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": claims.UserID})
	})

	status, body := do(t, app, "GET", "/me", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)

	status, _ = do(t, app, "GET", "/me", map[string]string{fiber.HeaderAuthorization: "Bearer nope"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = do(t, app, "GET", "/me", bearer(t, 5, false))
	assert.Equal(t, fiber.StatusOK, status)
}

func TestRequireAdmin(t *testing.T) {
	app := newApp()
	app.Post("/plans", AuthMiddleware(), RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	status, body := do(t, app, "POST", "/plans", bearer(t, 5, false))
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)

	status, _ = do(t, app, "POST", "/plans", bearer(t, 5, true))
	assert.Equal(t, fiber.StatusCreated, status)
}

func TestAPIKeyAuth(t *testing.T) {
	app := newApp()
	app.Get("/contacts", APIKeyAuth("k-123"), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/open", APIKeyAuth(""), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	status, _ := do(t, app, "GET", "/contacts", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = do(t, app, "GET", "/contacts", map[string]string{APIKeyHeader: "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = do(t, app, "GET", "/contacts", map[string]string{APIKeyHeader: "k-123"})
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = do(t, app, "GET", "/open", map[string]string{APIKeyHeader: ""})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

type stubLimits struct {
	limits model.PlanLimits
	err    error
}

func (s stubLimits) Limits(context.Context, uint) (model.PlanLimits, error) { return s.limits, s.err }

type stubCount int64

func (s stubCount) Count(context.Context, uint) (int64, error) { return int64(s), nil }

func TestCheckContactLimit(t *testing.T) {
	cases := []struct {
		name   string
		limits stubLimits
		count  stubCount
		want   int
	}{
		{"under cap", stubLimits{limits: model.PlanLimits{Contacts: 25}}, 24, fiber.StatusCreated},
		{"at cap", stubLimits{limits: model.PlanLimits{Contacts: 25}}, 25, fiber.StatusForbidden},
		{"unlimited", stubLimits{limits: model.PlanLimits{Contacts: -1}}, 1_000_000, fiber.StatusCreated},
		{"lookup failure", stubLimits{err: apperror.DataAccess(errors.New("db down"))}, 0, fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newApp()
			app.Post("/contacts", AuthMiddleware(), CheckContactLimit(tc.limits, tc.count), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusCreated)
			})
			status, body := do(t, app, "POST", "/contacts", bearer(t, 1, false))
			assert.Equal(t, tc.want, status)
			if tc.want == fiber.StatusForbidden {
				require.Len(t, body.Error.Details, 1)
				assert.Equal(t, "contacts", body.Error.Details[0].Field)
			}
		})
	}
}

func TestErrorHandlerShapes(t *testing.T) {
	app := newApp()
	app.Get("/invalid", func(c *fiber.Ctx) error {
		return apperror.InvalidInput("invalid search filter", apperror.FieldError{Field: "email", Message: "must be a valid email address"})
	})
	app.Get("/plain", func(c *fiber.Ctx) error { return errors.New("boom") })
	app.Get("/timeout", func(c *fiber.Ctx) error { return apperror.FromContext(context.DeadlineExceeded) })

	status, body := do(t, app, "GET", "/invalid", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", body.Error.Code)
	assert.Equal(t, "email", body.Error.Details[0].Field)

	status, body = do(t, app, "GET", "/plain", nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body.Error.Message)

	status, body = do(t, app, "GET", "/timeout", nil)
	assert.Equal(t, fiber.StatusGatewayTimeout, status)
	assert.Equal(t, "UPSTREAM_TIMEOUT", body.Error.Code)

	status, body = do(t, app, "GET", "/missing", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}
