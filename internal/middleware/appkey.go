package middleware

import (
	"errors"
	"strings"

	"github.com/commentbox/commentbox-backend/internal/dto"
	"github.com/commentbox/commentbox-backend/internal/identity"
	"github.com/commentbox/commentbox-backend/internal/origin"
	"github.com/commentbox/commentbox-backend/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

// Paths that are not tenant-scoped.
var appKeySkipPaths = []string{
	"/api/health",
}

// AppKey resolves the requesting application from the X-App-Key header
// (or app_key query param for script-tag clients) and stashes it together
// with the normalized Origin hostname. It does NOT enforce the domain
// allowlist; that stays inside the identity resolver so it can never be
// bypassed by a new route.
func AppKey(registry *tenant.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		for _, skip := range appKeySkipPaths {
			if strings.HasPrefix(path, skip) {
				return c.Next()
			}
		}

		appKey := c.Get("X-App-Key")
		if appKey == "" {
			appKey = c.Query("app_key")
		}
		if appKey == "" {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "X-App-Key header is required",
			})
		}

		app, err := registry.ByKey(appKey)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidAppKey) {
				return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
					Error:   true,
					Message: "Invalid app key: " + appKey,
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Internal server error",
			})
		}

		requestOrigin := c.Get(fiber.HeaderOrigin)
		if requestOrigin == "" {
			requestOrigin = c.Get(fiber.HeaderReferer)
		}
		tenant.SetApp(c, app, origin.Hostname(requestOrigin))
		return c.Next()
	}
}
