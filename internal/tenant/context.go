package tenant

import (
	"errors"

	"github.com/commentbox/commentbox-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Fiber locals keys set by the app-key middleware.
const (
	localApp    = "app"
	localOrigin = "origin"
)

// SetApp stashes the resolved application and normalized origin hostname
// for downstream handlers.
func SetApp(c *fiber.Ctx, app *models.Application, origin string) {
	c.Locals(localApp, app)
	c.Locals(localOrigin, origin)
}

// GetApp returns the application resolved by the app-key middleware.
func GetApp(c *fiber.Ctx) *models.Application {
	if app, ok := c.Locals(localApp).(*models.Application); ok {
		return app
	}
	return nil
}

// GetOrigin returns the request's normalized origin hostname.
func GetOrigin(c *fiber.Ctx) string {
	if origin, ok := c.Locals(localOrigin).(string); ok {
		return origin
	}
	return ""
}

// GetTokenAppKey returns the app_key claim of the widget session JWT, so
// handlers can reject tokens issued for a different application.
func GetTokenAppKey(c *fiber.Ctx) string {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	appKey, _ := claims["app_key"].(string)
	return appKey
}

// GetUserID extracts the resolved user id from the widget session JWT.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}
