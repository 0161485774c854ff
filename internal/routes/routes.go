package routes

import (
	"time"

	"github.com/commentbox/commentbox-backend/internal/config"
	"github.com/commentbox/commentbox-backend/internal/handlers"
	"github.com/commentbox/commentbox-backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	commentHandler *handlers.CommentHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 120 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               120,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	// Health (no tenant required)
	api.Get("/health", handlers.Health)

	// Identity resolution — public (app-key middleware already applied
	// globally). Stricter rate limit: 20 req/min per IP.
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               20,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Get("/config", authHandler.Config)
	auth.Post("/social", authHandler.Social)
	auth.Post("/external", authHandler.External)
	auth.Post("/guest", authHandler.Guest)
	auth.Post("/upgrade", authHandler.Upgrade)

	// Comments — reading is public, posting needs a widget session token.
	// JWT middleware is applied per route so it never touches the public
	// endpoints.
	api.Get("/comments", commentHandler.List)
	api.Post("/comments", middleware.JWTProtected(cfg), commentHandler.Create)
}
