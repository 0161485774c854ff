package middleware

import (
	"github.com/commentbox/commentbox-backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS is deliberately permissive at the HTTP layer: the widget is meant
// to be embedded anywhere, and the real embedding decision is the
// per-application domain allowlist enforced by the identity resolver.
func CORS(cfg *config.Config) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Authorization, Accept, X-App-Key",
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: false,
	})
}
