package handlers

import (
	"time"

	"github.com/commentbox/commentbox-backend/internal/database"
	"github.com/commentbox/commentbox-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
)

func Health(c *fiber.Ctx) error {
	overall, dbStatus := "ok", "ok"
	code := fiber.StatusOK
	if err := database.Ping(); err != nil {
		overall, dbStatus = "degraded", "unreachable"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(dto.HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        dbStatus,
	})
}
