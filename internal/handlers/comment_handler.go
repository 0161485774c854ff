package handlers

import (
	"errors"
	"log/slog"

	"github.com/commentbox/commentbox-backend/internal/dto"
	"github.com/commentbox/commentbox-backend/internal/services"
	"github.com/commentbox/commentbox-backend/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

type CommentHandler struct {
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// Create posts a comment as the user identified by the widget session
// token. The token must have been issued for the requesting application.
func (h *CommentHandler) Create(c *fiber.Ctx) error {
	app := tenant.GetApp(c)
	if tenant.GetTokenAppKey(c) != app.AppKey {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Session token was issued for a different application",
		})
	}

	userID, err := tenant.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error:   true,
			Message: "Unauthorized",
		})
	}

	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.OwnerIdentifier == "" {
		return badRequest(c, "owner_identifier is required")
	}

	comment, err := h.comments.Create(app, userID, req.OwnerIdentifier, req.Body, req.ParentID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidComment):
			return badRequest(c, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			return status(c, fiber.StatusNotFound, err)
		case errors.Is(err, services.ErrParentNotFound):
			return status(c, fiber.StatusNotFound, err)
		case errors.Is(err, services.ErrUserBanned):
			return status(c, fiber.StatusForbidden, err)
		default:
			slog.Error("comment create failed", "app_key", app.AppKey, "user_id", userID, "error", err)
			return serverError(c)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(comment)
}

// List returns the published comments of one page. Public; no session
// token needed, only a valid app key.
func (h *CommentHandler) List(c *fiber.Ctx) error {
	app := tenant.GetApp(c)

	ownerIdentifier := c.Query("owner_identifier")
	if ownerIdentifier == "" {
		return badRequest(c, "owner_identifier query param is required")
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 100 {
		limit = 50
	}

	comments, total, err := h.comments.ListForPage(app.ID, ownerIdentifier, page, limit)
	if err != nil {
		slog.Error("comment list failed", "app_key", app.AppKey, "owner_identifier", ownerIdentifier, "error", err)
		return serverError(c)
	}

	return c.JSON(dto.CommentListResponse{
		Comments: comments,
		Total:    total,
		Page:     page,
		Limit:    limit,
	})
}
