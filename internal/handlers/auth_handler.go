package handlers

import (
	"errors"
	"log/slog"

	"github.com/commentbox/commentbox-backend/internal/dto"
	"github.com/commentbox/commentbox-backend/internal/identity"
	"github.com/commentbox/commentbox-backend/internal/models"
	"github.com/commentbox/commentbox-backend/internal/services"
	"github.com/commentbox/commentbox-backend/internal/tenant"
	"github.com/commentbox/commentbox-backend/internal/token"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	resolver *identity.Resolver
	sessions *services.SessionService
}

func NewAuthHandler(resolver *identity.Resolver, sessions *services.SessionService) *AuthHandler {
	return &AuthHandler{resolver: resolver, sessions: sessions}
}

func (h *AuthHandler) Social(c *fiber.Ctx) error {
	app := tenant.GetApp(c)
	var req dto.SocialSignInRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.IDToken == "" {
		return badRequest(c, "id_token is required")
	}

	res, err := h.resolver.ResolveSocial(app.AppKey, req.IDToken, tenant.GetOrigin(c))
	if err != nil {
		return resolveError(c, err)
	}
	return h.respond(c, app, res, "")
}

func (h *AuthHandler) External(c *fiber.Ctx) error {
	app := tenant.GetApp(c)
	var req dto.ExternalSignInRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Token == "" {
		return badRequest(c, "token is required")
	}

	res, err := h.resolver.ResolveExternal(app.AppKey, req.Token, tenant.GetOrigin(c))
	if err != nil {
		return resolveError(c, err)
	}
	return h.respond(c, app, res, "")
}

func (h *AuthHandler) Guest(c *fiber.Ctx) error {
	app := tenant.GetApp(c)
	var req dto.GuestSignInRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	issuedSession := ""
	if req.SessionID == "" {
		sid, err := services.NewGuestSessionID()
		if err != nil {
			slog.Error("session id generation failed", "app_key", app.AppKey, "error", err)
			return serverError(c)
		}
		req.SessionID = sid
		issuedSession = sid
	}

	res, err := h.resolver.ResolveGuest(app.AppKey, req.SessionID, tenant.GetOrigin(c), c.IP())
	if err != nil {
		return resolveError(c, err)
	}
	return h.respond(c, app, res, issuedSession)
}

func (h *AuthHandler) Upgrade(c *fiber.Ctx) error {
	app := tenant.GetApp(c)
	var req dto.UpgradeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.SessionID == "" || req.Token == "" {
		return badRequest(c, "session_id and token are required")
	}

	res, err := h.resolver.UpgradeGuest(app.AppKey, req.SessionID, req.AuthType, req.Token, tenant.GetOrigin(c))
	if err != nil {
		return resolveError(c, err)
	}
	return h.respond(c, app, res, "")
}

// Config tells the widget client which social sign-in buttons to render.
// Secrets (the external token secret) never leave the server; the
// provider client config is public by nature.
func (h *AuthHandler) Config(c *fiber.Ctx) error {
	app := tenant.GetApp(c)
	if !app.SocialEnabled {
		return c.JSON(dto.SocialConfigResponse{Enabled: false})
	}

	resp := dto.SocialConfigResponse{
		Enabled:   true,
		Providers: app.SocialProviders,
	}
	if app.FirebaseProjectID != "" {
		resp.ProviderConfig = &dto.ProviderClientConfig{
			ProjectID:  app.FirebaseProjectID,
			APIKey:     app.FirebaseAPIKey,
			AuthDomain: app.FirebaseAuthDomain,
		}
	}
	return c.JSON(resp)
}

func (h *AuthHandler) respond(c *fiber.Ctx, app *models.Application, res *identity.Resolution, issuedSession string) error {
	accessToken, err := h.sessions.IssueToken(app, res.User)
	if err != nil {
		slog.Error("session token issue failed", "app_key", app.AppKey, "user_id", res.User.ID, "error", err)
		return serverError(c)
	}

	return c.JSON(dto.ResolveResponse{
		UserID:      res.User.ID,
		IsNew:       res.IsNew,
		Merged:      res.Merged,
		AccessToken: accessToken,
		SessionID:   issuedSession,
		User:        toUserResponse(res.User),
	})
}

func toUserResponse(u *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:            u.ID,
		DisplayName:   u.DisplayName,
		Email:         u.Email,
		AvatarURL:     u.AvatarURL,
		AuthType:      u.AuthType,
		Reputation:    u.Reputation,
		CommentsCount: u.CommentsCount,
	}
}

// resolveError maps the resolver's error taxonomy onto HTTP statuses.
// Every failure is terminal for the call; nothing here retries.
func resolveError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidAppKey):
		return status(c, fiber.StatusBadRequest, err)
	case errors.Is(err, identity.ErrOriginNotAllowed):
		return status(c, fiber.StatusForbidden, err)
	case errors.Is(err, token.ErrInvalidToken):
		return status(c, fiber.StatusUnauthorized, err)
	case errors.Is(err, identity.ErrSocialAuthDisabled),
		errors.Is(err, identity.ErrSessionRequired),
		errors.Is(err, identity.ErrBadAuthType):
		return status(c, fiber.StatusBadRequest, err)
	case errors.Is(err, identity.ErrGuestNotFound):
		return status(c, fiber.StatusNotFound, err)
	default:
		slog.Error("identity resolution failed", "path", c.Path(), "error", err)
		return serverError(c)
	}
}

func status(c *fiber.Ctx, code int, err error) error {
	return c.Status(code).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: true, Message: msg})
}

func serverError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: true, Message: "Internal server error"})
}
