package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/commentbox/commentbox-backend/internal/config"
	"github.com/commentbox/commentbox-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

// SessionService issues the short-lived widget session JWT a client uses
// for comment posting after its identity has been resolved once.
type SessionService struct {
	cfg *config.Config
}

func NewSessionService(cfg *config.Config) *SessionService {
	return &SessionService{cfg: cfg}
}

func (s *SessionService) IssueToken(app *models.Application, user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":       user.ID.String(),
		"app_key":   app.AppKey,
		"auth_type": user.AuthType,
		"name":      user.DisplayName,
		"iat":       time.Now().Unix(),
		"exp":       time.Now().Add(s.cfg.JWTSessionExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// NewGuestSessionID generates a fresh browser session identifier:
// 32 random bytes, URL-safe base64.
func NewGuestSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
