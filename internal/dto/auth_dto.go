package dto

import "github.com/google/uuid"

type SocialSignInRequest struct {
	IDToken string `json:"id_token"`
}

type ExternalSignInRequest struct {
	Token string `json:"token"`
}

type GuestSignInRequest struct {
	// SessionID may be empty on the very first visit; the server then
	// generates one and returns it.
	SessionID string `json:"session_id"`
}

type UpgradeRequest struct {
	SessionID string `json:"session_id"`
	AuthType  string `json:"auth_type"`
	Token     string `json:"token"`
}

type ResolveResponse struct {
	UserID      uuid.UUID    `json:"user_id"`
	IsNew       bool         `json:"is_new"`
	Merged      bool         `json:"merged"`
	AccessToken string       `json:"access_token"`
	SessionID   string       `json:"session_id,omitempty"`
	User        UserResponse `json:"user"`
}

type UserResponse struct {
	ID            uuid.UUID `json:"id"`
	DisplayName   string    `json:"display_name"`
	Email         *string   `json:"email,omitempty"`
	AvatarURL     *string   `json:"avatar_url,omitempty"`
	AuthType      string    `json:"auth_type"`
	Reputation    int       `json:"reputation"`
	CommentsCount int       `json:"comments_count"`
}

// SocialConfigResponse is what the widget client reads to decide which
// social buttons to render. The provider client config is public by
// design; application secrets never appear here.
type SocialConfigResponse struct {
	Enabled        bool                  `json:"enabled"`
	Providers      []string              `json:"providers"`
	ProviderConfig *ProviderClientConfig `json:"provider_config,omitempty"`
}

type ProviderClientConfig struct {
	ProjectID  string `json:"project_id"`
	APIKey     string `json:"api_key"`
	AuthDomain string `json:"auth_domain"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
