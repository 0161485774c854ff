package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Authentication source of a user row. A user's auth type changes at most
// once (guest -> social or guest -> external, via the upgrade flow) and
// never reverts.
const (
	AuthTypeExternal = "external"
	AuthTypeSocial   = "social"
	AuthTypeGuest    = "guest"
)

// User is a commenter identity scoped to one application. Exactly one of
// the three auth payloads is populated, matching AuthType; the natural key
// inside that payload (system id, provider uid, or session id) is unique
// per application.
type User struct {
	ID    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AppID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_users_app_ext_id;uniqueIndex:idx_users_app_provider_uid;uniqueIndex:idx_users_app_session;index:idx_users_app_email" json:"-"`

	DisplayName string  `gorm:"size:255;not null" json:"display_name"`
	Email       *string `gorm:"size:255;index:idx_users_app_email" json:"email,omitempty"`
	AvatarURL   *string `gorm:"size:1024" json:"avatar_url,omitempty"`

	AuthType string `gorm:"size:16;not null" json:"auth_type"`

	ExternalAuth *ExternalAuthData `gorm:"embedded;embeddedPrefix:ext_" json:"external_auth,omitempty"`
	SocialAuth   *SocialAuthData   `gorm:"embedded;embeddedPrefix:social_" json:"social_auth,omitempty"`
	GuestAuth    *GuestAuthData    `gorm:"embedded;embeddedPrefix:guest_" json:"guest_auth,omitempty"`

	Reputation    int  `gorm:"default:0" json:"reputation"`
	CommentsCount int  `gorm:"default:0" json:"comments_count"`
	IsBanned      bool `gorm:"default:false" json:"is_banned"`
	IsActive      bool `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExternalAuthData identifies a user authenticated by the embedding site's
// own system (WordPress, NextAuth, custom).
type ExternalAuthData struct {
	SystemID       string    `gorm:"column:system_id;size:255;uniqueIndex:idx_users_app_ext_id" json:"system_id"`
	SystemType     string    `gorm:"column:system_type;size:50" json:"system_type"`
	Role           string    `gorm:"column:role;size:50" json:"role"`
	LastSeenAt     time.Time `gorm:"column:last_seen_at" json:"last_seen_at"`
	TokenValidated bool      `gorm:"column:token_validated" json:"token_validated"`
}

// SocialAuthData identifies a user authenticated through the social token
// provider.
type SocialAuthData struct {
	ProviderUID   string    `gorm:"column:provider_uid;size:255;uniqueIndex:idx_users_app_provider_uid" json:"provider_uid"`
	Provider      string    `gorm:"column:provider;size:50" json:"provider"`
	ProviderEmail string    `gorm:"column:provider_email;size:255" json:"provider_email"`
	LastSignInAt  time.Time `gorm:"column:last_sign_in_at" json:"last_sign_in_at"`
	LastIDToken   string    `gorm:"column:last_id_token;type:text" json:"-"`
}

// GuestAuthData identifies an anonymous visitor by browser session.
type GuestAuthData struct {
	SessionID     string `gorm:"column:session_id;size:64;uniqueIndex:idx_users_app_session" json:"session_id"`
	EmailVerified bool   `gorm:"column:email_verified" json:"email_verified"`
	IPAddress     string `gorm:"column:ip_address;size:45" json:"-"`
}

// NaturalKey returns the auth-type specific identifier that deduplicates
// this user within its application.
func (u *User) NaturalKey() string {
	switch u.AuthType {
	case AuthTypeExternal:
		if u.ExternalAuth != nil {
			return u.ExternalAuth.SystemID
		}
	case AuthTypeSocial:
		if u.SocialAuth != nil {
			return u.SocialAuth.ProviderUID
		}
	case AuthTypeGuest:
		if u.GuestAuth != nil {
			return u.GuestAuth.SessionID
		}
	}
	return ""
}

// AfterFind clears payloads that do not match AuthType. Embedded pointer
// structs come back non-nil from scans even when every column is NULL, so
// the one-active-variant invariant is re-established here.
func (u *User) AfterFind(*gorm.DB) error {
	if u.AuthType != AuthTypeExternal {
		u.ExternalAuth = nil
	}
	if u.AuthType != AuthTypeSocial {
		u.SocialAuth = nil
	}
	if u.AuthType != AuthTypeGuest {
		u.GuestAuth = nil
	}
	return nil
}
