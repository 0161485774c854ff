package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Application is a tenant of the widget: one registered site (or set of
// sites) identified by its public AppKey. Rows are created by the admin
// flow; the widget backend only reads them.
type Application struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AppKey  string    `gorm:"size:64;not null;uniqueIndex" json:"app_key"`
	AppName string    `gorm:"size:255;not null" json:"app_name"`

	// AllowedDomains holds the embed allowlist: exact hostnames, "*", or
	// "*.suffix" prefix wildcards.
	AllowedDomains datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"allowed_domains"`

	// External auth (tokens issued by the embedding site's own system).
	ExternalRequireToken bool   `gorm:"default:false" json:"-"`
	ExternalTokenSecret  string `gorm:"size:255" json:"-"`
	ExternalUserSync     bool   `gorm:"default:false" json:"-"`

	// Social auth (OAuth via a Firebase-style token provider).
	SocialEnabled      bool                        `gorm:"default:false" json:"social_enabled"`
	SocialProviders    datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"social_providers"`
	FirebaseProjectID  string                      `gorm:"size:255" json:"-"`
	FirebaseAPIKey     string                      `gorm:"size:255" json:"-"`
	FirebaseAuthDomain string                      `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
