package models

import (
	"time"

	"github.com/google/uuid"
)

// Moderation status of a comment.
const (
	CommentPublished = "published"
	CommentPending   = "pending"
	CommentHidden    = "hidden"
	CommentDeleted   = "deleted"
)

// Comment is a single comment on an embedding page. OwnerIdentifier is the
// page's logical id as chosen by the embedding site. Comments reference
// their author by UserID only and never embed user data.
type Comment struct {
	ID    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	AppID uuid.UUID `gorm:"type:uuid;not null;index:idx_comments_page" json:"-"`

	OwnerIdentifier string `gorm:"size:255;not null;index:idx_comments_page" json:"owner_identifier"`
	Body            string `gorm:"type:text;not null" json:"body"`

	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Depth    int        `gorm:"default:0" json:"depth"`

	Status string `gorm:"size:16;not null;default:'published';index:idx_comments_page" json:"status"`

	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}
