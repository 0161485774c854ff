package dto

import (
	"github.com/commentbox/commentbox-backend/internal/models"
	"github.com/google/uuid"
)

type CreateCommentRequest struct {
	OwnerIdentifier string     `json:"owner_identifier"`
	Body            string     `json:"body"`
	ParentID        *uuid.UUID `json:"parent_id,omitempty"`
}

type CommentListResponse struct {
	Comments []models.Comment `json:"comments"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
}
