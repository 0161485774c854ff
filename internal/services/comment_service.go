package services

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/commentbox/commentbox-backend/internal/models"
	"github.com/commentbox/commentbox-backend/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserBanned     = errors.New("user is banned from commenting")
	ErrUserNotFound   = errors.New("user not found")
	ErrParentNotFound = errors.New("parent comment not found")
	ErrInvalidComment = errors.New("comment body must be 1-4000 characters")
)

// CommentService attaches resolved user identities to comments and reads
// them back per page. It never resolves identities itself; callers pass
// the user id the identity resolver returned.
type CommentService struct {
	db     *gorm.DB
	filter *ContentFilter
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{
		db:     db,
		filter: NewContentFilter(),
	}
}

// Create stores a comment authored by userID on the given page. Flagged
// bodies are stored as pending; banned authors are rejected outright.
func (s *CommentService) Create(app *models.Application, userID uuid.UUID, ownerIdentifier, body string, parentID *uuid.UUID) (*models.Comment, error) {
	if len(body) == 0 || len(body) > 4000 {
		return nil, ErrInvalidComment
	}

	var author models.User
	if err := s.db.Scopes(tenant.ForApp(app.ID)).First(&author, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if author.IsBanned {
		return nil, ErrUserBanned
	}

	depth := 0
	if parentID != nil {
		var parent models.Comment
		err := s.db.Scopes(tenant.ForApp(app.ID)).
			Where("owner_identifier = ?", ownerIdentifier).
			First(&parent, "id = ?", *parentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParentNotFound
		}
		if err != nil {
			return nil, err
		}
		depth = parent.Depth + 1
	}

	status := models.CommentPublished
	if hold, reason := s.filter.NeedsReview(body); hold {
		status = models.CommentPending
		slog.Info("comment held for review", "app_key", app.AppKey, "user_id", userID, "reason", reason)
	}

	comment := &models.Comment{
		AppID:           app.ID,
		OwnerIdentifier: ownerIdentifier,
		Body:            body,
		UserID:          userID,
		ParentID:        parentID,
		Depth:           depth,
		Status:          status,
	}
	if err := s.db.Create(comment).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	if err := s.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("comments_count", gorm.Expr("comments_count + 1")).Error; err != nil {
		slog.Error("failed to bump comments count", "user_id", userID, "error", err)
	}

	return comment, nil
}

// ListForPage returns the published comments of one embedding page, newest
// first; reply-tree assembly is the widget client's job.
func (s *CommentService) ListForPage(appID uuid.UUID, ownerIdentifier string, page, limit int) ([]models.Comment, int64, error) {
	var comments []models.Comment
	var total int64

	offset := (page - 1) * limit

	query := s.db.Model(&models.Comment{}).
		Scopes(tenant.ForApp(appID)).
		Where("owner_identifier = ? AND status = ?", ownerIdentifier, models.CommentPublished)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&comments).Error

	return comments, total, err
}
