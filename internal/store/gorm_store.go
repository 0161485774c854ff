// Package store is the Postgres-backed implementation of the identity
// resolver's UserStore contract.
package store

import (
	"errors"
	"fmt"

	"github.com/commentbox/commentbox-backend/internal/identity"
	"github.com/commentbox/commentbox-backend/internal/models"
	"github.com/commentbox/commentbox-backend/internal/tenant"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Store struct {
	db       *gorm.DB
	registry *tenant.Registry
}

func New(db *gorm.DB, registry *tenant.Registry) *Store {
	return &Store{db: db, registry: registry}
}

func (s *Store) ApplicationByKey(appKey string) (*models.Application, error) {
	return s.registry.ByKey(appKey)
}

func (s *Store) UserByNaturalKey(appID uuid.UUID, authType, key string) (*models.User, error) {
	column, err := naturalKeyColumn(authType)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = s.db.Scopes(tenant.ForApp(appID)).
		Where("auth_type = ?", authType).
		Where(column+" = ?", key).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateUser(u *models.User) error {
	if err := s.db.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return identity.ErrDuplicateUser
		}
		return err
	}
	return nil
}

func (s *Store) SaveUser(u *models.User) error {
	if err := s.db.Save(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return identity.ErrDuplicateUser
		}
		return err
	}
	return nil
}

// MergeGuest folds guest into the surviving authenticated row. Counter
// sums and the comment reassignment run before the guest delete inside one
// transaction; the reassignment is a plain WHERE user_id update, so a
// retry after a partial failure repeats it harmlessly.
func (s *Store) MergeGuest(guest, into *models.User) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("id = ?", into.ID).
			Updates(map[string]interface{}{
				"comments_count": gorm.Expr("comments_count + ?", guest.CommentsCount),
				"reputation":     gorm.Expr("reputation + ?", guest.Reputation),
			}).Error; err != nil {
			return fmt.Errorf("sum merged counters: %w", err)
		}

		if err := tx.Model(&models.Comment{}).
			Where("user_id = ?", guest.ID).
			Update("user_id", into.ID).Error; err != nil {
			return fmt.Errorf("reassign guest comments: %w", err)
		}

		// Delete last: a crash before this point leaves an orphaned guest
		// row, never a duplicated or lost comment.
		return tx.Delete(&models.User{}, "id = ?", guest.ID).Error
	})
	if err != nil {
		return err
	}

	var fresh models.User
	if err := s.db.First(&fresh, "id = ?", into.ID).Error; err != nil {
		return fmt.Errorf("reload merged user: %w", err)
	}
	*into = fresh
	return nil
}

func naturalKeyColumn(authType string) (string, error) {
	switch authType {
	case models.AuthTypeExternal:
		return "ext_system_id", nil
	case models.AuthTypeSocial:
		return "social_provider_uid", nil
	case models.AuthTypeGuest:
		return "guest_session_id", nil
	default:
		return "", fmt.Errorf("unknown auth type %q", authType)
	}
}
