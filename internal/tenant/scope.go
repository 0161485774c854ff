package tenant

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ForApp returns a GORM scope that filters by owning application.
func ForApp(appID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("app_id = ?", appID)
	}
}
