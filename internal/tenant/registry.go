package tenant

import (
	"errors"
	"time"

	"github.com/commentbox/commentbox-backend/internal/identity"
	"github.com/commentbox/commentbox-backend/internal/models"
	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// Registry resolves public app keys to registered applications. Every
// widget request carries an app key, so lookups are fronted by a short
// TTL cache; application rows change rarely (admin flow only).
type Registry struct {
	db    *gorm.DB
	cache *gocache.Cache
}

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{
		db:    db,
		cache: gocache.New(cacheTTL, cacheCleanup),
	}
}

// ByKey returns the application registered under appKey, or
// identity.ErrInvalidAppKey when none exists.
func (r *Registry) ByKey(appKey string) (*models.Application, error) {
	if cached, ok := r.cache.Get(appKey); ok {
		return cached.(*models.Application), nil
	}

	var app models.Application
	err := r.db.Where("app_key = ?", appKey).First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, identity.ErrInvalidAppKey
	}
	if err != nil {
		return nil, err
	}

	r.cache.Set(appKey, &app, cacheTTL)
	return &app, nil
}

// Invalidate drops a cached application, e.g. after an admin update.
func (r *Registry) Invalidate(appKey string) {
	r.cache.Delete(appKey)
}
