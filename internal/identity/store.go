package identity

import (
	"errors"

	"github.com/commentbox/commentbox-backend/internal/models"
	"github.com/google/uuid"
)

// ErrDuplicateUser is returned by UserStore.CreateUser and SaveUser when a
// write would violate the per-application natural-key uniqueness. The
// resolver treats it as "somebody else won the race" and re-reads.
var ErrDuplicateUser = errors.New("user with this natural key already exists")

// UserStore is the persistence contract the resolver runs against. The
// store is the single source of truth and serializes concurrent writers
// per natural key through its unique indexes.
type UserStore interface {
	// ApplicationByKey returns the application registered under appKey, or
	// ErrInvalidAppKey when none matches.
	ApplicationByKey(appKey string) (*models.Application, error)

	// UserByNaturalKey looks up the single user identified by
	// (application, auth type, natural key). Returns (nil, nil) when absent.
	UserByNaturalKey(appID uuid.UUID, authType, key string) (*models.User, error)

	// CreateUser inserts a new user row. Must fail with ErrDuplicateUser
	// when the natural key is already taken.
	CreateUser(u *models.User) error

	// SaveUser persists in-place mutations of an existing row (timestamp
	// touches, guest upgrades). Must fail with ErrDuplicateUser when the
	// update would claim an already-taken natural key.
	SaveUser(u *models.User) error

	// MergeGuest folds the guest row into the authenticated row: sums
	// reputation and comment counters, reassigns every comment authored by
	// the guest, then deletes the guest row. The whole operation is one
	// transaction; on stores without multi-row atomicity the reassignment
	// must be idempotent and the delete must come last. Counter fields of
	// into are updated in place on success.
	MergeGuest(guest, into *models.User) error
}
