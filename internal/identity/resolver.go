// Package identity reconciles guest, social, and externally-authenticated
// visitor identities into one canonical user row per application. It is
// the only place that creates or merges users; comment attribution always
// happens causally after a resolve call returns.
package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/commentbox/commentbox-backend/internal/models"
	"github.com/commentbox/commentbox-backend/internal/origin"
	"github.com/commentbox/commentbox-backend/internal/token"
	"github.com/google/uuid"
)

var (
	ErrInvalidAppKey      = errors.New("invalid app key")
	ErrOriginNotAllowed   = errors.New("origin not allowed for this app")
	ErrSocialAuthDisabled = errors.New("social authentication not enabled for this app")
	ErrGuestNotFound      = errors.New("guest user not found")
	ErrSessionRequired    = errors.New("guest session id is required")
	ErrBadAuthType        = errors.New("auth type must be social or external")
)

// Resolution is the outcome of a resolve or upgrade call.
type Resolution struct {
	User   *models.User
	IsNew  bool
	Merged bool
}

// Resolver is the identity state machine. Per (application, natural key)
// the reachable states are: absent, guest-only, authenticated; upgrade
// moves guest-only to authenticated, merging when both already exist.
type Resolver struct {
	store    UserStore
	verifier *token.Verifier
	now      func() time.Time
}

func NewResolver(store UserStore, verifier *token.Verifier) *Resolver {
	return &Resolver{
		store:    store,
		verifier: verifier,
		now:      time.Now,
	}
}

// gate loads the application and enforces the embed allowlist. Every
// boundary operation passes through here before touching user state.
func (r *Resolver) gate(appKey, requestOrigin string) (*models.Application, error) {
	app, err := r.store.ApplicationByKey(appKey)
	if err != nil {
		return nil, err
	}
	if !origin.Allowed(app.AllowedDomains, requestOrigin) {
		return nil, fmt.Errorf("%w: %q", ErrOriginNotAllowed, requestOrigin)
	}
	return app, nil
}

// ResolveSocial verifies a social ID token and finds or creates the social
// user it identifies.
func (r *Resolver) ResolveSocial(appKey, rawToken, requestOrigin string) (*Resolution, error) {
	app, err := r.gate(appKey, requestOrigin)
	if err != nil {
		return nil, err
	}
	if !app.SocialEnabled {
		return nil, ErrSocialAuthDisabled
	}

	claims, err := r.verifier.VerifySocial(rawToken, app)
	if err != nil {
		return nil, err
	}
	return r.resolveAuthenticated(app, models.AuthTypeSocial, claims, rawToken)
}

// ResolveExternal verifies an external-system token and finds or creates
// the external user it identifies.
func (r *Resolver) ResolveExternal(appKey, rawToken, requestOrigin string) (*Resolution, error) {
	app, err := r.gate(appKey, requestOrigin)
	if err != nil {
		return nil, err
	}

	claims, err := r.verifier.VerifyExternal(rawToken, app)
	if err != nil {
		return nil, err
	}
	return r.resolveAuthenticated(app, models.AuthTypeExternal, claims, rawToken)
}

// ResolveGuest finds or creates the anonymous user for a browser session.
func (r *Resolver) ResolveGuest(appKey, sessionID, requestOrigin, ip string) (*Resolution, error) {
	app, err := r.gate(appKey, requestOrigin)
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	existing, err := r.store.UserByNaturalKey(app.ID, models.AuthTypeGuest, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Resolution{User: existing}, nil
	}

	guest := &models.User{
		AppID:       app.ID,
		DisplayName: "Anonymous",
		AuthType:    models.AuthTypeGuest,
		GuestAuth: &models.GuestAuthData{
			SessionID: sessionID,
			IPAddress: ip,
		},
		IsActive: true,
	}
	if err := r.store.CreateUser(guest); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			return r.recheck(app, models.AuthTypeGuest, sessionID)
		}
		return nil, err
	}
	return &Resolution{User: guest, IsNew: true}, nil
}

// UpgradeGuest converts a guest session into an authenticated identity.
// With no prior authenticated user the guest row is upgraded in place;
// when one exists the guest is merged into it (stats summed, comments
// reassigned, guest row deleted).
func (r *Resolver) UpgradeGuest(appKey, sessionID, authType, rawToken, requestOrigin string) (*Resolution, error) {
	app, err := r.gate(appKey, requestOrigin)
	if err != nil {
		return nil, err
	}

	var claims *token.ClaimSet
	switch authType {
	case models.AuthTypeSocial:
		if !app.SocialEnabled {
			return nil, ErrSocialAuthDisabled
		}
		claims, err = r.verifier.VerifySocial(rawToken, app)
	case models.AuthTypeExternal:
		claims, err = r.verifier.VerifyExternal(rawToken, app)
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadAuthType, authType)
	}
	if err != nil {
		return nil, err
	}

	guest, err := r.store.UserByNaturalKey(app.ID, models.AuthTypeGuest, sessionID)
	if err != nil {
		return nil, err
	}
	if guest == nil {
		return nil, ErrGuestNotFound
	}

	existing, err := r.store.UserByNaturalKey(app.ID, authType, claims.ProviderUID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return r.merge(guest, existing)
	}

	r.convertInPlace(guest, authType, claims, rawToken)
	if err := r.store.SaveUser(guest); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			// Lost a race against a parallel sign-in with the same
			// provider identity; fall back to the merge path.
			winner, lookupErr := r.store.UserByNaturalKey(app.ID, authType, claims.ProviderUID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if winner != nil {
				// The guest row still holds its session key: SaveUser
				// rejected the whole update.
				guest.AuthType = models.AuthTypeGuest
				return r.merge(guest, winner)
			}
		}
		return nil, err
	}
	slog.Info("guest upgraded", "app_key", appKey, "auth_type", authType, "user_id", guest.ID)
	return &Resolution{User: guest}, nil
}

// resolveAuthenticated is the shared lookup-or-create for social and
// external identities. Exactly one row ever exists per natural key.
func (r *Resolver) resolveAuthenticated(app *models.Application, authType string, claims *token.ClaimSet, rawToken string) (*Resolution, error) {
	existing, err := r.store.UserByNaturalKey(app.ID, authType, claims.ProviderUID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		r.touch(existing, app, claims, rawToken)
		if err := r.store.SaveUser(existing); err != nil {
			return nil, err
		}
		return &Resolution{User: existing}, nil
	}

	user := r.newAuthenticatedUser(app.ID, authType, claims, rawToken)
	if err := r.store.CreateUser(user); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			// Concurrent resolve with the same natural key; the row now
			// exists, so this call degrades to a plain lookup.
			return r.recheck(app, authType, claims.ProviderUID)
		}
		return nil, err
	}
	return &Resolution{User: user, IsNew: true}, nil
}

func (r *Resolver) recheck(app *models.Application, authType, key string) (*Resolution, error) {
	user, err := r.store.UserByNaturalKey(app.ID, authType, key)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user vanished after duplicate-key race (app=%s key=%s)", app.AppKey, key)
	}
	return &Resolution{User: user}, nil
}

func (r *Resolver) newAuthenticatedUser(appID uuid.UUID, authType string, claims *token.ClaimSet, rawToken string) *models.User {
	user := &models.User{
		AppID:       appID,
		DisplayName: claims.BestDisplayName(),
		AuthType:    authType,
		IsActive:    true,
	}
	if claims.Email != "" {
		email := claims.Email
		user.Email = &email
	}
	if claims.AvatarURL != "" {
		avatar := claims.AvatarURL
		user.AvatarURL = &avatar
	}

	now := r.now()
	switch authType {
	case models.AuthTypeSocial:
		user.SocialAuth = &models.SocialAuthData{
			ProviderUID:   claims.ProviderUID,
			Provider:      claims.Provider,
			ProviderEmail: claims.Email,
			LastSignInAt:  now,
			LastIDToken:   rawToken,
		}
	case models.AuthTypeExternal:
		user.ExternalAuth = &models.ExternalAuthData{
			SystemID:       claims.ProviderUID,
			SystemType:     claims.SystemType,
			Role:           claims.Role,
			LastSeenAt:     now,
			TokenValidated: claims.Validated,
		}
	}
	return user
}

// touch refreshes last-seen state on a repeat sign-in. When the
// application opted into user sync, profile fields follow the external
// system's claims.
func (r *Resolver) touch(user *models.User, app *models.Application, claims *token.ClaimSet, rawToken string) {
	now := r.now()
	switch user.AuthType {
	case models.AuthTypeSocial:
		if user.SocialAuth != nil {
			user.SocialAuth.LastSignInAt = now
			user.SocialAuth.LastIDToken = rawToken
		}
	case models.AuthTypeExternal:
		if user.ExternalAuth != nil {
			user.ExternalAuth.LastSeenAt = now
			user.ExternalAuth.TokenValidated = claims.Validated
			user.ExternalAuth.Role = claims.Role
		}
		if app.ExternalUserSync {
			user.DisplayName = claims.BestDisplayName()
			if claims.Email != "" {
				email := claims.Email
				user.Email = &email
			}
			if claims.AvatarURL != "" {
				avatar := claims.AvatarURL
				user.AvatarURL = &avatar
			}
		}
	}
}

// convertInPlace rewrites a guest row as an authenticated one. Claims take
// precedence for profile fields; guest values survive only where the
// claims are silent. The guest payload is cleared so exactly one payload
// stays populated.
func (r *Resolver) convertInPlace(guest *models.User, authType string, claims *token.ClaimSet, rawToken string) {
	if claims.DisplayName != "" || claims.Email != "" {
		guest.DisplayName = claims.BestDisplayName()
	}
	if claims.Email != "" {
		email := claims.Email
		guest.Email = &email
	}
	if claims.AvatarURL != "" {
		avatar := claims.AvatarURL
		guest.AvatarURL = &avatar
	}

	now := r.now()
	guest.AuthType = authType
	switch authType {
	case models.AuthTypeSocial:
		guest.SocialAuth = &models.SocialAuthData{
			ProviderUID:   claims.ProviderUID,
			Provider:      claims.Provider,
			ProviderEmail: claims.Email,
			LastSignInAt:  now,
			LastIDToken:   rawToken,
		}
	case models.AuthTypeExternal:
		guest.ExternalAuth = &models.ExternalAuthData{
			SystemID:       claims.ProviderUID,
			SystemType:     claims.SystemType,
			Role:           claims.Role,
			LastSeenAt:     now,
			TokenValidated: claims.Validated,
		}
	}
	guest.GuestAuth = nil
}

func (r *Resolver) merge(guest, into *models.User) (*Resolution, error) {
	if err := r.store.MergeGuest(guest, into); err != nil {
		return nil, err
	}
	slog.Info("guest merged into authenticated user",
		"guest_id", guest.ID, "user_id", into.ID,
		"comments_count", into.CommentsCount, "reputation", into.Reputation)
	return &Resolution{User: into, Merged: true}, nil
}
