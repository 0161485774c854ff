package identity

import (
	"sync"
	"testing"
	"time"

	"github.com/commentbox/commentbox-backend/internal/models"
	"github.com/commentbox/commentbox-backend/internal/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory UserStore with the same uniqueness and merge
// semantics as the GORM implementation.
type memStore struct {
	mu       sync.Mutex
	apps     map[string]*models.Application
	users    map[uuid.UUID]*models.User
	comments map[uuid.UUID]*models.Comment

	beforeCreate func() // test hook to simulate racing writers
}

func newMemStore(apps ...*models.Application) *memStore {
	s := &memStore{
		apps:     make(map[string]*models.Application),
		users:    make(map[uuid.UUID]*models.User),
		comments: make(map[uuid.UUID]*models.Comment),
	}
	for _, app := range apps {
		if app.ID == uuid.Nil {
			app.ID = uuid.New()
		}
		s.apps[app.AppKey] = app
	}
	return s
}

func (s *memStore) ApplicationByKey(appKey string) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[appKey]
	if !ok {
		return nil, ErrInvalidAppKey
	}
	return app, nil
}

func (s *memStore) UserByNaturalKey(appID uuid.UUID, authType, key string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(appID, authType, key), nil
}

func (s *memStore) findLocked(appID uuid.UUID, authType, key string) *models.User {
	for _, u := range s.users {
		if u.AppID == appID && u.AuthType == authType && u.NaturalKey() == key {
			copied := *u
			return &copied
		}
	}
	return nil
}

func (s *memStore) CreateUser(u *models.User) error {
	if s.beforeCreate != nil {
		hook := s.beforeCreate
		s.beforeCreate = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(u.AppID, u.AuthType, u.NaturalKey()) != nil {
		return ErrDuplicateUser
	}
	u.ID = uuid.New()
	copied := *u
	s.users[u.ID] = &copied
	return nil
}

func (s *memStore) SaveUser(u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.users {
		if id != u.ID && other.AppID == u.AppID && other.AuthType == u.AuthType && other.NaturalKey() == u.NaturalKey() {
			return ErrDuplicateUser
		}
	}
	copied := *u
	s.users[u.ID] = &copied
	return nil
}

func (s *memStore) MergeGuest(guest, into *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.users[into.ID]
	target.CommentsCount += guest.CommentsCount
	target.Reputation += guest.Reputation
	for _, c := range s.comments {
		if c.UserID == guest.ID {
			c.UserID = into.ID
		}
	}
	delete(s.users, guest.ID)
	into.CommentsCount = target.CommentsCount
	into.Reputation = target.Reputation
	return nil
}

func (s *memStore) addComment(appID, userID uuid.UUID) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &models.Comment{ID: uuid.New(), AppID: appID, UserID: userID, Body: "x", Status: models.CommentPublished}
	s.comments[c.ID] = c
	return c.ID
}

func (s *memStore) userCount(appID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.users {
		if u.AppID == appID {
			n++
		}
	}
	return n
}

func testApp() *models.Application {
	return &models.Application{
		ID:             uuid.New(),
		AppKey:         "acme",
		AppName:        "Acme Blog",
		AllowedDomains: []string{"*.acme.com"},
		SocialEnabled:  true,
	}
}

func socialToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	require.NoError(t, err)
	return raw
}

func newTestResolver(store UserStore) *Resolver {
	return NewResolver(store, token.NewVerifier())
}

func TestResolveGuestIdempotent(t *testing.T) {
	app := testApp()
	store := newMemStore(app)
	r := newTestResolver(store)

	first, err := r.ResolveGuest("acme", "s1", "blog.acme.com", "10.0.0.1")
	require.NoError(t, err)
	require.True(t, first.IsNew)
	require.Equal(t, models.AuthTypeGuest, first.User.AuthType)
	require.Equal(t, "Anonymous", first.User.DisplayName)

	second, err := r.ResolveGuest("acme", "s1", "blog.acme.com", "10.0.0.1")
	require.NoError(t, err)
	require.False(t, second.IsNew)
	require.Equal(t, first.User.ID, second.User.ID)
	require.Equal(t, 1, store.userCount(app.ID))
}

func TestResolveGuestRequiresSession(t *testing.T) {
	r := newTestResolver(newMemStore(testApp()))
	_, err := r.ResolveGuest("acme", "", "blog.acme.com", "")
	require.ErrorIs(t, err, ErrSessionRequired)
}

func TestResolveSocialIdempotent(t *testing.T) {
	app := testApp()
	store := newMemStore(app)
	r := newTestResolver(store)

	raw := socialToken(t, jwt.MapClaims{"sub": "g1", "email": "alice@example.com", "name": "Alice"})

	first, err := r.ResolveSocial("acme", raw, "blog.acme.com")
	require.NoError(t, err)
	require.True(t, first.IsNew)
	require.Equal(t, "Alice", first.User.DisplayName)
	require.Equal(t, "g1", first.User.SocialAuth.ProviderUID)
	require.Equal(t, 0, first.User.Reputation)
	require.False(t, first.User.IsBanned)
	require.True(t, first.User.IsActive)

	later := socialToken(t, jwt.MapClaims{"sub": "g1", "email": "alice@example.com", "name": "Alice"})
	second, err := r.ResolveSocial("acme", later, "blog.acme.com")
	require.NoError(t, err)
	require.False(t, second.IsNew)
	require.Equal(t, first.User.ID, second.User.ID)
	require.Equal(t, later, second.User.SocialAuth.LastIDToken)
	require.Equal(t, 1, store.userCount(app.ID))
}

func TestResolveSocialDisabled(t *testing.T) {
	app := testApp()
	app.SocialEnabled = false
	r := newTestResolver(newMemStore(app))

	raw := socialToken(t, jwt.MapClaims{"sub": "g1", "email": "a@b.c"})
	_, err := r.ResolveSocial("acme", raw, "blog.acme.com")
	require.ErrorIs(t, err, ErrSocialAuthDisabled)
}

func TestGateRejections(t *testing.T) {
	app := testApp()
	store := newMemStore(app)
	r := newTestResolver(store)
	raw := socialToken(t, jwt.MapClaims{"sub": "g1", "email": "a@b.c"})

	_, err := r.ResolveSocial("nope", raw, "blog.acme.com")
	require.ErrorIs(t, err, ErrInvalidAppKey)

	_, err = r.ResolveSocial("acme", raw, "acme.com.evil.com")
	require.ErrorIs(t, err, ErrOriginNotAllowed)

	// acme.com matches *.acme.com under the dot-boundary policy.
	_, err = r.ResolveSocial("acme", raw, "acme.com")
	require.NoError(t, err)

	require.Equal(t, 1, store.userCount(app.ID))
}

func TestInvalidTokenCreatesNoRow(t *testing.T) {
	app := testApp()
	store := newMemStore(app)
	r := newTestResolver(store)

	expired := socialToken(t, jwt.MapClaims{
		"sub": "g1", "email": "a@b.c",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	_, err := r.ResolveSocial("acme", expired, "blog.acme.com")
	require.ErrorIs(t, err, token.ErrInvalidToken)

	_, err = r.ResolveSocial("acme", "not-a-jwt", "blog.acme.com")
	require.ErrorIs(t, err, token.ErrInvalidToken)

	require.Equal(t, 0, store.userCount(app.ID))
}

func TestResolveExternalUserSync(t *testing.T) {
	app := testApp()
	app.ExternalUserSync = true
	store := newMemStore(app)
	r := newTestResolver(store)

	first, err := r.ResolveExternal("acme", socialToken(t, jwt.MapClaims{
		"sub": "wp-1", "name": "Old Name", "system_type": "wordpress",
	}), "blog.acme.com")
	require.NoError(t, err)
	require.True(t, first.IsNew)
	require.Equal(t, "wordpress", first.User.ExternalAuth.SystemType)

	second, err := r.ResolveExternal("acme", socialToken(t, jwt.MapClaims{
		"sub": "wp-1", "name": "New Name", "system_type": "wordpress",
	}), "blog.acme.com")
	require.NoError(t, err)
	require.False(t, second.IsNew)
	require.Equal(t, "New Name", second.User.DisplayName)
}

func TestUpgradeWithoutCollision(t *testing.T) {
	app := testApp()
	store := newMemStore(app)
	r := newTestResolver(store)

	guest, err := r.ResolveGuest("acme", "s1", "blog.acme.com", "")
	require.NoError(t, err)

	raw := socialToken(t, jwt.MapClaims{"sub": "g1", "email": "alice@example.com", "name": "Alice"})
	res, err := r.UpgradeGuest("acme", "s1", models.AuthTypeSocial, raw, "blog.acme.com")
	require.NoError(t, err)
	require.False(t, res.Merged)
	require.Equal(t, guest.User.ID, res.User.ID, "upgrade keeps the guest row")
	require.Equal(t, models.AuthTypeSocial, res.User.AuthType)
	require.Nil(t, res.User.GuestAuth)
	require.NotNil(t, res.User.SocialAuth)
	require.Equal(t, "Alice", res.User.DisplayName)
	require.Equal(t, 1, store.userCount(app.ID))

	// The session is gone as a guest key; the social identity resolves.
	_, err = r.UpgradeGuest("acme", "s1", models.AuthTypeSocial, raw, "blog.acme.com")
	require.ErrorIs(t, err, ErrGuestNotFound)
}

func TestUpgradeMergeCollision(t *testing.T) {
	app := testApp()
	store := newMemStore(app)
	r := newTestResolver(store)

	// Existing social user g1 with 5 comments and reputation 10.
	raw := socialToken(t, jwt.MapClaims{"sub": "g1", "email": "alice@example.com", "name": "Alice"})
	social, err := r.ResolveSocial("acme", raw, "blog.acme.com")
	require.NoError(t, err)
	store.mu.Lock()
	store.users[social.User.ID].CommentsCount = 5
	store.users[social.User.ID].Reputation = 10
	store.mu.Unlock()

	// Guest session s1 with two comments.
	guest, err := r.ResolveGuest("acme", "s1", "blog.acme.com", "")
	require.NoError(t, err)
	c1 := store.addComment(app.ID, guest.User.ID)
	c2 := store.addComment(app.ID, guest.User.ID)
	store.mu.Lock()
	store.users[guest.User.ID].CommentsCount = 2
	store.mu.Unlock()

	res, err := r.UpgradeGuest("acme", "s1", models.AuthTypeSocial, raw, "blog.acme.com")
	require.NoError(t, err)
	require.True(t, res.Merged)
	require.Equal(t, social.User.ID, res.User.ID)
	require.Equal(t, 7, res.User.CommentsCount)
	require.Equal(t, 10, res.User.Reputation)

	// One surviving row, zero guest rows, comments reassigned.
	require.Equal(t, 1, store.userCount(app.ID))
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Equal(t, social.User.ID, store.comments[c1].UserID)
	require.Equal(t, social.User.ID, store.comments[c2].UserID)
}

func TestUpgradeUnknownSession(t *testing.T) {
	r := newTestResolver(newMemStore(testApp()))
	raw := socialToken(t, jwt.MapClaims{"sub": "g1", "email": "a@b.c"})
	_, err := r.UpgradeGuest("acme", "missing", models.AuthTypeSocial, raw, "blog.acme.com")
	require.ErrorIs(t, err, ErrGuestNotFound)
}

func TestUpgradeRejectsBadAuthType(t *testing.T) {
	r := newTestResolver(newMemStore(testApp()))
	_, err := r.UpgradeGuest("acme", "s1", "guest", "tok", "blog.acme.com")
	require.ErrorIs(t, err, ErrBadAuthType)
}

func TestDuplicateCreateRaceDegradesToLookup(t *testing.T) {
	app := testApp()
	store := newMemStore(app)
	r := newTestResolver(store)

	// A concurrent writer inserts the same natural key between the
	// resolver's lookup and its insert.
	store.beforeCreate = func() {
		racer := &models.User{
			ID:          uuid.New(),
			AppID:       app.ID,
			DisplayName: "Racer",
			AuthType:    models.AuthTypeGuest,
			GuestAuth:   &models.GuestAuthData{SessionID: "s1"},
			IsActive:    true,
		}
		store.users[racer.ID] = racer
	}

	res, err := r.ResolveGuest("acme", "s1", "blog.acme.com", "")
	require.NoError(t, err)
	require.False(t, res.IsNew)
	require.Equal(t, "Racer", res.User.DisplayName)
	require.Equal(t, 1, store.userCount(app.ID))
}
