package token

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/commentbox/commentbox-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signedHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func externalApp(secret string) *models.Application {
	return &models.Application{
		AppKey:               "acme-widget",
		ExternalRequireToken: secret != "",
		ExternalTokenSecret:  secret,
	}
}

func TestVerifyExternalSigned(t *testing.T) {
	v := NewVerifier()
	app := externalApp("s3cret")

	raw := signedHS256(t, "s3cret", jwt.MapClaims{
		"sub":   "wp-123",
		"email": "alice@example.com",
		"name":  "Alice",
		"role":  "editor",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	cs, err := v.VerifyExternal(raw, app)
	require.NoError(t, err)
	require.Equal(t, "wp-123", cs.ProviderUID)
	require.Equal(t, "alice@example.com", cs.Email)
	require.Equal(t, "Alice", cs.DisplayName)
	require.Equal(t, "editor", cs.Role)
	require.Equal(t, "custom", cs.SystemType)
	require.True(t, cs.Validated)
}

func TestVerifyExternalSignedFailures(t *testing.T) {
	v := NewVerifier()
	app := externalApp("s3cret")
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name string
		raw  string
	}{
		{"wrong secret", signedHS256(t, "other", jwt.MapClaims{"sub": "u1", "email": "a@b.c", "exp": future})},
		{"expired", signedHS256(t, "s3cret", jwt.MapClaims{"sub": "u1", "email": "a@b.c", "exp": time.Now().Add(-time.Minute).Unix()})},
		{"missing exp", signedHS256(t, "s3cret", jwt.MapClaims{"sub": "u1", "email": "a@b.c"})},
		{"missing subject", signedHS256(t, "s3cret", jwt.MapClaims{"email": "a@b.c", "exp": future})},
		{"no contact claims", signedHS256(t, "s3cret", jwt.MapClaims{"sub": "u1", "exp": future})},
		{"audience mismatch", signedHS256(t, "s3cret", jwt.MapClaims{"sub": "u1", "email": "a@b.c", "aud": "other-app", "exp": future})},
		{"not a jwt", "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.VerifyExternal(tt.raw, app)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerifyExternalAudienceMatch(t *testing.T) {
	v := NewVerifier()
	app := externalApp("s3cret")

	raw := signedHS256(t, "s3cret", jwt.MapClaims{
		"sub":   "u1",
		"email": "a@b.c",
		"aud":   "acme-widget",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.VerifyExternal(raw, app)
	require.NoError(t, err)
}

func TestVerifyExternalUnsigned(t *testing.T) {
	v := NewVerifier()
	app := externalApp("")

	// Signature is irrelevant in unsigned mode; claims still are.
	raw := signedHS256(t, "anything", jwt.MapClaims{
		"user_id":     "wp-9",
		"name":        "Bob",
		"system_type": "wordpress",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	cs, err := v.VerifyExternal(raw, app)
	require.NoError(t, err)
	require.Equal(t, "wp-9", cs.ProviderUID)
	require.Equal(t, "wordpress", cs.SystemType)
	require.False(t, cs.Validated)

	expired := signedHS256(t, "anything", jwt.MapClaims{
		"sub": "wp-9", "name": "Bob",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	_, err = v.VerifyExternal(expired, app)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifySocialUnverifiedMode(t *testing.T) {
	v := NewVerifier()
	app := &models.Application{AppKey: "acme-widget", SocialEnabled: true}

	raw := signedHS256(t, "irrelevant", jwt.MapClaims{
		"sub":     "g1",
		"email":   "carol@example.com",
		"picture": "https://cdn.example.com/carol.png",
		"firebase": map[string]interface{}{
			"sign_in_provider": "github.com",
		},
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	cs, err := v.VerifySocial(raw, app)
	require.NoError(t, err)
	require.Equal(t, "g1", cs.ProviderUID)
	require.Equal(t, "github.com", cs.Provider)
	require.Equal(t, "https://cdn.example.com/carol.png", cs.AvatarURL)
	require.False(t, cs.Validated)
	require.Equal(t, "carol", cs.BestDisplayName())
}

func TestVerifySocialSigned(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		doc := jwksDocument{Keys: []jwk{{
			Kty: "RSA",
			Kid: "kid-1",
			Use: "sig",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}}
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	}))
	defer srv.Close()

	v := NewVerifier()
	v.jwks.jwksURL = srv.URL

	app := &models.Application{
		AppKey:            "acme-widget",
		SocialEnabled:     true,
		FirebaseProjectID: "acme-proj",
	}

	makeToken := func(claims jwt.MapClaims) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
		tok.Header["kid"] = "kid-1"
		raw, err := tok.SignedString(key)
		require.NoError(t, err)
		return raw
	}

	good := makeToken(jwt.MapClaims{
		"iss":   "https://securetoken.google.com/acme-proj",
		"aud":   "acme-proj",
		"sub":   "firebase-uid-1",
		"email": "dave@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	cs, err := v.VerifySocial(good, app)
	require.NoError(t, err)
	require.Equal(t, "firebase-uid-1", cs.ProviderUID)
	require.True(t, cs.Validated)

	badIssuer := makeToken(jwt.MapClaims{
		"iss":   "https://securetoken.google.com/other-proj",
		"aud":   "acme-proj",
		"sub":   "firebase-uid-1",
		"email": "dave@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	_, err = v.VerifySocial(badIssuer, app)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := makeToken(jwt.MapClaims{
		"iss":   "https://securetoken.google.com/acme-proj",
		"aud":   "acme-proj",
		"sub":   "firebase-uid-1",
		"email": "dave@example.com",
		"exp":   time.Now().Add(-time.Minute).Unix(),
	})
	_, err = v.VerifySocial(expired, app)
	require.ErrorIs(t, err, ErrInvalidToken)

	// HS256 token forged with the "none of your keys" trick must not pass.
	forged := signedHS256(t, "forged", jwt.MapClaims{
		"iss":   "https://securetoken.google.com/acme-proj",
		"aud":   "acme-proj",
		"sub":   "firebase-uid-1",
		"email": "dave@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	_, err = v.VerifySocial(forged, app)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestBestDisplayNameFallbacks(t *testing.T) {
	require.Equal(t, "Eve", (&ClaimSet{DisplayName: "Eve", Email: "e@x.y"}).BestDisplayName())
	require.Equal(t, "eve", (&ClaimSet{Email: "eve@x.y"}).BestDisplayName())
	require.Equal(t, "Anonymous", (&ClaimSet{}).BestDisplayName())
}
