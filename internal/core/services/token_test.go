package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novahub/internal/core/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("secret")
	tok, err := svc.GenerateToken("user-42", time.Hour)
	require.NoError(t, err)

	userID, err := svc.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestTokenMissing(t *testing.T) {
	svc := NewTokenService("secret")
	for _, tok := range []string{"", "   "} {
		_, err := svc.ValidateToken(tok)
		assert.ErrorIs(t, err, domain.ErrTokenMissing)
		assert.NotErrorIs(t, err, domain.ErrTokenInvalid)
	}
}

func TestTokenInvalid(t *testing.T) {
	svc := NewTokenService("secret")
	other := NewTokenService("other-secret")
	foreign, err := other.GenerateToken("user-1", time.Hour)
	require.NoError(t, err)

	expired := NewTokenService("secret")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.GenerateToken("user-1", time.Hour)
	require.NoError(t, err)

	noneTok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":       "not-a-jwt",
		"bad signature": foreign,
		"expired":       stale,
		"alg none":      noneTok,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(tok)
			assert.ErrorIs(t, err, domain.ErrTokenInvalid)
			assert.NotErrorIs(t, err, domain.ErrTokenMissing)
		})
	}
}

func TestTokenAcceptsUserIDClaim(t *testing.T) {
	svc := NewTokenService("secret")

	str, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": "abc", "username": "ann"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)
	got, err := svc.ValidateToken(str)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	num, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": 17}).
		SignedString([]byte("secret"))
	require.NoError(t, err)
	got, err = svc.ValidateToken(num)
	require.NoError(t, err)
	assert.Equal(t, "17", got)
}

func TestTokenWithoutIdentityIsInvalid(t *testing.T) {
	svc := NewTokenService("secret")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"username": "ann"}).
		SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(tok)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}
