package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	auth := NewAuthService("test-secret-key-for-jwt")
	require.True(t, auth.Enabled())

	token, err := auth.IssueJWT("ci-bot", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	p, err := auth.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "ci-bot", p.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), p.ExpiresAt, time.Minute)
}

func TestJWTWithoutExpiry(t *testing.T) {
	auth := NewAuthService("secret")
	token, err := auth.IssueJWT("forever", 0)
	require.NoError(t, err)

	p, err := auth.ValidateJWT(token)
	require.NoError(t, err)
	assert.True(t, p.ExpiresAt.IsZero())
}

func TestJWTExpired(t *testing.T) {
	auth := NewAuthService("secret")
	token, err := auth.IssueJWT("old", -time.Hour)
	require.NoError(t, err)

	_, err = auth.ValidateJWT(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTInvalidToken(t *testing.T) {
	auth := NewAuthService("secret")

	_, err := auth.ValidateJWT("not-a-valid-token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	other, err := NewAuthService("another-secret").IssueJWT("x", time.Hour)
	require.NoError(t, err)
	_, err = auth.ValidateJWT(other)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestJWTWrongIssuer(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "x", Issuer: "someone-else"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewAuthService("secret").ValidateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestIssueWithoutSecret(t *testing.T) {
	auth := NewAuthService("")
	assert.False(t, auth.Enabled())
	_, err := auth.IssueJWT("x", time.Hour)
	assert.Error(t, err)
}
