package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/pulse/internal/auth"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestJWT_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	j := auth.NewJWT(secret, time.Hour, clock)

	tok, exp, err := j.Sign(424242)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	id, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(424242), id)

	now = now.Add(2 * time.Hour)
	_, err = j.Verify(tok)
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "expired")
}

func TestJWT_Rejects(t *testing.T) {
	j := auth.NewJWT(secret, time.Hour, nil)
	tok, _, err := j.Sign(1)
	require.NoError(t, err)

	other := auth.NewJWT("another-secret-another-secret-!!", time.Hour, nil)
	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = j.Verify("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"})
	s, err := noExp.SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = j.Verify(s)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "abc",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err = bad.SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = j.Verify(s)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
