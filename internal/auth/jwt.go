// Package auth issues and checks the session tokens handed out after login.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret string, ttl time.Duration, now func() time.Time) *JWT {
	if now == nil {
		now = time.Now
	}
	return &JWT{secret: []byte(secret), ttl: ttl, now: now}
}

// Sign issues an HS256 token whose subject is the Telegram user id.
func (j *JWT) Sign(userID int64) (string, time.Time, error) {
	now := j.now()
	exp := now.Add(j.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(j.secret)
	return s, exp, err
}

// Verify returns the user id of a valid, unexpired token.
func (j *JWT) Verify(tokenStr string) (int64, error) {
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now), jwt.WithExpirationRequired())
	if err != nil || !t.Valid {
		return 0, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
