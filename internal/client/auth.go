package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrEmptySecret is returned by SignToken when no signing secret is given.
var ErrEmptySecret = errors.New("empty JWT secret")

// SignToken mints an HS256 token for subject that expires ttl after now.
// It lets a run authenticate against targets that verify bearer tokens
// with a shared secret.
func SignToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    "sensorbench",
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
