package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields the bearer credential attached to every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken sends a fixed configured credential.
type StaticToken string

// Token returns the configured credential.
func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrMissingToken
	}
	return string(s), nil
}

// Signer mints a short-lived HS256 token for a user on every call.
type Signer struct {
	Config Config
	UserID string
	TTL    time.Duration
	Now    func() time.Time
}

// Token signs a fresh token.
func (s Signer) Token(context.Context) (string, error) {
	if s.Config.Secret == "" {
		return "", errors.New("signer requires a secret")
	}
	if s.UserID == "" {
		return "", ErrMissingToken
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	issued := now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": s.UserID,
		"iss": s.Config.Issuer,
		"iat": issued.Unix(),
		"exp": issued.Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(s.Config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// NewTokenSource picks the signer when a secret is configured and the static credential otherwise.
func NewTokenSource(cfg Config, userID string, ttl time.Duration) TokenSource {
	if cfg.Secret != "" {
		return Signer{Config: cfg, UserID: userID, TTL: ttl}
	}
	return StaticToken(userID)
}
