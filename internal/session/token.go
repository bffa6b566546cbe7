package session

import (
	"errors"
	"fmt"
	"time"

	"finscope/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated subject whose transactions are being viewed
// or mutated.
type Identity struct {
	ID    string
	Email string
}

// TokenIssuer signs and verifies the bearer tokens handed to clients at
// login. HS256 with a shared secret; claims carry the subject id and email.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

func (i *TokenIssuer) Issue(identity Identity) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   identity.ID,
		"email": identity.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(i.ttl).Unix(),
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *TokenIssuer) Verify(tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, core.ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, core.ErrUnauthenticated
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, core.ErrUnauthenticated
	}
	email, _ := claims["email"].(string)

	return Identity{ID: sub, Email: email}, nil
}
