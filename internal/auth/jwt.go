// File: internal/auth/jwt.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long issued tokens stay valid.
const DefaultTokenTTL = 24 * time.Hour

var (
	ErrEmptySecret  = errors.New("jwt secret is not configured")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is what a valid token says about its bearer.
type Identity struct {
	UserID  uint
	Premium bool
	Admin   bool
}

// GenerateJWT signs an HS256 token carrying the user ID in "sub" plus "premium" and "admin" flags.
func GenerateJWT(id Identity, secretKey []byte, ttl time.Duration) (string, error) {
	if id.UserID == 0 {
		return "", errors.New("user ID cannot be zero")
	}
	if len(secretKey) == 0 {
		return "", ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":     fmt.Sprintf("%d", id.UserID),
		"premium": id.Premium,
		"admin":   id.Admin,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
}

// ValidateToken checks the signature and expiry and extracts the bearer's identity.
func ValidateToken(tokenString string, secretKey []byte) (Identity, error) {
	if len(secretKey) == 0 {
		return Identity{}, ErrEmptySecret
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secretKey, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	var id Identity
	switch sub := claims["sub"].(type) {
	case string:
		if _, err := fmt.Sscanf(sub, "%d", &id.UserID); err != nil {
			return Identity{}, ErrInvalidToken
		}
	case float64:
		id.UserID = uint(sub)
	}
	if id.UserID == 0 {
		return Identity{}, ErrInvalidToken
	}
	id.Premium, _ = claims["premium"].(bool)
	id.Admin, _ = claims["admin"].(bool)
	return id, nil
}
