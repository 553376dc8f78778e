// Package tokenx holds the session token claim set shared by the server,
// which signs and verifies it, and the client, which only peeks at it.
package tokenx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the session token payload.
type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Info is what a client can learn from a token without the signing key.
type Info struct {
	UserID    int64
	Username  string
	ExpiresAt time.Time
}

// ParseUnverified decodes a token without checking its signature. The result
// is for display only and must never be used for authorization.
func ParseUnverified(token string) (*Info, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, errors.New("token has no expiry")
	}
	return &Info{
		UserID:    claims.UserID,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
