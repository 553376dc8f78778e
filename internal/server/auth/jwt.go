package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/tokenx"
	"github.com/golang-jwt/jwt/v5"
)

// Subject is the identity a session token vouches for.
type Subject struct {
	UserID   int64
	Username string
}

// Token is a signed session token and the instant it stops being valid.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue mints a token for sub valid for the issuer's TTL.
func (i *Issuer) Issue(sub Subject) (Token, error) {
	now := i.now()
	exp := now.Add(i.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenx.Claims{
		UserID:   sub.UserID,
		Username: sub.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(sub.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return Token{}, err
	}

	// NumericDate has second precision; report what the token actually says.
	return Token{Value: tokenString, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Authenticate verifies signature and expiry. It returns common.ErrTokenExpired
// for an expired token and common.ErrTokenMalformed for anything else.
func (i *Issuer) Authenticate(tokenString string) (Subject, error) {
	if tokenString == "" {
		return Subject{}, common.ErrUnauthenticated
	}

	claims := &tokenx.Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Subject{}, common.ErrTokenExpired
		}
		return Subject{}, common.ErrTokenMalformed
	}

	if claims.UserID <= 0 {
		return Subject{}, common.ErrTokenMalformed
	}

	return Subject{UserID: claims.UserID, Username: claims.Username}, nil
}
