// Package auth is the credential store: the only code that hashes or checks
// passwords, and the only code that signs or verifies session tokens.
package auth

import (
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/cryptox"
)

// Store bundles password hashing and token issuing.
type Store struct {
	*Issuer
	params cryptox.Argon2Params
	// dummy is verified against for unknown users so that a login miss costs
	// as much as a wrong password.
	dummy string
}

func NewStore(secret []byte, ttl time.Duration, params cryptox.Argon2Params) (*Store, error) {
	dummy, err := cryptox.HashPassword([]byte("dummy-password"), params)
	if err != nil {
		return nil, err
	}
	return &Store{Issuer: NewIssuer(secret, ttl), params: params, dummy: dummy}, nil
}

// Hash returns the argon2id PHC string for password.
func (s *Store) Hash(password string) (string, error) {
	h, err := cryptox.HashPassword([]byte(password), s.params)
	if err != nil {
		return "", common.Wrap(common.KindInternal, err, "hash password")
	}
	return h, nil
}

// Verify checks password against hash. A mismatch is reported as
// common.ErrInvalidCredentials; a corrupt hash as an internal error.
func (s *Store) Verify(password, hash string) error {
	ok, err := cryptox.VerifyPassword([]byte(password), hash)
	if err != nil {
		return common.Wrap(common.KindInternal, err, "verify password")
	}
	if !ok {
		return common.ErrInvalidCredentials
	}
	return nil
}

// BurnVerify spends the same work as Verify without a stored hash.
func (s *Store) BurnVerify(password string) {
	_, _ = cryptox.VerifyPassword([]byte(password), s.dummy)
}
