package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophblog/internal/common"
	"github.com/dmitrijs2005/gophblog/internal/cryptox"
	"github.com/dmitrijs2005/gophblog/internal/tokenx"
	"github.com/golang-jwt/jwt/v5"
)

var fastParams = cryptox.Argon2Params{Memory: 1024, Time: 1, Threads: 1, SaltLen: 8, KeyLen: 16}

func TestIssueAndAuthenticate_Success(t *testing.T) {
	t.Parallel()

	iss := NewIssuer([]byte("super-secret"), time.Hour)

	tok, err := iss.Issue(Subject{UserID: 42, Username: "ivan"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if time.Until(tok.ExpiresAt) < 59*time.Minute {
		t.Fatalf("unexpected expiry %v", tok.ExpiresAt)
	}

	sub, err := iss.Authenticate(tok.Value)
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if sub.UserID != 42 || sub.Username != "ivan" {
		t.Fatalf("subject mismatch: %+v", sub)
	}
}

func TestAuthenticate_Expired(t *testing.T) {
	t.Parallel()

	iss := NewIssuer([]byte("secret"), time.Hour)
	tok, err := iss.Issue(Subject{UserID: 1, Username: "u1"})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = iss.Authenticate(tok.Value)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
	if !errors.Is(err, common.ErrUnauthenticated) {
		t.Fatalf("expired token must be Unauthenticated, got %v", err)
	}
}

func TestAuthenticate_ValidUntilExpiry(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	iss := NewIssuer([]byte("secret"), time.Hour)
	iss.now = func() time.Time { return base }

	tok, err := iss.Issue(Subject{UserID: 1, Username: "u"})
	if err != nil {
		t.Fatal(err)
	}

	for _, offset := range []time.Duration{0, time.Minute, 59 * time.Minute} {
		iss.now = func() time.Time { return base.Add(offset) }
		if _, err := iss.Authenticate(tok.Value); err != nil {
			t.Fatalf("at +%v: unexpected %v", offset, err)
		}
	}
	for _, offset := range []time.Duration{time.Hour + time.Second, 48 * time.Hour} {
		iss.now = func() time.Time { return base.Add(offset) }
		if _, err := iss.Authenticate(tok.Value); !errors.Is(err, common.ErrTokenExpired) {
			t.Fatalf("at +%v: want expired, got %v", offset, err)
		}
	}
}

func TestAuthenticate_Malformed(t *testing.T) {
	t.Parallel()

	iss := NewIssuer([]byte("secret"), time.Hour)
	good, err := iss.Issue(Subject{UserID: 5, Username: "x"})
	if err != nil {
		t.Fatal(err)
	}

	other := NewIssuer([]byte("other-secret"), time.Hour)
	foreign, _ := other.Issue(Subject{UserID: 5, Username: "x"})

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenx.Claims{UserID: 5}).SignedString([]byte("secret"))
	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, tokenx.Claims{UserID: 5}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"garbage":       "not-a-jwt",
		"tampered":      good.Value[:len(good.Value)-2] + "xx",
		"wrong secret":  foreign.Value,
		"no expiry":     noExp,
		"no subject":    noUser,
		"alg none":      none,
		"three dots...": strings.Repeat(".", 3),
	}
	for name, tok := range cases {
		if _, err := iss.Authenticate(tok); !errors.Is(err, common.ErrTokenMalformed) {
			t.Errorf("%s: want ErrTokenMalformed, got %v", name, err)
		}
	}

	if _, err := iss.Authenticate(""); !errors.Is(err, common.ErrUnauthenticated) {
		t.Errorf("empty: want ErrUnauthenticated, got %v", err)
	}
}

func TestStore_HashVerify(t *testing.T) {
	t.Parallel()

	s, err := NewStore([]byte("k"), time.Hour, fastParams)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	h, err := s.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if strings.Contains(h, "secret123") {
		t.Fatalf("hash leaks plaintext: %s", h)
	}

	if err := s.Verify("secret123", h); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := s.Verify("wrong", h); !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	if err := s.Verify("x", "corrupt"); common.KindOf(err) != common.KindInternal {
		t.Fatalf("want internal error for corrupt hash, got %v", err)
	}

	s.BurnVerify("anything")
}
