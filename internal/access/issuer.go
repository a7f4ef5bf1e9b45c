// Package access issues the short-lived tokens that let a client read the
// content of a private file without a session.
//
// A token is an HS256 JWT naming one file id, the file's visibility revision
// and an expiry. Tokens are never stored: every metadata read issues a fresh
// one and nothing is revoked.
//
// Consistency with visibility changes is bounded, not instant. Authorize
// rejects a token once the file's visibility revision has moved on, but only
// when the caller authorizes against the current metadata row. Anything that
// checks a token with Verify alone keeps accepting it until its expiry, so a
// token issued before a visibility change stays usable for at most the
// configured TTL.
package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenKind = "file"

var (
	// ErrInvalidToken is returned for malformed, forged or mismatched tokens.
	ErrInvalidToken = errors.New("invalid file access token")

	// ErrTokenExpired is returned once a token's expiry has passed.
	ErrTokenExpired = errors.New("file access token expired")

	// ErrTokenRequired is returned by Authorize when a private file is read
	// without a token.
	ErrTokenRequired = errors.New("file access token required")
)

// FileRef is the part of a file's metadata that token decisions depend on.
type FileRef struct {
	ID       int64
	Private  bool
	Revision int64
}

// Claims are carried by a file access token.
type Claims struct {
	FileID   int64  `json:"fid"`
	Revision int64  `json:"rev"`
	Kind     string `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer signs and checks file access tokens. It is read-only after
// construction and safe for concurrent use.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer signing with secret; tokens live for ttl.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue returns a token for a private file and "" for a public one, which
// needs no token.
func (i *Issuer) Issue(f FileRef) (string, error) {
	if !f.Private {
		return "", nil
	}
	now := i.now()
	claims := Claims{
		FileID:   f.ID,
		Revision: f.Revision,
		Kind:     tokenKind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign file token: %w", err)
	}
	return token, nil
}

// Verify checks the signature and expiry of token and returns its claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Kind != tokenKind {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authorize decides whether token grants read access to f as it is now.
// Public files need no token. For private files the token must be valid,
// name f, and carry f's current visibility revision.
func (i *Issuer) Authorize(token string, f FileRef) error {
	if !f.Private {
		return nil
	}
	if token == "" {
		return ErrTokenRequired
	}
	claims, err := i.Verify(token)
	if err != nil {
		return err
	}
	if claims.FileID != f.ID {
		return fmt.Errorf("%w: token is for another file", ErrInvalidToken)
	}
	if claims.Revision != f.Revision {
		return fmt.Errorf("%w: visibility changed since issue", ErrInvalidToken)
	}
	return nil
}
