// Package session signs and parses the bearer tokens that identify a logged
// in user.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTTL is the lifetime of a freshly issued session token.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultRenewWithin is how close to expiry a session must be before a
	// renewed token is handed back to the client.
	DefaultRenewWithin = 24 * time.Hour
)

// ErrInvalid is returned for malformed, forged or expired session tokens.
var ErrInvalid = errors.New("invalid or expired session")

// Claims identify the user behind a session token.
type Claims struct {
	UserID int64
	Email  string
	Expiry time.Time
}

// Manager issues and parses session tokens.
type Manager struct {
	secret      []byte
	ttl         time.Duration
	renewWithin time.Duration
	now         func() time.Time
}

// NewManager creates a Manager signing with secret.
func NewManager(secret string, ttl, renewWithin time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, renewWithin: renewWithin, now: time.Now}
}

// Issue creates a signed session token for the given user.
func (m *Manager) Issue(userID int64, email string) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(userID, 10),
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(m.ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

// Parse validates raw and returns the session it carries.
func (m *Manager) Parse(raw string) (*Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalid
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalid
	}
	sub, _ := mc["sub"].(string)
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalid
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalid
	}
	email, _ := mc["email"].(string)

	return &Claims{UserID: userID, Email: email, Expiry: exp.Time}, nil
}

// NeedsRenewal reports whether c is close enough to expiry that the client
// should switch to a fresh token.
func (m *Manager) NeedsRenewal(c *Claims) bool {
	return c.Expiry.Sub(m.now()) < m.renewWithin
}
