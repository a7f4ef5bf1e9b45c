// Package auth handles email and password authentication.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/La-Sectoblique/septotrip-api/internal/session"
	"github.com/La-Sectoblique/septotrip-api/internal/user"
)

// ErrInvalidCredentials is returned when the email is unknown or the password
// does not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrEmailTaken is returned when registering an email that already exists.
var ErrEmailTaken = errors.New("email already registered")

// RegisterInput holds the fields of a new account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Service contains the business logic for account registration and login.
type Service struct {
	userSvc  *user.Service
	sessions *session.Manager
	cost     int
}

// NewService creates a new auth Service.
func NewService(userSvc *user.Service, sessions *session.Manager) *Service {
	return &Service{userSvc: userSvc, sessions: sessions, cost: bcrypt.DefaultCost}
}

// Register creates a new account. The caller logs in separately.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.userSvc.Create(ctx, normalizeEmail(in.Email), string(hash), in.FirstName, in.LastName)
	if errors.Is(err, user.ErrAlreadyExists) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks the credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	u, err := s.userSvc.GetByEmail(ctx, normalizeEmail(email))
	if s.userSvc.IsNotFound(err) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.sessions.Issue(u.ID, u.Email)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
