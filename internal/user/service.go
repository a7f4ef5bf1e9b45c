package user

import (
	"context"
	"errors"
	"fmt"
)

// Store is the persistence the user service depends on.
type Store interface {
	Create(ctx context.Context, email, passwordHash, firstName, lastName string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// Service contains business logic for user management.
type Service struct {
	repo Store
}

// NewService creates a new user Service.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Create registers a new user account.
func (s *Service) Create(ctx context.Context, email, passwordHash, firstName, lastName string) (*User, error) {
	u, err := s.repo.Create(ctx, email, passwordHash, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID returns a user by id.
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Profile returns the public view of a user.
func (s *Service) Profile(ctx context.Context, id int64) (Profile, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return u.Profile(), nil
}

// GetByEmail returns a user by email address.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
