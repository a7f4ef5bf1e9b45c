package trip

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/La-Sectoblique/septotrip-api/internal/storage"
	"github.com/La-Sectoblique/septotrip-api/internal/user"
)

var (
	// ErrInvalidName is returned when a trip name has nothing left once slugged.
	ErrInvalidName = errors.New("trip name must contain at least one letter or digit")

	// ErrInvalidVisibility is returned for visibilities other than public and private.
	ErrInvalidVisibility = errors.New("visibility must be public or private")

	// ErrForbidden is returned when the caller may not perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrAuthorIsMember is returned when trying to take the author off their trip.
	ErrAuthorIsMember = errors.New("the trip author cannot be removed")
)

// Store is the persistence the trip service depends on.
type Store interface {
	Create(ctx context.Context, authorID int64, name, description string, visibility Visibility) (*Trip, error)
	GetByID(ctx context.Context, id int64) (*Trip, error)
	ListByMember(ctx context.Context, userID int64) ([]Trip, error)
	ListPublic(ctx context.Context) ([]Trip, error)
	Update(ctx context.Context, id int64, in UpdateInput) (*Trip, error)
	Delete(ctx context.Context, id int64) error
	IsMember(ctx context.Context, tripID, userID int64) (bool, error)
	ListMembers(ctx context.Context, tripID int64) ([]user.User, error)
	AddMember(ctx context.Context, tripID, userID int64) error
	RemoveMember(ctx context.Context, tripID, userID int64) error
}

// Provisioner creates the storage a trip's files live in.
type Provisioner interface {
	ProvisionTripStorage(ctx context.Context, tripID int64, tripName string) error
}

// Users looks up accounts.
type Users interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// DeleteHook runs before a trip row is deleted. An error aborts the deletion.
type DeleteHook func(ctx context.Context, t *Trip) error

// Service contains trip business logic.
type Service struct {
	repo         Store
	users        Users
	storage      Provisioner
	log          *zap.Logger
	beforeDelete []DeleteHook
}

// NewService creates a new trip Service.
func NewService(repo Store, users Users, storage Provisioner, log *zap.Logger) *Service {
	return &Service{repo: repo, users: users, storage: storage, log: log}
}

// OnDelete registers a hook run before every trip deletion.
func (s *Service) OnDelete(hook DeleteHook) {
	s.beforeDelete = append(s.beforeDelete, hook)
}

// CreateInput holds the fields of a new trip.
type CreateInput struct {
	Name        string
	Description string
	Visibility  Visibility
}

// Create stores a new trip authored by authorID and provisions its bucket.
// A provisioning failure is logged and not returned: the trip exists and the
// bucket is ensured again on the first upload.
func (s *Service) Create(ctx context.Context, authorID int64, in CreateInput) (*Trip, error) {
	name := strings.TrimSpace(in.Name)
	if storage.Slugify(name) == "" {
		return nil, ErrInvalidName
	}
	if in.Visibility == "" {
		in.Visibility = Private
	}
	if !in.Visibility.Valid() {
		return nil, ErrInvalidVisibility
	}

	t, err := s.repo.Create(ctx, authorID, name, in.Description, in.Visibility)
	if err != nil {
		return nil, fmt.Errorf("create trip: %w", err)
	}

	if err := s.storage.ProvisionTripStorage(ctx, t.ID, t.StorageName); err != nil {
		s.log.Warn("trip storage not provisioned",
			zap.Int64("trip_id", t.ID),
			zap.Error(err),
		)
	}
	return t, nil
}

// Get returns a trip by id.
func (s *Service) Get(ctx context.Context, id int64) (*Trip, error) {
	return s.repo.GetByID(ctx, id)
}

// ListMine returns the trips the user travels on.
func (s *Service) ListMine(ctx context.Context, userID int64) ([]Trip, error) {
	return s.repo.ListByMember(ctx, userID)
}

// ListPublic returns all public trips.
func (s *Service) ListPublic(ctx context.Context) ([]Trip, error) {
	return s.repo.ListPublic(ctx)
}

// Author returns the public profile of the trip's author.
func (s *Service) Author(ctx context.Context, t *Trip) (*user.Profile, error) {
	u, err := s.users.GetByID(ctx, t.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("get author: %w", err)
	}
	p := u.Profile()
	return &p, nil
}

// Update changes trip attributes. Renaming does not move the trip's bucket.
func (s *Service) Update(ctx context.Context, t *Trip, in UpdateInput) (*Trip, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if storage.Slugify(name) == "" {
			return nil, ErrInvalidName
		}
		in.Name = &name
	}
	if in.Visibility != nil && !in.Visibility.Valid() {
		return nil, ErrInvalidVisibility
	}
	return s.repo.Update(ctx, t.ID, in)
}

// Delete removes a trip. Only its author may delete it.
func (s *Service) Delete(ctx context.Context, t *Trip, callerID int64) error {
	if t.AuthorID != callerID {
		return ErrForbidden
	}
	for _, hook := range s.beforeDelete {
		if err := hook(ctx, t); err != nil {
			return fmt.Errorf("prepare trip deletion: %w", err)
		}
	}
	return s.repo.Delete(ctx, t.ID)
}

// IsMember reports whether the user travels on the trip.
func (s *Service) IsMember(ctx context.Context, tripID, userID int64) (bool, error) {
	return s.repo.IsMember(ctx, tripID, userID)
}

// Members lists the users on the trip.
func (s *Service) Members(ctx context.Context, t *Trip) ([]user.User, error) {
	return s.repo.ListMembers(ctx, t.ID)
}

// AddMember puts the user registered under email on the trip.
func (s *Service) AddMember(ctx context.Context, t *Trip, email string) (*user.User, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddMember(ctx, t.ID, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// RemoveMember takes userID off the trip. The author may remove anyone but
// themselves; other members may only leave.
func (s *Service) RemoveMember(ctx context.Context, t *Trip, callerID, userID int64) error {
	if userID == t.AuthorID {
		return ErrAuthorIsMember
	}
	if callerID != t.AuthorID && callerID != userID {
		return ErrForbidden
	}
	return s.repo.RemoveMember(ctx, t.ID, userID)
}
