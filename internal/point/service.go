package point

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidInput is returned for missing titles and out of range coordinates.
var ErrInvalidInput = errors.New("invalid point")

// Store is the persistence the point service depends on.
type Store interface {
	Create(ctx context.Context, p Point) (*Point, error)
	GetByID(ctx context.Context, id int64) (*Point, error)
	ListByTrip(ctx context.Context, tripID int64) ([]Point, error)
	Update(ctx context.Context, id int64, in Input) (*Point, error)
	Delete(ctx context.Context, id int64) error
}

// Service contains point business logic.
type Service struct {
	repo Store
}

// NewService creates a new point Service.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Create adds a point to a trip. Title and both coordinates are required.
func (s *Service) Create(ctx context.Context, tripID, authorID int64, in Input) (*Point, error) {
	if in.Title == nil || in.Longitude == nil || in.Latitude == nil {
		return nil, ErrInvalidInput
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	p := Point{
		TripID:    tripID,
		AuthorID:  authorID,
		Title:     strings.TrimSpace(*in.Title),
		Longitude: *in.Longitude,
		Latitude:  *in.Latitude,
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	return s.repo.Create(ctx, p)
}

// Get returns the point id if it belongs to tripID.
func (s *Service) Get(ctx context.Context, tripID, id int64) (*Point, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.TripID != tripID {
		return nil, ErrNotFound
	}
	return p, nil
}

// List returns the points of a trip.
func (s *Service) List(ctx context.Context, tripID int64) ([]Point, error) {
	return s.repo.ListByTrip(ctx, tripID)
}

// Update changes the given fields of p.
func (s *Service) Update(ctx context.Context, p *Point, in Input) (*Point, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, p.ID, in)
}

// Delete removes p.
func (s *Service) Delete(ctx context.Context, p *Point) error {
	return s.repo.Delete(ctx, p.ID)
}

func validate(in Input) error {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return ErrInvalidInput
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return ErrInvalidInput
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return ErrInvalidInput
	}
	return nil
}
