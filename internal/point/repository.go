// Package point manages the points of interest placed on a trip.
package point

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/La-Sectoblique/septotrip-api/internal/db"
)

// Point is a located step of a trip.
type Point struct {
	ID          int64     `json:"id"`
	TripID      int64     `json:"tripId"`
	AuthorID    int64     `json:"authorId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Longitude   float64   `json:"longitude"`
	Latitude    float64   `json:"latitude"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Input holds the writable fields of a point. Nil means unchanged on update.
type Input struct {
	Title       *string  `json:"title,omitempty"       example:"Lighthouse"`
	Description *string  `json:"description,omitempty" example:"Sunset spot"`
	Longitude   *float64 `json:"longitude,omitempty"   example:"-4.77"`
	Latitude    *float64 `json:"latitude,omitempty"    example:"48.36"`
}

// ErrNotFound is returned when a point does not exist.
var ErrNotFound = errors.New("point not found")

const pointColumns = `id, trip_id, author_id, title, description, longitude, latitude, created_at, updated_at`

// Repository handles point persistence.
type Repository struct {
	db db.Querier
}

// NewRepository creates a new point Repository.
func NewRepository(conn db.Querier) *Repository {
	return &Repository{db: conn}
}

// Create inserts a point.
func (r *Repository) Create(ctx context.Context, p Point) (*Point, error) {
	created, err := scanPoint(r.db.QueryRow(ctx,
		`INSERT INTO points (trip_id, author_id, title, description, longitude, latitude)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+pointColumns,
		p.TripID, p.AuthorID, p.Title, p.Description, p.Longitude, p.Latitude,
	))
	if err != nil {
		return nil, fmt.Errorf("create point: %w", err)
	}
	return created, nil
}

// GetByID fetches a point by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Point, error) {
	p, err := scanPoint(r.db.QueryRow(ctx, `SELECT `+pointColumns+` FROM points WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get point: %w", err)
	}
	return p, nil
}

// ListByTrip returns the points of a trip in creation order.
func (r *Repository) ListByTrip(ctx context.Context, tripID int64) ([]Point, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+pointColumns+` FROM points WHERE trip_id = $1 ORDER BY id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	defer rows.Close()

	points := []Point{}
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		points = append(points, *p)
	}
	return points, rows.Err()
}

// Update applies the non-nil fields of in.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (*Point, error) {
	p, err := scanPoint(r.db.QueryRow(ctx,
		`UPDATE points SET
		   title       = COALESCE($2, title),
		   description = COALESCE($3, description),
		   longitude   = COALESCE($4, longitude),
		   latitude    = COALESCE($5, latitude),
		   updated_at  = NOW()
		 WHERE id = $1
		 RETURNING `+pointColumns,
		id, in.Title, in.Description, in.Longitude, in.Latitude,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update point: %w", err)
	}
	return p, nil
}

// Delete removes a point. Files attached to it stay on the trip.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM points WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete point: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPoint(row pgx.Row) (*Point, error) {
	p := &Point{}
	err := row.Scan(&p.ID, &p.TripID, &p.AuthorID, &p.Title, &p.Description, &p.Longitude, &p.Latitude, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}
