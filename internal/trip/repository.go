// Package trip manages trips, their members and the storage provisioned for
// each of them.
package trip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/La-Sectoblique/septotrip-api/internal/db"
	"github.com/La-Sectoblique/septotrip-api/internal/user"
)

// Visibility controls who can see a trip or a file.
type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == Public || v == Private
}

// Trip is a travel plan shared by its members.
type Trip struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Visibility  Visibility `json:"visibility"`
	AuthorID    int64      `json:"authorId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// StorageName is the name the trip had when it was created. Bucket names
	// derive from it so renaming a trip keeps its files reachable.
	StorageName string `json:"-"`
}

// UpdateInput lists the trip fields a member may change. Nil means unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	Visibility  *Visibility
}

var (
	// ErrNotFound is returned when a trip does not exist.
	ErrNotFound = errors.New("trip not found")

	// ErrAlreadyMember is returned when adding a user who already travels on the trip.
	ErrAlreadyMember = errors.New("user is already a member of this trip")

	// ErrNotMember is returned when removing a user who is not on the trip.
	ErrNotMember = errors.New("user is not a member of this trip")
)

const tripColumns = `id, name, storage_name, description, visibility, author_id, created_at, updated_at`

// Repository handles trip and membership persistence.
type Repository struct {
	db db.Pool
}

// NewRepository creates a new trip Repository.
func NewRepository(conn db.Pool) *Repository {
	return &Repository{db: conn}
}

// Create inserts a trip and registers its author as the first member.
func (r *Repository) Create(ctx context.Context, authorID int64, name, description string, visibility Visibility) (*Trip, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	t, err := scanTrip(tx.QueryRow(ctx,
		`INSERT INTO trips (name, storage_name, description, visibility, author_id)
		 VALUES ($1, $1, $2, $3, $4)
		 RETURNING `+tripColumns,
		name, description, visibility, authorID,
	))
	if err != nil {
		return nil, fmt.Errorf("insert trip: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO trip_users (trip_id, user_id) VALUES ($1, $2)`,
		t.ID, authorID,
	); err != nil {
		return nil, fmt.Errorf("add author: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// GetByID fetches a trip by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Trip, error) {
	t, err := scanTrip(r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}
	return t, nil
}

// ListByMember returns the trips the user travels on, newest first.
func (r *Repository) ListByMember(ctx context.Context, userID int64) ([]Trip, error) {
	return r.list(ctx,
		`SELECT t.id, t.name, t.storage_name, t.description, t.visibility, t.author_id, t.created_at, t.updated_at
		 FROM trips t JOIN trip_users tu ON tu.trip_id = t.id
		 WHERE tu.user_id = $1
		 ORDER BY t.created_at DESC`,
		userID,
	)
}

// ListPublic returns every public trip, newest first.
func (r *Repository) ListPublic(ctx context.Context) ([]Trip, error) {
	return r.list(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE visibility = $1 ORDER BY created_at DESC`,
		Public,
	)
}

// Update applies the non-nil fields of in.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (*Trip, error) {
	t, err := scanTrip(r.db.QueryRow(ctx,
		`UPDATE trips SET
		   name        = COALESCE($2, name),
		   description = COALESCE($3, description),
		   visibility  = COALESCE($4, visibility),
		   updated_at  = NOW()
		 WHERE id = $1
		 RETURNING `+tripColumns,
		id, in.Name, in.Description, in.Visibility,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update trip: %w", err)
	}
	return t, nil
}

// Delete removes a trip; memberships, points and file rows cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsMember reports whether the user travels on the trip.
func (r *Repository) IsMember(ctx context.Context, tripID, userID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM trip_users WHERE trip_id = $1 AND user_id = $2)`,
		tripID, userID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return ok, nil
}

// ListMembers returns the users travelling on the trip.
func (r *Repository) ListMembers(ctx context.Context, tripID int64) ([]user.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u.id, u.email, u.first_name, u.last_name, u.created_at, u.updated_at
		 FROM users u JOIN trip_users tu ON tu.user_id = u.id
		 WHERE tu.trip_id = $1
		 ORDER BY tu.created_at`,
		tripID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []user.User{}
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, u)
	}
	return members, rows.Err()
}

// AddMember registers the user on the trip.
func (r *Repository) AddMember(ctx context.Context, tripID, userID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO trip_users (trip_id, user_id) VALUES ($1, $2)`,
		tripID, userID,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyMember
	}
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// RemoveMember takes the user off the trip.
func (r *Repository) RemoveMember(ctx context.Context, tripID, userID int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM trip_users WHERE trip_id = $1 AND user_id = $2`,
		tripID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

func (r *Repository) list(ctx context.Context, query string, args ...interface{}) ([]Trip, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	trips := []Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

func scanTrip(row pgx.Row) (*Trip, error) {
	t := &Trip{}
	err := row.Scan(&t.ID, &t.Name, &t.StorageName, &t.Description, &t.Visibility, &t.AuthorID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}
