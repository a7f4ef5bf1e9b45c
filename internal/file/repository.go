// Package file manages trip file attachments: their metadata rows, their
// content in object storage and the temporary tokens that gate private ones.
package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/La-Sectoblique/septotrip-api/internal/db"
	"github.com/La-Sectoblique/septotrip-api/internal/trip"
)

// File is the metadata row of a stored file. Its content lives in the trip's
// bucket under the file id.
type File struct {
	ID         int64           `json:"id"`
	TripID     int64           `json:"tripId"`
	PointID    *int64          `json:"pointId,omitempty"`
	Name       string          `json:"name"`
	MimeType   string          `json:"mimeType"`
	Size       int64           `json:"size"`
	Visibility trip.Visibility `json:"visibility"`
	UploaderID *int64          `json:"uploaderId,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`

	// VisibilityRevision increases on every visibility edit. Access tokens
	// carry the revision they were issued under.
	VisibilityRevision int64 `json:"-"`
}

// UpdateInput lists the metadata a member may change. Nil means unchanged.
type UpdateInput struct {
	Name       *string
	PointID    *int64
	Visibility *trip.Visibility

	// ClearPoint detaches the file from its point. PointID must then be nil.
	ClearPoint bool
}

// ErrNotFound is returned when a file row does not exist.
var ErrNotFound = errors.New("file not found")

const fileColumns = `id, trip_id, point_id, name, mime_type, size_bytes, visibility, visibility_revision, uploader_id, created_at, updated_at`

// Repository handles file metadata persistence.
type Repository struct {
	db db.Querier
}

// NewRepository creates a new file Repository.
func NewRepository(conn db.Querier) *Repository {
	return &Repository{db: conn}
}

// Create inserts a metadata row. The id it returns is the object key.
func (r *Repository) Create(ctx context.Context, f File) (*File, error) {
	created, err := scanFile(r.db.QueryRow(ctx,
		`INSERT INTO files (trip_id, point_id, name, mime_type, size_bytes, visibility, uploader_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+fileColumns,
		f.TripID, f.PointID, f.Name, f.MimeType, f.Size, f.Visibility, f.UploaderID,
	))
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return created, nil
}

// GetByID fetches a file row by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*File, error) {
	f, err := scanFile(r.db.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

// ListByTrip returns the files of a trip, optionally without private ones.
func (r *Repository) ListByTrip(ctx context.Context, tripID int64, includePrivate bool) ([]File, error) {
	return r.list(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE trip_id = $1 AND ($2 OR visibility = 'public')
		 ORDER BY id`,
		tripID, includePrivate,
	)
}

// ListByPoint returns the files attached to a point, optionally without
// private ones.
func (r *Repository) ListByPoint(ctx context.Context, pointID int64, includePrivate bool) ([]File, error) {
	return r.list(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE point_id = $1 AND ($2 OR visibility = 'public')
		 ORDER BY id`,
		pointID, includePrivate,
	)
}

// Update applies the non-nil fields of in. Any visibility edit bumps the
// visibility revision, even when the value is unchanged.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (*File, error) {
	f, err := scanFile(r.db.QueryRow(ctx,
		`UPDATE files SET
		   name                = COALESCE($2, name),
		   point_id            = CASE WHEN $5 THEN NULL ELSE COALESCE($3, point_id) END,
		   visibility          = COALESCE($4, visibility),
		   visibility_revision = CASE WHEN $4::text IS NULL THEN visibility_revision ELSE visibility_revision + 1 END,
		   updated_at          = NOW()
		 WHERE id = $1
		 RETURNING `+fileColumns,
		id, in.Name, in.PointID, in.Visibility, in.ClearPoint,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update file: %w", err)
	}
	return f, nil
}

// SetContent records the type and size of newly stored content.
func (r *Repository) SetContent(ctx context.Context, id int64, mimeType string, size int64) (*File, error) {
	f, err := scanFile(r.db.QueryRow(ctx,
		`UPDATE files SET mime_type = $2, size_bytes = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+fileColumns,
		id, mimeType, size,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("set file content: %w", err)
	}
	return f, nil
}

// Delete removes a file row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) list(ctx context.Context, query string, args ...interface{}) ([]File, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := []File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

func scanFile(row pgx.Row) (*File, error) {
	f := &File{}
	err := row.Scan(&f.ID, &f.TripID, &f.PointID, &f.Name, &f.MimeType, &f.Size,
		&f.Visibility, &f.VisibilityRevision, &f.UploaderID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}
