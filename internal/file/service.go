package file

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/La-Sectoblique/septotrip-api/internal/access"
	"github.com/La-Sectoblique/septotrip-api/internal/point"
	"github.com/La-Sectoblique/septotrip-api/internal/storage"
	"github.com/La-Sectoblique/septotrip-api/internal/trip"
)

var (
	// ErrInvalidVisibility is returned for visibilities other than public and private.
	ErrInvalidVisibility = errors.New("visibility must be public or private")

	// ErrInvalidPoint is returned when the point is not part of the file's trip.
	ErrInvalidPoint = errors.New("point does not belong to this trip")

	// ErrInvalidName is returned for blank file names.
	ErrInvalidName = errors.New("file name must not be empty")
)

// Store is the metadata persistence the file service depends on.
type Store interface {
	Create(ctx context.Context, f File) (*File, error)
	GetByID(ctx context.Context, id int64) (*File, error)
	ListByTrip(ctx context.Context, tripID int64, includePrivate bool) ([]File, error)
	ListByPoint(ctx context.Context, pointID int64, includePrivate bool) ([]File, error)
	Update(ctx context.Context, id int64, in UpdateInput) (*File, error)
	SetContent(ctx context.Context, id int64, mimeType string, size int64) (*File, error)
	Delete(ctx context.Context, id int64) error
}

// ObjectStore holds file content. storage.Manager implements it.
type ObjectStore interface {
	UploadFile(ctx context.Context, fileID, tripID int64, tripName, mimeType string, data []byte) error
	DownloadFile(ctx context.Context, fileID, tripID int64, tripName string) ([]byte, string, error)
	DeleteFile(ctx context.Context, fileID, tripID int64, tripName string) error
}

// Points resolves a point within a trip.
type Points interface {
	Get(ctx context.Context, tripID, id int64) (*point.Point, error)
}

// Trips resolves a trip by id.
type Trips interface {
	Get(ctx context.Context, id int64) (*trip.Trip, error)
}

// View is a file as returned to clients. TemporaryAccessToken is computed on
// every read and is never stored.
type View struct {
	File
	TemporaryAccessToken string `json:"temporaryAccessToken,omitempty"`
}

// UploadInput is a file received from a client.
type UploadInput struct {
	Name       string
	MimeType   string
	PointID    *int64
	Visibility trip.Visibility
	Data       []byte
}

// Service ties file metadata to object storage and access tokens.
type Service struct {
	repo    Store
	objects ObjectStore
	tokens  *access.Issuer
	points  Points
	trips   Trips
	log     *zap.Logger
}

// NewService creates a new file Service.
func NewService(repo Store, objects ObjectStore, tokens *access.Issuer, points Points, trips Trips, log *zap.Logger) *Service {
	return &Service{repo: repo, objects: objects, tokens: tokens, points: points, trips: trips, log: log}
}

// Upload creates the metadata row and then stores the content under its id.
// When the content cannot be stored the row is kept and the error returned;
// uploading again under the same id overwrites the missing object.
func (s *Service) Upload(ctx context.Context, t *trip.Trip, uploaderID int64, in UploadInput) (*View, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrInvalidName
	}
	if in.Visibility == "" {
		in.Visibility = trip.Private
	}
	if !in.Visibility.Valid() {
		return nil, ErrInvalidVisibility
	}
	if err := s.checkPoint(ctx, t, in.PointID); err != nil {
		return nil, err
	}

	f, err := s.repo.Create(ctx, File{
		TripID:     t.ID,
		PointID:    in.PointID,
		Name:       strings.TrimSpace(in.Name),
		MimeType:   in.MimeType,
		Size:       int64(len(in.Data)),
		Visibility: in.Visibility,
		UploaderID: &uploaderID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.objects.UploadFile(ctx, f.ID, t.ID, t.StorageName, f.MimeType, in.Data); err != nil {
		s.log.Warn("file metadata without content",
			zap.Int64("file_id", f.ID),
			zap.Int64("trip_id", t.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("upload file %d: %w", f.ID, err)
	}

	return s.view(f)
}

// Get returns the file id of trip t. Private files are hidden unless
// includePrivate is set.
func (s *Service) Get(ctx context.Context, t *trip.Trip, id int64, includePrivate bool) (*File, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.TripID != t.ID || (!includePrivate && f.Visibility != trip.Public) {
		return nil, ErrNotFound
	}
	return f, nil
}

// Metadata returns f with a fresh access token when it is private.
func (s *Service) Metadata(f *File) (*View, error) {
	return s.view(f)
}

// List returns the files of t with tokens attached to private ones.
func (s *Service) List(ctx context.Context, t *trip.Trip, includePrivate bool) ([]View, error) {
	files, err := s.repo.ListByTrip(ctx, t.ID, includePrivate)
	if err != nil {
		return nil, err
	}
	return s.views(files)
}

// ListByPoint returns the files attached to p.
func (s *Service) ListByPoint(ctx context.Context, p *point.Point, includePrivate bool) ([]View, error) {
	files, err := s.repo.ListByPoint(ctx, p.ID, includePrivate)
	if err != nil {
		return nil, err
	}
	return s.views(files)
}

// Update changes file metadata. A visibility edit moves the file to a new
// visibility revision, so tokens issued before it no longer authorize.
// ClearPoint detaches the file from its point.
func (s *Service) Update(ctx context.Context, t *trip.Trip, f *File, in UpdateInput) (*View, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrInvalidName
		}
		in.Name = &name
	}
	if in.Visibility != nil && !in.Visibility.Valid() {
		return nil, ErrInvalidVisibility
	}
	if in.ClearPoint && in.PointID != nil {
		return nil, ErrInvalidPoint
	}
	if err := s.checkPoint(ctx, t, in.PointID); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, f.ID, in)
	if err != nil {
		return nil, err
	}
	return s.view(updated)
}

// ReplaceContent overwrites the stored content of f, which also repairs a
// file whose first upload failed.
func (s *Service) ReplaceContent(ctx context.Context, t *trip.Trip, f *File, mimeType string, data []byte) (*View, error) {
	if mimeType == "" {
		mimeType = f.MimeType
	}
	if err := s.objects.UploadFile(ctx, f.ID, t.ID, t.StorageName, mimeType, data); err != nil {
		return nil, fmt.Errorf("replace content of file %d: %w", f.ID, err)
	}
	updated, err := s.repo.SetContent(ctx, f.ID, mimeType, int64(len(data)))
	if err != nil {
		return nil, err
	}
	return s.view(updated)
}

// Content returns the bytes of f and the MIME type to serve them with.
func (s *Service) Content(ctx context.Context, t *trip.Trip, f *File) ([]byte, string, error) {
	data, mimeType, err := s.objects.DownloadFile(ctx, f.ID, t.ID, t.StorageName)
	if err != nil {
		return nil, "", err
	}
	if mimeType == "" {
		mimeType = f.MimeType
	}
	return data, mimeType, nil
}

// ContentByToken serves a file to a client without a session. Public files
// need no token, even inside a private trip, so anyone holding the id of a
// public file can read it. Private files need a token issued under the file's
// current visibility revision.
func (s *Service) ContentByToken(ctx context.Context, fileID int64, token string) ([]byte, string, error) {
	f, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		return nil, "", err
	}
	if err := s.tokens.Authorize(token, ref(f)); err != nil {
		return nil, "", err
	}

	t, err := s.trips.Get(ctx, f.TripID)
	if err != nil {
		return nil, "", fmt.Errorf("get trip %d: %w", f.TripID, err)
	}
	return s.Content(ctx, t, f)
}

// Delete removes the content of f and then its metadata row. If the content
// cannot be removed the row is kept so the delete can be retried.
func (s *Service) Delete(ctx context.Context, t *trip.Trip, f *File) error {
	if err := s.objects.DeleteFile(ctx, f.ID, t.ID, t.StorageName); err != nil {
		return fmt.Errorf("delete content of file %d: %w", f.ID, err)
	}
	if err := s.repo.Delete(ctx, f.ID); err != nil {
		s.log.Warn("file content deleted but metadata kept",
			zap.Int64("file_id", f.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// PurgeTrip removes the content of every file of t. It runs before a trip is
// deleted; the metadata rows go with the trip.
func (s *Service) PurgeTrip(ctx context.Context, t *trip.Trip) error {
	files, err := s.repo.ListByTrip(ctx, t.ID, true)
	if err != nil {
		return err
	}

	var errs []error
	for _, f := range files {
		if err := s.objects.DeleteFile(ctx, f.ID, t.ID, t.StorageName); err != nil {
			errs = append(errs, fmt.Errorf("file %d: %w", f.ID, err))
		}
	}
	if len(errs) > 0 {
		s.log.Error("trip content not purged",
			zap.Int64("trip_id", t.ID),
			zap.Int("failed", len(errs)),
		)
	}
	return errors.Join(errs...)
}

func (s *Service) checkPoint(ctx context.Context, t *trip.Trip, pointID *int64) error {
	if pointID == nil {
		return nil
	}
	_, err := s.points.Get(ctx, t.ID, *pointID)
	if errors.Is(err, point.ErrNotFound) {
		return ErrInvalidPoint
	}
	return err
}

func (s *Service) view(f *File) (*View, error) {
	token, err := s.tokens.Issue(ref(f))
	if err != nil {
		return nil, err
	}
	return &View{File: *f, TemporaryAccessToken: token}, nil
}

func (s *Service) views(files []File) ([]View, error) {
	out := make([]View, 0, len(files))
	for i := range files {
		v, err := s.view(&files[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func ref(f *File) access.FileRef {
	return access.FileRef{
		ID:       f.ID,
		Private:  f.Visibility != trip.Public,
		Revision: f.VisibilityRevision,
	}
}

// IsContentMissing reports whether err means the stored object is gone.
func IsContentMissing(err error) bool {
	return errors.Is(err, storage.ErrObjectNotFound)
}
