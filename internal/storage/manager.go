package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingPrefix is returned by NewManager when no bucket prefix is configured.
var ErrMissingPrefix = errors.New("bucket prefix is not configured")

// Manager is the single entry point the rest of the service uses for file
// content. Callers pass the trip id and name on every call, so Manager never
// needs to look a trip up.
//
// Manager holds no per-request state and is safe for concurrent use. Writes
// to the same key are not serialized here: the backend's last-writer-wins
// rule applies, and a concurrent download may observe either version.
type Manager struct {
	backend Backend
	prefix  string
}

// NewManager creates a Manager for the given backend and bucket prefix.
func NewManager(backend Backend, prefix string) (*Manager, error) {
	if prefix == "" {
		return nil, ErrMissingPrefix
	}
	if backend == nil {
		return nil, errors.New("storage backend is nil")
	}
	return &Manager{backend: backend, prefix: prefix}, nil
}

// Bucket returns the bucket name of a trip.
func (m *Manager) Bucket(tripID int64, tripName string) string {
	return BucketName(m.prefix, tripID, tripName)
}

// ProvisionTripStorage creates the trip's bucket. It is idempotent, so a
// retried trip creation may call it again.
func (m *Manager) ProvisionTripStorage(ctx context.Context, tripID int64, tripName string) error {
	bucket := m.Bucket(tripID, tripName)
	if err := m.backend.EnsureBucket(ctx, bucket); err != nil {
		return fmt.Errorf("provision bucket %q: %w", bucket, err)
	}
	return nil
}

// UploadFile stores data as the content of file fileID. The metadata row must
// already exist because its id is the object key. Uploading again under the
// same id overwrites the previous content.
func (m *Manager) UploadFile(ctx context.Context, fileID, tripID int64, tripName, mimeType string, data []byte) error {
	bucket := m.Bucket(tripID, tripName)
	if err := m.backend.EnsureBucket(ctx, bucket); err != nil {
		return fmt.Errorf("upload file %d: %w", fileID, err)
	}
	if err := m.backend.Put(ctx, bucket, ObjectKey(fileID), data, mimeType); err != nil {
		return fmt.Errorf("upload file %d: %w", fileID, err)
	}
	return nil
}

// DownloadFile returns the content of file fileID and the content type the
// backend recorded at upload. A missing object yields ErrObjectNotFound.
func (m *Manager) DownloadFile(ctx context.Context, fileID, tripID int64, tripName string) ([]byte, string, error) {
	bucket := m.Bucket(tripID, tripName)
	obj, err := m.backend.Get(ctx, bucket, ObjectKey(fileID))
	if err != nil {
		return nil, "", fmt.Errorf("download file %d: %w", fileID, err)
	}
	data, err := Materialize(obj.Body)
	if err != nil {
		return nil, "", fmt.Errorf("download file %d: %w", fileID, err)
	}
	return data, obj.ContentType, nil
}

// DeleteFile removes the content of file fileID. Deleting content that is
// already gone succeeds. The caller deletes the metadata row afterwards; the
// two steps are not atomic.
func (m *Manager) DeleteFile(ctx context.Context, fileID, tripID int64, tripName string) error {
	bucket := m.Bucket(tripID, tripName)
	if err := m.backend.Delete(ctx, bucket, ObjectKey(fileID)); err != nil {
		return fmt.Errorf("delete file %d: %w", fileID, err)
	}
	return nil
}
