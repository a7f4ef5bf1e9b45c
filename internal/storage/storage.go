// Package storage owns trip file content: it names per-trip buckets, talks to
// the object-storage backend and turns whatever body shape the backend hands
// back into plain bytes.
//
// Swap implementations by changing the Backend injected at startup. The MinIO
// and S3 backends work with any S3-compatible provider; the Redis and memory
// backends exist for small deployments and tests.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable is returned when the backend is unreachable or fails.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrObjectNotFound is returned when the requested object key is absent.
	ErrObjectNotFound = errors.New("object not found")

	// ErrStorageRead is returned when a streamed body fails mid-transfer.
	// It matches ErrStorageUnavailable under errors.Is.
	ErrStorageRead = fmt.Errorf("storage read failed: %w", ErrStorageUnavailable)
)

// Object is what a backend returns for a stored key. Body must be passed
// through Materialize before the content leaves this package.
type Object struct {
	Body        Body
	ContentType string
}

// Backend is the object-storage capability. Buckets hold the objects of one
// trip; object keys are decimal file ids.
//
// Implementations must report an absent key from Get as ErrObjectNotFound and
// any other failure as ErrStorageUnavailable. EnsureBucket on an existing
// bucket and Delete on an absent key succeed.
type Backend interface {
	// EnsureBucket creates the bucket if it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error
	// Put stores data under key, replacing any previous object.
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	// Get returns the object stored under key.
	Get(ctx context.Context, bucket, key string) (*Object, error)
	// Delete removes the object stored under key.
	Delete(ctx context.Context, bucket, key string) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

func notFound(bucket, key string) error {
	return fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
}
