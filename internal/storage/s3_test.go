package storage

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestS3Backend(t *testing.T, routes map[string]s3Reply) *S3Backend {
	t.Helper()
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	srv := newFakeS3(t, routes)
	b, err := NewS3Backend(context.Background(), srv.URL, "access", "secret", "us-east-1", false, zap.NewNop())
	require.NoError(t, err)
	return b
}

func TestS3Backend_GetMissingKeyIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"missing key", "NoSuchKey"},
		{"missing bucket", "NoSuchBucket"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestS3Backend(t, map[string]s3Reply{
				"GET /app-1-trip/7": {status: http.StatusNotFound, code: tt.code},
			})

			_, err := b.Get(context.Background(), "app-1-trip", "7")
			assert.ErrorIs(t, err, ErrObjectNotFound)
			assert.NotErrorIs(t, err, ErrStorageUnavailable)
		})
	}
}

func TestS3Backend_GetDeniedIsUnavailable(t *testing.T) {
	b := newTestS3Backend(t, map[string]s3Reply{
		"GET /app-1-trip/7": {status: http.StatusForbidden, code: "AccessDenied"},
	})

	_, err := b.Get(context.Background(), "app-1-trip", "7")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrObjectNotFound)
}

func TestS3Backend_DeleteMissingSucceeds(t *testing.T) {
	tests := []struct {
		name  string
		reply s3Reply
	}{
		{"missing key", s3Reply{status: http.StatusNoContent}},
		{"missing bucket", s3Reply{status: http.StatusNotFound, code: "NoSuchBucket"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestS3Backend(t, map[string]s3Reply{"DELETE /app-1-trip/7": tt.reply})
			assert.NoError(t, b.Delete(context.Background(), "app-1-trip", "7"))
		})
	}
}

func TestS3Backend_DeleteDeniedIsUnavailable(t *testing.T) {
	b := newTestS3Backend(t, map[string]s3Reply{
		"DELETE /app-1-trip/7": {status: http.StatusForbidden, code: "AccessDenied"},
	})
	assert.ErrorIs(t, b.Delete(context.Background(), "app-1-trip", "7"), ErrStorageUnavailable)
}

func TestS3Backend_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("existing bucket", func(t *testing.T) {
		b := newTestS3Backend(t, map[string]s3Reply{
			"HEAD /app-1-trip": {status: http.StatusOK},
		})
		assert.NoError(t, b.EnsureBucket(ctx, "app-1-trip"))
	})

	t.Run("created", func(t *testing.T) {
		b := newTestS3Backend(t, map[string]s3Reply{
			"HEAD /app-1-trip": {status: http.StatusNotFound},
			"PUT /app-1-trip":  {status: http.StatusOK},
		})
		assert.NoError(t, b.EnsureBucket(ctx, "app-1-trip"))
	})

	t.Run("created concurrently", func(t *testing.T) {
		b := newTestS3Backend(t, map[string]s3Reply{
			"HEAD /app-1-trip": {status: http.StatusNotFound},
			"PUT /app-1-trip":  {status: http.StatusConflict, code: "BucketAlreadyOwnedByYou"},
		})
		assert.NoError(t, b.EnsureBucket(ctx, "app-1-trip"))
	})

	t.Run("denied", func(t *testing.T) {
		b := newTestS3Backend(t, map[string]s3Reply{
			"HEAD /app-1-trip": {status: http.StatusForbidden},
		})
		assert.ErrorIs(t, b.EnsureBucket(ctx, "app-1-trip"), ErrStorageUnavailable)
	})
}
