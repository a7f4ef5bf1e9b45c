package storage

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMinioBackend(t *testing.T, routes map[string]s3Reply) *MinioBackend {
	t.Helper()
	srv := newFakeS3(t, routes)
	b, err := NewMinioBackend(strings.TrimPrefix(srv.URL, "http://"), "access", "secret", "us-east-1", false, zap.NewNop())
	require.NoError(t, err)
	return b
}

func TestMinioBackend_GetMissingKeyIsNotFound(t *testing.T) {
	b := newTestMinioBackend(t, map[string]s3Reply{
		"HEAD /app-1-trip/7": {status: http.StatusNotFound},
	})

	_, err := b.Get(context.Background(), "app-1-trip", "7")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.NotErrorIs(t, err, ErrStorageUnavailable)
}

func TestMinioBackend_GetDeniedIsUnavailable(t *testing.T) {
	b := newTestMinioBackend(t, map[string]s3Reply{
		"HEAD /app-1-trip/7": {status: http.StatusForbidden},
	})

	_, err := b.Get(context.Background(), "app-1-trip", "7")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrObjectNotFound)
}

func TestMinioBackend_DeleteMissingSucceeds(t *testing.T) {
	tests := []struct {
		name  string
		reply s3Reply
	}{
		{"missing key", s3Reply{status: http.StatusNoContent}},
		{"missing bucket", s3Reply{status: http.StatusNotFound, code: "NoSuchBucket"}},
		{"missing key reported", s3Reply{status: http.StatusNotFound, code: "NoSuchKey"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestMinioBackend(t, map[string]s3Reply{"DELETE /app-1-trip/7": tt.reply})
			assert.NoError(t, b.Delete(context.Background(), "app-1-trip", "7"))
		})
	}
}

func TestMinioBackend_DeleteDeniedIsUnavailable(t *testing.T) {
	b := newTestMinioBackend(t, map[string]s3Reply{
		"DELETE /app-1-trip/7": {status: http.StatusForbidden, code: "AccessDenied"},
	})
	assert.ErrorIs(t, b.Delete(context.Background(), "app-1-trip", "7"), ErrStorageUnavailable)
}

func TestMinioBackend_EnsureBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("existing bucket", func(t *testing.T) {
		b := newTestMinioBackend(t, map[string]s3Reply{
			"HEAD /app-1-trip": {status: http.StatusOK},
		})
		assert.NoError(t, b.EnsureBucket(ctx, "app-1-trip"))
	})

	t.Run("created", func(t *testing.T) {
		b := newTestMinioBackend(t, map[string]s3Reply{
			"HEAD /app-1-trip": {status: http.StatusNotFound},
			"PUT /app-1-trip":  {status: http.StatusOK},
		})
		assert.NoError(t, b.EnsureBucket(ctx, "app-1-trip"))
	})

	t.Run("created concurrently", func(t *testing.T) {
		b := newTestMinioBackend(t, map[string]s3Reply{
			"HEAD /app-1-trip": {status: http.StatusNotFound},
			"PUT /app-1-trip":  {status: http.StatusConflict, code: "BucketAlreadyOwnedByYou"},
		})
		assert.NoError(t, b.EnsureBucket(ctx, "app-1-trip"))
	})

	t.Run("denied", func(t *testing.T) {
		b := newTestMinioBackend(t, map[string]s3Reply{
			"HEAD /app-1-trip": {status: http.StatusForbidden},
		})
		assert.ErrorIs(t, b.EnsureBucket(ctx, "app-1-trip"), ErrStorageUnavailable)
	})
}
