package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioBackend implements Backend using a MinIO (or any S3-compatible) server.
// Get returns Streamed bodies backed by *minio.Object.
type MinioBackend struct {
	client *minio.Client
	region string
	log    *zap.Logger
}

// NewMinioBackend creates the MinIO client. The client keeps its own
// connection pool and is shared by every request for the process lifetime.
func NewMinioBackend(endpoint, accessKey, secretKey, region string, useSSL bool, log *zap.Logger) (*MinioBackend, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioBackend{client: client, region: region, log: log}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (s *MinioBackend) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return unavailable(fmt.Sprintf("check bucket %q", bucket), err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			// lost a creation race with another request
			return nil
		}
		return unavailable(fmt.Sprintf("create bucket %q", bucket), err)
	}
	s.log.Info("storage: created bucket", zap.String("bucket", bucket))
	return nil
}

// Put uploads data under key.
func (s *MinioBackend) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return unavailable(fmt.Sprintf("put object %s/%s", bucket, key), err)
	}
	return nil
}

// Get opens the object. minio-go is lazy, so the object is stat'ed first to
// surface a missing key before any byte is read.
func (s *MinioBackend) Get(ctx context.Context, bucket, key string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.getError(bucket, key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, s.getError(bucket, key, err)
	}
	return &Object{Body: Streamed{Stream: obj}, ContentType: info.ContentType}, nil
}

func (s *MinioBackend) getError(bucket, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return notFound(bucket, key)
	}
	return unavailable(fmt.Sprintf("get object %s/%s", bucket, key), err)
}

// Delete removes the object at key. Missing keys and buckets are not errors.
func (s *MinioBackend) Delete(ctx context.Context, bucket, key string) error {
	err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return nil
	}
	return unavailable(fmt.Sprintf("delete object %s/%s", bucket, key), err)
}
