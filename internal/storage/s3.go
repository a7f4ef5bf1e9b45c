package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// S3Backend implements Backend on the AWS SDK. Get returns Streamed bodies
// wrapping the HTTP response body.
type S3Backend struct {
	client *s3.Client
	region string
	log    *zap.Logger
}

// NewS3Backend loads AWS configuration with static credentials. A non-empty
// endpoint points the client at an S3-compatible server using path-style
// addressing.
func NewS3Backend(ctx context.Context, endpoint, accessKey, secretKey, region string, useSSL bool, log *zap.Logger) (*S3Backend, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(endpoint, useSSL))
			o.UsePathStyle = true
		}
	})
	return &S3Backend{client: client, region: region, log: log}, nil
}

// endpointURL adds a scheme to host:port style endpoints.
func endpointURL(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// EnsureBucket creates the bucket when HeadBucket reports it missing.
func (s *S3Backend) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var missing *types.NotFound
	if !errors.As(err, &missing) && apiErrorCode(err) != "NotFound" {
		return unavailable(fmt.Sprintf("check bucket %q", bucket), err)
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.region != "" && s.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, in); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return unavailable(fmt.Sprintf("create bucket %q", bucket), err)
	}
	s.log.Info("storage: created bucket", zap.String("bucket", bucket))
	return nil
}

// Put uploads data under key.
func (s *S3Backend) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return unavailable(fmt.Sprintf("put object %s/%s", bucket, key), err)
	}
	return nil
}

// Get fetches the object. The response body is handed over unread.
func (s *S3Backend) Get(ctx context.Context, bucket, key string) (*Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, notFound(bucket, key)
		}
		return nil, unavailable(fmt.Sprintf("get object %s/%s", bucket, key), err)
	}
	return &Object{Body: Streamed{Stream: out.Body}, ContentType: aws.ToString(out.ContentType)}, nil
}

// Delete removes the object. S3 already treats a missing key as success; a
// missing bucket is treated the same way.
func (s *S3Backend) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isS3NotFound(err) {
		return unavailable(fmt.Sprintf("delete object %s/%s", bucket, key), err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return true
	}
	switch apiErrorCode(err) {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
