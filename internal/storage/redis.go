package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisBucketsKey    = "septotrip:buckets"
	redisObjectPrefix  = "septotrip:object:"
	redisDataField     = "data"
	redisMimeTypeField = "type"
)

// RedisBackend keeps each object in a Redis hash. Redis hands values back as
// strings, so Get returns Flat bodies.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func redisObjectKey(bucket, key string) string {
	return redisObjectPrefix + bucket + "/" + key
}

// EnsureBucket records the bucket in the bucket set.
func (s *RedisBackend) EnsureBucket(ctx context.Context, bucket string) error {
	if err := s.client.SAdd(ctx, redisBucketsKey, bucket).Err(); err != nil {
		return unavailable(fmt.Sprintf("create bucket %q", bucket), err)
	}
	return nil
}

// Put stores data and its content type under key.
func (s *RedisBackend) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	op := fmt.Sprintf("put object %s/%s", bucket, key)
	ok, err := s.client.SIsMember(ctx, redisBucketsKey, bucket).Result()
	if err != nil {
		return unavailable(op, err)
	}
	if !ok {
		return unavailable(op, ErrNoSuchBucket)
	}
	err = s.client.HSet(ctx, redisObjectKey(bucket, key),
		redisDataField, data,
		redisMimeTypeField, contentType,
	).Err()
	if err != nil {
		return unavailable(op, err)
	}
	return nil
}

// Get reads the object hash.
func (s *RedisBackend) Get(ctx context.Context, bucket, key string) (*Object, error) {
	vals, err := s.client.HMGet(ctx, redisObjectKey(bucket, key), redisDataField, redisMimeTypeField).Result()
	if err != nil {
		return nil, unavailable(fmt.Sprintf("get object %s/%s", bucket, key), err)
	}
	text, ok := vals[0].(string)
	if !ok {
		return nil, notFound(bucket, key)
	}
	mimeType, _ := vals[1].(string)
	return &Object{Body: Flat{Text: text}, ContentType: mimeType}, nil
}

// Delete removes the object hash.
func (s *RedisBackend) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.Del(ctx, redisObjectKey(bucket, key)).Err(); err != nil {
		return unavailable(fmt.Sprintf("delete object %s/%s", bucket, key), err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (s *RedisBackend) Close() error {
	return s.client.Close()
}
