package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/La-Sectoblique/septotrip-api/internal/config"
)

// NewBackend builds the backend selected by cfg.StorageDriver. It runs once at
// startup; the result is shared for the process lifetime.
func NewBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (Backend, error) {
	switch cfg.StorageDriver {
	case config.DriverMinio:
		backend, err := NewMinioBackend(cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey,
			cfg.StorageRegion, cfg.StorageUseSSL, log)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case config.DriverS3:
		backend, err := NewS3Backend(ctx, cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey,
			cfg.StorageRegion, cfg.StorageUseSSL, log)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisBackend(client), nil
	case config.DriverMemory:
		log.Warn("storage: using in-memory backend, content is lost on restart")
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
