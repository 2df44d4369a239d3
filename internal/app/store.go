package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"portalauth/internal/config"
	"portalauth/internal/tokenstore"
)

// redisPingTimeout bounds the connectivity check of the redis backend.
const redisPingTimeout = 5 * time.Second

// openStore creates the configured token store and describes its location.
// The store's Close releases backend connections.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (tokenstore.Store, string, error) {
	switch cfg.Backend {
	case config.StorageBackendMemory:
		return tokenstore.NewMemoryStore(), "memory", nil

	case config.StorageBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, "", fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}

		store := tokenstore.NewRedisStore(client, cfg.Redis.KeyPrefix)
		return store, fmt.Sprintf("redis://%s/%d %s", cfg.Redis.Addr, cfg.Redis.DB, store.Key()), nil

	case config.StorageBackendFile, "":
		store, err := tokenstore.NewFileStore(cfg.Dir, tokenstore.WithFileLogger(logger))
		if err != nil {
			return nil, "", err
		}
		return store, store.Path(), nil

	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
