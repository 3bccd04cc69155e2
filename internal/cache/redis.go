// Package cache builds the shared Redis client used for sessions, the
// provider snapshot cache and reload notifications.
package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/bengobox/social-auth/internal/config"
	"github.com/redis/go-redis/v9"
)

// New initialises a Redis client and verifies it answers.
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		// Redis 7.x rejects the client-side caching handshake.
		DisableIdentity: true,
	}
	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
