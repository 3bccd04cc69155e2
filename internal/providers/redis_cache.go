package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores the provider records under one key and announces
// reloads on a pub/sub channel.
type RedisCache struct {
	client  *redis.Client
	key     string
	channel string
}

// NewRedisCache constructs a cache scoped to namespace.
func NewRedisCache(client *redis.Client, namespace string) *RedisCache {
	return &RedisCache{
		client:  client,
		key:     namespace + ":providers:snapshot",
		channel: namespace + ":providers:reload",
	}
}

func (c *RedisCache) Load(ctx context.Context) ([]Provider, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get provider cache: %w", err)
	}
	var records []Provider
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false, fmt.Errorf("decode provider cache: %w", err)
	}
	return records, true, nil
}

func (c *RedisCache) Store(ctx context.Context, records []Provider) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode provider cache: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("set provider cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached records.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}

// PublishReload asks every subscribed process to reload its registry.
func (c *RedisCache) PublishReload(ctx context.Context) error {
	return c.client.Publish(ctx, c.channel, "reload").Err()
}

// Subscribe calls onReload for every reload message until ctx is done.
func (c *RedisCache) Subscribe(ctx context.Context, onReload func(context.Context)) error {
	sub := c.client.Subscribe(ctx, c.channel)
	defer sub.Close() //nolint:errcheck

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe provider reload: %w", err)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			onReload(ctx)
		}
	}
}
