package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisClientCache is a cache-aside layer for client registrations so the
// auth guard does not hit Postgres on every request. Misses and redis
// failures fall through to the repo; the cache is never authoritative.
type RedisClientCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClientCache(cfg *config.Config) (*RedisClientCache, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := time.Duration(cfg.Redis.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisClientCache{client: rdb, ttl: ttl}, nil
}

func cacheKey(clientUUID string) string {
	return "client:" + clientUUID
}

func (c *RedisClientCache) Get(ctx context.Context, clientUUID string) (*model.ClientRegistration, bool) {
	raw, err := c.client.Get(ctx, cacheKey(clientUUID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("redis client lookup failed", "error", err)
		}
		return nil, false
	}
	var client model.ClientRegistration
	if err := json.Unmarshal(raw, &client); err != nil {
		// Poisoned entry, drop it
		c.Invalidate(ctx, clientUUID)
		return nil, false
	}
	return &client, true
}

func (c *RedisClientCache) Set(ctx context.Context, client *model.ClientRegistration) {
	raw, err := json.Marshal(client)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(client.ClientUUID), raw, c.ttl).Err(); err != nil {
		logger.Warn("redis client cache write failed", "error", err)
	}
}

func (c *RedisClientCache) Invalidate(ctx context.Context, clientUUID string) {
	if err := c.client.Del(ctx, cacheKey(clientUUID)).Err(); err != nil {
		logger.Warn("redis client cache invalidation failed", "error", err)
	}
}

func (c *RedisClientCache) Close() error {
	return c.client.Close()
}
