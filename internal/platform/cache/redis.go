package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"userdesk/internal/domain/model"
	"userdesk/internal/platform/config"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// UserCache stores user rows by username. A miss is (nil, false, nil).
type UserCache interface {
	Get(ctx context.Context, username string) (*model.User, bool, error)
	Set(ctx context.Context, user model.User) error
	Delete(ctx context.Context, username string) error
	Ping(ctx context.Context) error
	Close() error
}

// ConnectRedis dials the configured Redis server and verifies it answers.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return rdb, nil
}

type redisUserCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisUserCache namespaces keys by table so two deployments sharing a
// Redis database do not read each other's rows.
func NewRedisUserCache(rdb *redis.Client, table string, ttl time.Duration) UserCache {
	return &redisUserCache{rdb: rdb, prefix: "user:" + table + ":", ttl: ttl}
}

func (c *redisUserCache) key(username string) string {
	return c.prefix + username
}

func (c *redisUserCache) Get(ctx context.Context, username string) (*model.User, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redisUserCache.Get: %w", err)
	}

	user := &model.User{}
	if err := json.Unmarshal(raw, user); err != nil {
		return nil, false, fmt.Errorf("redisUserCache.Get: decode %s: %w", username, err)
	}
	return user, true, nil
}

func (c *redisUserCache) Set(ctx context.Context, user model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("redisUserCache.Set: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key(user.Username), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redisUserCache.Set: %w", err)
	}
	return nil
}

func (c *redisUserCache) Delete(ctx context.Context, username string) error {
	if err := c.rdb.Del(ctx, c.key(username)).Err(); err != nil {
		return fmt.Errorf("redisUserCache.Delete: %w", err)
	}
	return nil
}

func (c *redisUserCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *redisUserCache) Close() error {
	return c.rdb.Close()
}

// Noop is used when no Redis address is configured.
type Noop struct{}

func (Noop) Get(context.Context, string) (*model.User, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, model.User) error                 { return nil }
func (Noop) Delete(context.Context, string) error                   { return nil }
func (Noop) Ping(context.Context) error                             { return nil }
func (Noop) Close() error                                           { return nil }
