package cache

import (
	"context"
	"detour-route-service/internal/platform/obs"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache is a ports.Cache shared by every service instance. Values are
// stored as JSON under "namespace:key".
type RedisCache struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisCache(rdb *redis.Client, log *zap.Logger) *RedisCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCache{rdb: rdb, log: log.Named("cache")}
}

// OpenRedis parses a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("open redis: parse url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("open redis: ping: %w", err)
	}
	return rdb, nil
}

func redisKey(namespace, key string) string {
	return namespace + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, namespace, key string, dst any) (_ bool, err error) {
	defer obs.Time(ctx, c.log, "cache.Get")(&err)

	if c.rdb == nil {
		return false, errors.New("redis cache: client is nil")
	}

	b, err := c.rdb.Get(ctx, redisKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis cache get %s: %w", namespace, err)
	}

	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("redis cache get %s: decode: %w", namespace, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, namespace, key string, value any, ttl time.Duration) (err error) {
	defer obs.Time(ctx, c.log, "cache.Set")(&err)

	if c.rdb == nil {
		return errors.New("redis cache: client is nil")
	}
	if ttl <= 0 {
		return fmt.Errorf("redis cache set %s: ttl must be positive", namespace)
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis cache set %s: encode: %w", namespace, err)
	}
	if err := c.rdb.Set(ctx, redisKey(namespace, key), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set %s: %w", namespace, err)
	}
	return nil
}

// NopCache never stores anything. It stands in when no Redis is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string, string, any) (bool, error) { return false, nil }

func (NopCache) Set(context.Context, string, string, any, time.Duration) error { return nil }
