// Redis cache backend.
//
// Information Hiding:
// - Connection options (timeouts, URL parsing) hidden in RedisConfig
// - Key prefixing hidden
// - Redis failures downgraded to misses and logged

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wramirez09/langchain-agent-sub000/internal/logx"
)

const redisKeyPrefix = "priorauth:cache:"

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	URL          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration
}

// NewClient parses the URL, applies timeouts and pings the server.
func (c RedisConfig) NewClient(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, err
	}
	if c.ReadTimeout > 0 {
		opts.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		opts.WriteTimeout = c.WriteTimeout
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Redis implements Cache on top of a Redis server, so several processes can
// share computed results.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps a connected client. ttl <= 0 stores keys without expiry.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{client: client, ttl: ttl}
}

// Get returns the value for key. Connection errors are logged and reported as a miss.
func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	value, err := r.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logx.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		return "", false
	}
	return value, true
}

// Set stores value under key.
func (r *Redis) Set(ctx context.Context, key, value string) {
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, r.ttl).Err(); err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Verify Redis implements Cache
var _ Cache = (*Redis)(nil)
