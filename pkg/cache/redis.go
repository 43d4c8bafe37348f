package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Hash fields of a stored entry.
const (
	redisFieldValue    = "v"
	redisFieldSliding  = "s"
	redisFieldPriority = "p"
)

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key as "<prefix>:<key>" when set.
	KeyPrefix string
}

// RedisCache is an implementation of Cache using Redis.
// Each entry is a hash holding the payload, the sliding window in milliseconds
// (0 for absolute entries) and the priority, with the key TTL as its deadline.
// Priority is recorded only; eviction under memory pressure follows the
// server's maxmemory-policy.
type RedisCache struct {
	redisClient *redis.Client
	ownsClient  bool
	prefix      string
	logger      zerolog.Logger
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache creates and connects a new RedisCache.
// It pings the Redis server to ensure connectivity before returning.
func NewRedisCache(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "failed to connect to redis")
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	c := NewRedisCacheFromClient(rdb, cfg.KeyPrefix, logger)
	c.ownsClient = true
	return c, nil
}

// NewRedisCacheFromClient wraps an existing client. The caller keeps ownership
// of the client and Close does not close it.
func NewRedisCacheFromClient(client *redis.Client, keyPrefix string, logger zerolog.Logger) *RedisCache {
	return &RedisCache{
		redisClient: client,
		prefix:      keyPrefix,
		logger:      logger.With().Str("component", "RedisCache").Logger(),
	}
}

func (c *RedisCache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Set writes the entry hash and its TTL in one transaction.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, policy EntryPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	var sliding int64
	if policy.IsSliding() {
		sliding = policy.TTL.Milliseconds()
	}

	k := c.key(key)
	_, err := c.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k,
			redisFieldValue, value,
			redisFieldSliding, sliding,
			redisFieldPriority, int(policy.Priority),
		)
		pipe.PExpire(ctx, k, policy.TTL)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to set %q in redis", key)
	}

	c.logger.Debug().Str("key", key).Dur("ttl", policy.TTL).Bool("sliding", policy.IsSliding()).Msg("Stored entry in Redis.")
	return nil
}

// TryGet reads the payload. Sliding entries have their TTL renewed.
func (c *RedisCache) TryGet(ctx context.Context, key string) (Result[[]byte], error) {
	k := c.key(key)
	fields, err := c.redisClient.HMGet(ctx, k, redisFieldValue, redisFieldSliding).Result()
	if err != nil {
		return Absent[[]byte](), errors.Wrapf(err, "failed to get %q from redis", key)
	}
	if len(fields) < 2 || fields[0] == nil {
		c.logger.Debug().Str("key", key).Msg("Redis cache miss.")
		return Absent[[]byte](), nil
	}

	raw, ok := fields[0].(string)
	if !ok {
		return Absent[[]byte](), errors.Mark(errors.Newf("unexpected payload type %T for %q", fields[0], key), ErrCorruptEntry)
	}

	if sliding := parseMillis(fields[1]); sliding > 0 {
		if err := c.redisClient.PExpire(ctx, k, sliding).Err(); err != nil {
			// The payload was read; a failed renewal only shortens its life.
			c.logger.Warn().Err(err).Str("key", key).Msg("Failed to renew sliding expiration.")
		}
	}

	c.logger.Debug().Str("key", key).Msg("Redis cache hit.")
	return Present([]byte(raw)), nil
}

// Remove deletes key. Deleting a missing key is a no-op.
func (c *RedisCache) Remove(ctx context.Context, key string) error {
	if err := c.redisClient.Del(ctx, c.key(key)).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete %q from redis", key)
	}
	return nil
}

// Ping checks connectivity, for readiness probes.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redisClient.Ping(ctx).Err()
}

// Close closes the Redis client connection when this cache created it.
func (c *RedisCache) Close() error {
	if c.redisClient != nil && c.ownsClient {
		c.logger.Info().Msg("Closing Redis client connection...")
		return c.redisClient.Close()
	}
	return nil
}

func parseMillis(v any) time.Duration {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
