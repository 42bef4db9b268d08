package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oggyb/kinnect/internal/config"
	"github.com/redis/go-redis/v9"
)

// CountTTL is how long cached social counters live without access.
const CountTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// Set stores value under key for ttl.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

// Get reads key. A missing key returns redis.Nil.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

// Del removes keys.
func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}

// KeyForOTPCooldown generates the Redis key guarding OTP resends for one phone and role.
func (c *RedisCache) KeyForOTPCooldown(role, countryCode, phone string) string {
	return fmt.Sprintf("otp:cooldown:%s:%s%s", role, countryCode, phone)
}

// AcquireCooldown sets key only if absent. It returns false while a previous
// cooldown is still running.
func (c *RedisCache) AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.Client.SetNX(ctx, key, time.Now().UTC().Unix(), ttl).Result()
}

// KeyForRefresh generates the key under which an issued refresh token id is tracked.
func (c *RedisCache) KeyForRefresh(jti string) string {
	return fmt.Sprintf("auth:refresh:%s", jti)
}

// StoreRefresh records an issued refresh token id for its lifetime.
func (c *RedisCache) StoreRefresh(ctx context.Context, jti, subject string, ttl time.Duration) error {
	return c.Set(ctx, c.KeyForRefresh(jti), subject, ttl)
}

// ConsumeRefresh atomically removes a refresh token id. It returns the subject it
// was issued to, or "" when the id is unknown or already used.
func (c *RedisCache) ConsumeRefresh(ctx context.Context, jti string) (string, error) {
	val, err := c.Client.GetDel(ctx, c.KeyForRefresh(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// KeyForFollowerCount generates Redis key for a user's follower count
func (c *RedisCache) KeyForFollowerCount(userID string) string {
	return fmt.Sprintf("social:followers:count:%s", userID)
}

// KeyForFollowingCount generates Redis key for a user's following count
func (c *RedisCache) KeyForFollowingCount(userID string) string {
	return fmt.Sprintf("social:following:count:%s", userID)
}

// SetCount stores a counter and refreshes its TTL.
func (c *RedisCache) SetCount(ctx context.Context, key string, count int64) error {
	// Always refresh TTL when updating
	return c.Set(ctx, key, count, CountTTL)
}

// GetCount reads a counter. ok is false on a cache miss.
func (c *RedisCache) GetCount(ctx context.Context, key string) (count int64, ok bool, err error) {
	val, err := c.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, CountTTL).Err()
	return n, true, nil
}

// InvalidateCounts drops the cached follower/following counters of the given users.
func (c *RedisCache) InvalidateCounts(ctx context.Context, userIDs ...string) error {
	keys := make([]string, 0, len(userIDs)*2)
	for _, id := range userIDs {
		keys = append(keys, c.KeyForFollowerCount(id), c.KeyForFollowingCount(id))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.Del(ctx, keys...)
}
