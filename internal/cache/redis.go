package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vienna-backend/internal/config"
	"vienna-backend/internal/logging"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("another request is already working on this")

// Cache wraps a Redis client. A nil *Cache is valid: reads miss, writes and
// locks are no-ops.
type Cache struct {
	rdb    *redis.Client
	locker *redislock.Client
}

// Connect returns nil when Redis is not configured.
func Connect(ctx context.Context, cfg *config.Config) (*Cache, error) {
	if !cfg.RedisEnabled() {
		logging.GetLogger().Info("REDIS_ADDR not set, caching and locks are disabled")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: 20,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr, err)
	}
	logging.GetLogger().Infof("connected to redis at %s", cfg.RedisAddr)
	return &Cache{rdb: rdb, locker: redislock.New(rdb)}, nil
}

func (c *Cache) Enabled() bool { return c != nil && c.rdb != nil }

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Close()
}

// GetObject decodes the JSON stored at key into dest and reports whether it
// was found.
func (c *Cache) GetObject(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetObject(ctx context.Context, key string, obj any, exp time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, exp).Err()
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

const lockRetryBackoff = 50 * time.Millisecond

// Lock obtains a short lived lock on key. Without Redis it always succeeds.
// The returned release func must be called when done.
func (c *Cache) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return c.obtain(ctx, key, ttl, nil)
}

// LockWait is Lock that keeps retrying for up to wait while the lock is held.
func (c *Cache) LockWait(ctx context.Context, key string, ttl, wait time.Duration) (func(), error) {
	retries := max(1, int(wait/lockRetryBackoff))
	return c.obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(lockRetryBackoff), retries),
	})
}

func (c *Cache) obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (func(), error) {
	if !c.Enabled() {
		return func() {}, nil
	}
	lock, err := c.locker.Obtain(ctx, "lock:"+key, ttl, opt)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		// context may be cancelled by now
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logging.LogError("cache", "Lock", "release "+key, nil, err)
		}
	}, nil
}
