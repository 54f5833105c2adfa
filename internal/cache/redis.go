package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/pulse/internal/config"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr:         cfg.Redis.Addr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

// NewFromAddr is a shortcut used by tests against miniredis.
func NewFromAddr(addr string) *RedisCache {
	return &RedisCache{Client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForCooldown is the marker set after a successful "send love".
func KeyForCooldown(senderID int64) string {
	return fmt.Sprintf("love_cooldown:%d", senderID)
}

// KeyForLoveStats caches the pair's sent/received counters for the current day.
func KeyForLoveStats(pairID, day string) string {
	return fmt.Sprintf("love:stats:%s:%s", pairID, day)
}

// Acquire atomically sets key with the given expiry if it is absent
// (SET key 1 NX EX ttl). When the key already exists it reports the
// remaining time-to-live instead.
func (c *RedisCache) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	ok, err := c.Client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}

	remaining, err := c.Client.TTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	// -1 (no expiry) or -2 (expired between the two calls)
	if remaining < 0 {
		remaining = 0
	}
	return false, remaining, nil
}

// Remaining reports the time-to-live of key, or 0 if it does not exist.
func (c *RedisCache) Remaining(ctx context.Context, key string) (time.Duration, error) {
	remaining, err := c.Client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// ErrCountersChanged means the counters were invalidated while a fill was
// in flight, so the freshly loaded values were not cached.
var ErrCountersChanged = errors.New("cache: counters changed during fill")

func counterVersionKey(key string) string { return key + ":v" }

// Counters returns the cached hash at key, filling it from load on a miss.
//
// Behavior:
//   - The fill runs under WATCH on the key's version, so a concurrent
//     InvalidateCounters aborts it with ErrCountersChanged.
//   - Errors from load are returned as is.
func (c *RedisCache) Counters(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (map[string]int64, error)) (map[string]int64, error) {
	var out map[string]int64
	err := c.Client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(raw) > 0 {
			out, err = parseCounters(raw)
			return err
		}

		out, err = load(ctx)
		if err != nil {
			return err
		}
		values := make(map[string]interface{}, len(out))
		for k, v := range out {
			values[k] = v
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values)
			pipe.Expire(ctx, key, ttl)
			return nil
		})
		return err
	}, counterVersionKey(key))
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrCountersChanged
	}
	return out, err
}

// InvalidateCounters drops the cached hash and bumps its version. The
// version outlives the hash by ttl so fills started before the call fail.
func (c *RedisCache) InvalidateCounters(ctx context.Context, key string, ttl time.Duration) error {
	version := counterVersionKey(key)
	pipe := c.Client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.Incr(ctx, version)
	pipe.Expire(ctx, version, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func parseCounters(raw map[string]string) (map[string]int64, error) {
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}
