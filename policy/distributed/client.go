// Package distributed provides a policy.Policy that coordinates a rate
// limit budget across multiple processes via Redis, generalizing
// policy.RateLimit's single-process sliding window the way the teacher's
// AdaptiveRateLimiter generalizes a process-local token bucket into a
// cluster-coordinated one (features/model/middleware/ratelimit.go) — but
// targeting github.com/redis/go-redis/v9 directly rather than a Pulse
// replicated map, since this module has no other use for Pulse.
package distributed

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// limiterClient is the narrow surface RateLimit needs from a Redis
// client, mirroring the teacher's own clusterMap interface
// (features/model/middleware/ratelimit.go) so tests can substitute a fake
// without a live Redis server.
type limiterClient interface {
	// zRemRangeByScore removes every member of key scored at or below
	// maxScore — the sliding-window prune step.
	zRemRangeByScore(ctx context.Context, key string, maxScore float64) error
	// zCard reports key's current member count.
	zCard(ctx context.Context, key string) (int64, error)
	// zAdd records one member scored at score.
	zAdd(ctx context.Context, key string, score float64, member string) error
	// oldestScore reports the lowest score currently in key, used to
	// estimate when the window's oldest entry will age out.
	oldestScore(ctx context.Context, key string) (float64, bool, error)
	// expire refreshes key's TTL so an idle limiter's bookkeeping doesn't
	// grow Redis memory forever.
	expire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisClient adapts *redis.Client to limiterClient.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient wraps rdb for use with NewRateLimit.
func NewRedisClient(rdb *redis.Client) *RedisClient {
	return &RedisClient{rdb: rdb}
}

func (c *RedisClient) zRemRangeByScore(ctx context.Context, key string, maxScore float64) error {
	return c.rdb.ZRemRangeByScore(ctx, key, "-inf", formatScore(maxScore)).Err()
}

func (c *RedisClient) zCard(ctx context.Context, key string) (int64, error) {
	return c.rdb.ZCard(ctx, key).Result()
}

func (c *RedisClient) zAdd(ctx context.Context, key string, score float64, member string) error {
	return c.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (c *RedisClient) oldestScore(ctx context.Context, key string) (float64, bool, error) {
	vals, err := c.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return 0, false, err
	}
	if len(vals) == 0 {
		return 0, false, nil
	}
	return vals[0].Score, true, nil
}

func (c *RedisClient) expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, key, ttl).Err()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
