package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/adlink-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RateLimitResult describes the outcome of one rate limit check
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	redis *database.Redis
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *database.Redis) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow applies a sliding window log of limit requests per window to key.
// The request is logged and counted in one MULTI so concurrent callers each
// observe a distinct count; a rejected request removes its own entry.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	now := time.Now()
	redisKey := "ratelimit:" + key
	windowStart := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)
	member := uuid.NewString()

	var (
		count  *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := r.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "0", windowStart)
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		count = pipe.ZCard(ctx, redisKey)
		oldest = pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
		pipe.Expire(ctx, redisKey, window+time.Minute)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record request: %w", err)
	}

	used := int(count.Val())
	if used <= limit {
		return &RateLimitResult{Allowed: true, Remaining: limit - used}, nil
	}

	if err := r.redis.Client.ZRem(ctx, redisKey, member).Err(); err != nil {
		return nil, fmt.Errorf("failed to discard rejected request: %w", err)
	}

	result := &RateLimitResult{Allowed: false, RetryAfter: window}
	if entries := oldest.Val(); len(entries) > 0 {
		oldestTime := time.UnixMilli(int64(entries[0].Score))
		result.RetryAfter = window - now.Sub(oldestTime)
	}
	if result.RetryAfter < time.Second {
		result.RetryAfter = time.Second
	}
	return result, nil
}
