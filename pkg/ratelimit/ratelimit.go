// Package ratelimit 基于 Redis GCRA 的分布式限流
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// Limiter 限流器接口
type Limiter interface {
	// Allow 判断 key 的本次请求是否放行
	Allow(ctx context.Context, key string) (*Result, error)
	// Limit 返回生效的规则
	Limit() Limit
}

// Limit 限流规则：每 Period 允许 Rate 次，突发 Burst 次
type Limit struct {
	Rate   int
	Period time.Duration
	Burst  int
}

// PerSecond 构造每秒限流规则
func PerSecond(rate, burst int) Limit {
	if burst < rate {
		burst = rate
	}
	return Limit{Rate: rate, Period: time.Second, Burst: burst}
}

// Result 限流判定结果
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAfter time.Duration
	RetryAfter time.Duration
}

// RedisLimiter 基于 redis_rate 的实现，所有实例共享同一 Redis 计数
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   Limit
	prefix  string
}

// NewRedisLimiter 创建 Redis 限流器
func NewRedisLimiter(rdb *redis.Client, limit Limit) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   limit,
		prefix:  "ratelimit:",
	}
}

// Allow 判断是否放行
func (r *RedisLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	res, err := r.limiter.Allow(ctx, r.prefix+key, redis_rate.Limit{
		Rate:   r.limit.Rate,
		Period: r.limit.Period,
		Burst:  r.limit.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
		RetryAfter: res.RetryAfter,
	}, nil
}

// Limit 返回规则
func (r *RedisLimiter) Limit() Limit {
	return r.limit
}
