// Package cache 提供 Redis 客户端封装与 JSON 读写
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/investledger/pkg/logger"
)

// Config Redis 配置
type Config struct {
	Addr         string
	Password     string
	DB           int
	MaxPoolSize  int
	ConnTimeout  int
	ReadTimeout  int
	WriteTimeout int
}

// RedisCache Redis 缓存实现
type RedisCache struct {
	client *redis.Client
}

// New 创建 Redis 缓存实例
func New(ctx context.Context, cfg Config) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.MaxPoolSize,
		DialTimeout:     time.Duration(cfg.ConnTimeout) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.ConnTimeout) * time.Second,
		ReadTimeout:     time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout:    time.Duration(cfg.WriteTimeout) * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info(ctx, "Redis connected successfully", "addr", cfg.Addr)

	return &RedisCache{client: client}, nil
}

// NewFromClient 使用已有客户端创建缓存
func NewFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Client 返回底层客户端
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// GetJSON 获取 JSON 格式的缓存值，未命中返回 false
func (rc *RedisCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	val, err := rc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		logger.Error(ctx, "Redis Get failed", "key", key, "error", err)
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON 设置 JSON 格式的缓存值
func (rc *RedisCache) SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := rc.client.Set(ctx, key, data, expiration).Err(); err != nil {
		logger.Error(ctx, "Redis Set failed", "key", key, "error", err)
		return err
	}
	return nil
}

// Delete 删除缓存
func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := rc.client.Del(ctx, keys...).Err(); err != nil {
		logger.Error(ctx, "Redis Del failed", "keys", keys, "error", err)
		return err
	}
	return nil
}

// Close 关闭客户端
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
