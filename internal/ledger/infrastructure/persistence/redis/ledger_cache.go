// Package redis 账本读缓存
package redis

import (
	"context"
	"time"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/pkg/cache"
)

var _ domain.LedgerCache = (*LedgerCache)(nil)

// LedgerCache 以用户 ID 为键缓存账本快照，只在事务提交后写入或删除
type LedgerCache struct {
	cache  *cache.RedisCache
	prefix string
	ttl    time.Duration
}

// NewLedgerCache 创建账本缓存
func NewLedgerCache(c *cache.RedisCache, ttl time.Duration) *LedgerCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LedgerCache{
		cache:  c,
		prefix: "investledger:ledger:",
		ttl:    ttl,
	}
}

// Get 未命中返回 nil, nil
func (c *LedgerCache) Get(ctx context.Context, userID string) (*domain.Ledger, error) {
	var l domain.Ledger
	ok, err := c.cache.GetJSON(ctx, c.key(userID), &l)
	if err != nil || !ok {
		return nil, err
	}
	return &l, nil
}

func (c *LedgerCache) Set(ctx context.Context, l *domain.Ledger) error {
	if l == nil {
		return nil
	}
	return c.cache.SetJSON(ctx, c.key(l.UserID), l, c.ttl)
}

func (c *LedgerCache) Invalidate(ctx context.Context, userIDs ...string) error {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, c.key(id))
	}
	return c.cache.Delete(ctx, keys...)
}

func (c *LedgerCache) key(userID string) string {
	return c.prefix + userID
}
