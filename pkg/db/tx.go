package db

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx 把事务句柄放入 ctx，仓储通过 Conn 取回
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// Conn 返回 ctx 中的事务句柄，没有事务时返回 fallback
func Conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return fallback.WithContext(ctx)
}

// InTx ctx 是否已携带事务
func InTx(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok && tx != nil
}
