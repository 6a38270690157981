package db

import (
	"context"
	"errors"
	"time"

	pkgLogger "github.com/wyfcoding/investledger/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormLogger 把 GORM 日志接到 slog，带 trace/request id
type GormLogger struct {
	level              logger.LogLevel
	slowQueryThreshold time.Duration
}

// NewGormLogger verbose 为 true 时输出每条 SQL
func NewGormLogger(verbose bool, slowQueryThreshold time.Duration) *GormLogger {
	level := logger.Warn
	if verbose {
		level = logger.Info
	}
	return &GormLogger{level: level, slowQueryThreshold: slowQueryThreshold}
}

// LogMode 返回指定级别的副本
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

// Info 记录信息日志
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		pkgLogger.Info(ctx, msg, "data", data)
	}
}

// Warn 记录警告日志
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		pkgLogger.Warn(ctx, msg, "data", data)
	}
}

// Error 记录错误日志
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		pkgLogger.Error(ctx, msg, "data", data)
	}
}

// Trace 每条 SQL 执行后回调。记录不存在与唯一冲突属于业务分支，不按错误输出
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	slow := l.slowQueryThreshold > 0 && elapsed > l.slowQueryThreshold
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, gorm.ErrDuplicatedKey)

	switch {
	case failed && l.level >= logger.Error:
		sql, rows := fc()
		pkgLogger.Error(ctx, "SQL failed", "duration", elapsed, "rows", rows, "sql", sql, "error", err)
	case slow && l.level >= logger.Warn:
		sql, rows := fc()
		pkgLogger.Warn(ctx, "Slow SQL", "duration", elapsed, "threshold", l.slowQueryThreshold, "rows", rows, "sql", sql)
	case l.level >= logger.Info:
		sql, rows := fc()
		pkgLogger.Debug(ctx, "SQL", "duration", elapsed, "rows", rows, "sql", sql)
	}
}
