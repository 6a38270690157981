// Package db 负责 GORM 连接（mysql/postgres）、连接池与追踪插件，以及经 context 传递的事务
package db

import (
	"context"
	"fmt"
	"time"

	pkgLogger "github.com/wyfcoding/investledger/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Config 数据库配置
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	// 输出全部 SQL，否则只输出慢查询与错误
	LogEnabled bool
	// 慢查询阈值（毫秒），0 关闭
	SlowQueryThreshold int
	Tracing            bool
}

// DB 数据库实例包装
type DB struct {
	*gorm.DB
	driver string
}

func dialect(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Init 打开连接并探活
func Init(ctx context.Context, cfg Config) (*DB, error) {
	dialector, err := dialect(cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(cfg.LogEnabled, time.Duration(cfg.SlowQueryThreshold)*time.Millisecond),
		// 事务由应用层显式开启
		SkipDefaultTransaction: true,
		// 唯一约束冲突统一翻译为 gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Driver, err)
	}

	if cfg.Tracing {
		if err := gdb.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("failed to install tracing plugin: %w", err)
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Driver, err)
	}

	pkgLogger.Info(ctx, "Database connected",
		"driver", cfg.Driver,
		"max_open_conns", cfg.MaxOpenConns,
		"tracing", cfg.Tracing,
	)
	return &DB{DB: gdb, driver: cfg.Driver}, nil
}

// Driver 返回驱动名
func (d *DB) Driver() string {
	return d.driver
}

// Close 关闭连接池
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
