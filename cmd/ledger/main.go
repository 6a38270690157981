package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/investledger/internal/ledger/application"
	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/investledger/internal/ledger/infrastructure/messaging"
	"github.com/wyfcoding/investledger/internal/ledger/infrastructure/persistence/memory"
	"github.com/wyfcoding/investledger/internal/ledger/infrastructure/persistence/mongo"
	"github.com/wyfcoding/investledger/internal/ledger/infrastructure/persistence/mysql"
	"github.com/wyfcoding/investledger/internal/ledger/infrastructure/persistence/redis"
	grpcserver "github.com/wyfcoding/investledger/internal/ledger/interfaces/grpc"
	httpserver "github.com/wyfcoding/investledger/internal/ledger/interfaces/http"
	"github.com/wyfcoding/investledger/pkg/auth"
	"github.com/wyfcoding/investledger/pkg/cache"
	"github.com/wyfcoding/investledger/pkg/config"
	"github.com/wyfcoding/investledger/pkg/db"
	"github.com/wyfcoding/investledger/pkg/idgen"
	"github.com/wyfcoding/investledger/pkg/logger"
	"github.com/wyfcoding/investledger/pkg/metrics"
	"github.com/wyfcoding/investledger/pkg/mq"
	"github.com/wyfcoding/investledger/pkg/ratelimit"
	"github.com/wyfcoding/investledger/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "configs/ledger/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
		Service:    cfg.ServiceName,
	}); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error(context.Background(), "server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info(context.Background(), "server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	// 3. 追踪
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(ctx, tracing.Config{
			ServiceName:       cfg.ServiceName,
			Version:           cfg.Version,
			Environment:       cfg.Environment,
			CollectorEndpoint: cfg.Tracing.CollectorEndpoint,
			SamplingRate:      cfg.Tracing.SamplingRate,
		})
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn(shutdownCtx, "tracer shutdown failed", "error", err)
			}
		}()
	}

	// 4. 指标
	metricsImpl := metrics.New(cfg.ServiceName)

	// 5. 存储
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn(closeCtx, "failed to close store", "error", err)
		}
	}()

	if err := application.SeedPlans(ctx, store.Plans(), planDefinitions(cfg.Ledger.Plans)); err != nil {
		return fmt.Errorf("failed to seed plan catalog: %w", err)
	}

	// 6. Redis：账本缓存与限流
	var (
		ledgerCache domain.LedgerCache
		limiter     ratelimit.Limiter
	)
	if cfg.Redis.Enabled {
		redisCache, err := cache.New(ctx, cache.Config{
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return err
		}
		defer redisCache.Close()

		ledgerCache = redis.NewLedgerCache(redisCache, time.Duration(cfg.Redis.LedgerTTL)*time.Second)
		if cfg.RateLimit.Enabled {
			limiter = ratelimit.NewRedisLimiter(redisCache.Client(), ratelimit.PerSecond(cfg.RateLimit.QPS, cfg.RateLimit.Burst))
		}
	}

	// 7. 消息投递
	var publisher messaging.Publisher = messaging.LogPublisher{}
	if cfg.Kafka.Enabled {
		producer := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		defer producer.Close()
		publisher = producer
	}
	relay := messaging.NewRelay(store.Outbox(), publisher, messaging.RelayConfig{
		PollInterval: time.Duration(cfg.Outbox.PollInterval) * time.Millisecond,
		BatchSize:    cfg.Outbox.BatchSize,
		TopicPrefix:  cfg.Kafka.TopicPrefix,
	}, metricsImpl)

	// 8. 应用服务
	ids, err := idgen.NewSnowflake(cfg.Ledger.NodeID)
	if err != nil {
		return err
	}
	ledgers := application.NewLedgerStore(store, ledgerCache, ids, metricsImpl)
	handler := httpserver.NewHandler(httpserver.Services{
		Plans:     application.NewPlanService(ledgers, store.Plans()),
		Transfers: application.NewTransferService(ledgers),
		Funding:   application.NewFundingService(ledgers),
		Payouts:   application.NewPayoutService(store.PayoutAccounts(), ids),
		Profiles:  application.NewProfileService(ledgers, cfg.Ledger.DefaultCurrency),
		Queries:   application.NewQueryService(ledgers),
	})

	// 9. 接口层
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	opts := httpserver.RouterOptions{
		ServiceName: cfg.ServiceName,
		Tracing:     cfg.Tracing.Enabled,
		Metrics:     metricsImpl,
		Limiter:     limiter,
	}
	if cfg.Auth.Enabled {
		opts.Verifier = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	}
	router := httpserver.NewRouter(handler, opts)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           httpserver.NewCORS(cfg.HTTP.CORSAllowedOrigins).Handler(router),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
	grpcSrv := grpcserver.NewServer()

	// 10. 启动
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return grpcSrv.ListenAndServe(gctx, fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port))
	})

	g.Go(func() error {
		logger.Info(gctx, "HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return relay.Run(gctx)
	})

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metricsImpl.Serve(gctx, cfg.Metrics.Port, cfg.Metrics.Path)
		})
	}

	// 11. 优雅关闭
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down servers...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore 按驱动打开存储，SQL 与 mongo 在启动时建表/建索引
func openStore(ctx context.Context, cfg *config.Config) (domain.Store, error) {
	switch cfg.Database.Driver {
	case "mysql", "postgres":
		gdb, err := db.Init(ctx, db.Config{
			Driver:             cfg.Database.Driver,
			DSN:                cfg.Database.DSN,
			MaxOpenConns:       cfg.Database.MaxOpenConns,
			MaxIdleConns:       cfg.Database.MaxIdleConns,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
			LogEnabled:         cfg.Database.LogEnabled,
			SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
			Tracing:            cfg.Tracing.Enabled,
		})
		if err != nil {
			return nil, err
		}
		store := mysql.NewStore(gdb.DB)
		if cfg.Database.AutoMigrate || cfg.Environment == "dev" {
			if err := store.AutoMigrate(ctx); err != nil {
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		return store, nil
	case "mongo":
		store, err := mongo.Connect(ctx, cfg.Database.DSN, cfg.Database.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure indexes: %w", err)
		}
		return store, nil
	case "memory":
		logger.Warn(ctx, "using in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

func planDefinitions(plans []config.PlanConfig) []*domain.PlanDefinition {
	defs := make([]*domain.PlanDefinition, 0, len(plans))
	for _, p := range plans {
		def := &domain.PlanDefinition{
			ID:         p.ID,
			Name:       p.Name,
			Category:   p.Category,
			MinAmount:  decimal.RequireFromString(p.MinAmount),
			ROIPercent: decimal.RequireFromString(p.ROIPercent),
		}
		if p.MaxAmount != "" {
			def.MaxAmount = decimal.RequireFromString(p.MaxAmount)
		}
		defs = append(defs, def)
	}
	return defs
}
