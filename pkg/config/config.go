// Package config 提供 TOML 配置加载、环境变量覆盖与配置校验
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// gRPC 服务配置（仅承载健康检查）
	GRPC GRPCConfig `mapstructure:"grpc"`
	// 存储配置
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Outbox 投递配置
	Outbox OutboxConfig `mapstructure:"outbox"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 追踪配置
	Tracing TracingConfig `mapstructure:"tracing"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 鉴权配置
	Auth AuthConfig `mapstructure:"auth"`
	// 限流配置
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// 账本业务配置
	Ledger LedgerConfig `mapstructure:"ledger"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	// 允许跨域访问的前端来源，不支持通配符
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// GRPCConfig gRPC 服务配置
type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig 存储配置
type DatabaseConfig struct {
	// 驱动：mysql, postgres, mongo, memory
	Driver string `mapstructure:"driver"`
	// 数据源名称（mongo 时为连接 URI）
	DSN string `mapstructure:"dsn"`
	// mongo 数据库名
	MongoDatabase string `mapstructure:"mongo_database"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 是否启用 SQL 日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
	// 启动时自动建表
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	MaxPoolSize  int    `mapstructure:"max_pool_size"`
	ConnTimeout  int    `mapstructure:"conn_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	// 账本缓存过期时间（秒）
	LedgerTTL int `mapstructure:"ledger_ttl"`
}

// Addr 返回 host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Brokers      []string `mapstructure:"brokers"`
	TopicPrefix  string   `mapstructure:"topic_prefix"`
	MaxRetries   int      `mapstructure:"max_retries"`
	RetryBackoff int      `mapstructure:"retry_backoff"`
}

// OutboxConfig Outbox 投递配置
type OutboxConfig struct {
	// 轮询间隔（毫秒）
	PollInterval int `mapstructure:"poll_interval"`
	// 单批最大条数
	BatchSize int `mapstructure:"batch_size"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SamplingRate      float64 `mapstructure:"sampling_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// AuthConfig 鉴权配置，令牌由外部身份服务签发
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	QPS     int  `mapstructure:"qps"`
	Burst   int  `mapstructure:"burst"`
}

// LedgerConfig 账本业务配置
type LedgerConfig struct {
	// 默认展示币种
	DefaultCurrency string `mapstructure:"default_currency"`
	// 雪花 ID 节点号，多实例部署时各不相同
	NodeID int64 `mapstructure:"node_id"`
	// 启动时写入方案目录的种子方案（目录为空时）
	Plans []PlanConfig `mapstructure:"plans"`
}

// PlanConfig 方案种子配置
type PlanConfig struct {
	ID         string `mapstructure:"id"`
	Name       string `mapstructure:"name"`
	Category   string `mapstructure:"category"`
	MinAmount  string `mapstructure:"min_amount"`
	MaxAmount  string `mapstructure:"max_amount"`
	ROIPercent string `mapstructure:"roi_percent"`
}

// Load 从 TOML 文件加载配置，支持 APP_ 前缀环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	for _, origin := range c.HTTP.CORSAllowedOrigins {
		if strings.Contains(origin, "*") {
			return fmt.Errorf("wildcard CORS origin %q is not allowed with credentials", origin)
		}
	}
	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}

	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s driver", c.Database.Driver)
		}
	case "mongo":
		if c.Database.DSN == "" {
			return fmt.Errorf("mongo URI is required")
		}
		if c.Database.MongoDatabase == "" {
			return fmt.Errorf("mongo_database is required for mongo driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if c.RateLimit.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("rate limiting requires redis")
	}

	if c.Ledger.NodeID < 0 || c.Ledger.NodeID > 1023 {
		return fmt.Errorf("ledger.node_id must be within 0-1023")
	}

	for _, p := range c.Ledger.Plans {
		if err := p.validate(); err != nil {
			return fmt.Errorf("plan %q: %w", p.ID, err)
		}
	}
	return nil
}

func (p PlanConfig) validate() error {
	if p.ID == "" || p.Name == "" {
		return fmt.Errorf("id and name are required")
	}
	roi, err := decimal.NewFromString(p.ROIPercent)
	if err != nil || !roi.IsPositive() {
		return fmt.Errorf("roi_percent must be a positive number")
	}
	minAmount, err := decimal.NewFromString(p.MinAmount)
	if err != nil || minAmount.IsNegative() {
		return fmt.Errorf("min_amount must be a non-negative number")
	}
	if p.MaxAmount == "" {
		return nil
	}
	maxAmount, err := decimal.NewFromString(p.MaxAmount)
	if err != nil {
		return fmt.Errorf("max_amount must be a number")
	}
	if maxAmount.IsPositive() && maxAmount.LessThan(minAmount) {
		return fmt.Errorf("max_amount must not be below min_amount")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("http.cors_allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("database.mongo_database", "investledger")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)
	v.SetDefault("redis.ledger_ttl", 300)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic_prefix", "investledger")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("outbox.poll_interval", 1000)
	v.SetDefault("outbox.batch_size", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/ledger.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", true)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.collector_endpoint", "localhost:4317")
	v.SetDefault("tracing.sampling_rate", 1.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("auth.enabled", false)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.qps", 20)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("ledger.default_currency", "USD")
	v.SetDefault("ledger.node_id", 1)
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
