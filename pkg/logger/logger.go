// Package logger 基于 slog 的全局日志：trace/span/request id 注入，文件输出经 lumberjack 切割
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

var globalLogger *slog.Logger

type ctxKey string

const (
	traceIDKey   ctxKey = "trace_id"
	spanIDKey    ctxKey = "span_id"
	requestIDKey ctxKey = "request_id"
)

// Config 日志配置
type Config struct {
	// debug, info, warn, error
	Level string
	// json 或 text
	Format string
	// stdout, file, both
	Output string
	// 文件输出路径
	FilePath string
	// 单文件上限（MB）
	MaxSize    int
	MaxBackups int
	// 保留天数
	MaxAge     int
	Compress   bool
	WithCaller bool
	// 固定输出的 service 字段
	Service string
}

// ParseLevel 未知级别按 info 处理
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newWriter(cfg Config) (io.Writer, error) {
	if cfg.Output != "file" && cfg.Output != "both" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}
	rotated := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	if cfg.Output == "both" {
		return io.MultiWriter(os.Stdout, rotated), nil
	}
	return rotated, nil
}

// New 按配置构造 logger，不修改全局实例
func New(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.WithCaller,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	}

	l := slog.New(handler)
	if cfg.Service != "" {
		l = l.With(slog.String("service", cfg.Service))
	}
	return l
}

// Init 初始化全局日志实例，同时设为 slog 默认 logger
func Init(cfg Config) error {
	w, err := newWriter(cfg)
	if err != nil {
		return err
	}
	globalLogger = New(cfg, w)
	slog.SetDefault(globalLogger)
	return nil
}

// Get 获取全局日志实例
func Get() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// ContextWithIDs 写入请求级 trace/span/request id，未接入 OpenTelemetry 时使用
func ContextWithIDs(ctx context.Context, traceID, spanID, requestID string) context.Context {
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, spanID)
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID 返回 context 中的请求 ID
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithContext 返回附带 trace_id、span_id、request_id 的 logger
func WithContext(ctx context.Context) *slog.Logger {
	l := Get()
	attrs := make([]any, 0, 3)
	traceID, spanID := extractIDs(ctx)
	if traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if spanID != "" {
		attrs = append(attrs, slog.String("span_id", spanID))
	}
	if reqID := RequestID(ctx); reqID != "" {
		attrs = append(attrs, slog.String("request_id", reqID))
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}

func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).DebugContext(ctx, msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).InfoContext(ctx, msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).WarnContext(ctx, msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).ErrorContext(ctx, msg, args...)
}

// LogDuration 用法：defer logger.LogDuration(ctx, "xxx")()
func LogDuration(ctx context.Context, msg string, args ...any) func() {
	start := time.Now()
	return func() {
		Info(ctx, msg, append(args, slog.Duration("duration", time.Since(start)))...)
	}
}

// extractIDs 优先取 OpenTelemetry span，其次取中间件注入的 id
func extractIDs(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String(), sc.SpanID().String()
	}
	traceID, _ := ctx.Value(traceIDKey).(string)
	spanID, _ := ctx.Value(spanIDKey).(string)
	return traceID, spanID
}
