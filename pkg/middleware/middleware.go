// Package middleware 提供 Gin 与 gRPC 的通用中间件（日志、trace、panic recover、指标、鉴权）
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wyfcoding/investledger/pkg/auth"
	"github.com/wyfcoding/investledger/pkg/logger"
	"github.com/wyfcoding/investledger/pkg/metrics"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RequestIDKey gin context key for request ID
const RequestIDKey = "request_id"

// AuthUserKey gin context key for the authenticated user ID
const AuthUserKey = "auth_user_id"

// GinLoggingMiddleware Gin 日志中间件，生成请求 ID 并写入 context
func GinLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		var traceID, spanID string
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			traceID, spanID = sc.TraceID().String(), sc.SpanID().String()
		} else {
			traceID = c.GetHeader("X-Trace-ID")
			if traceID == "" {
				traceID = uuid.New().String()
			}
			spanID = uuid.New().String()
		}

		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		ctx := logger.ContextWithIDs(c.Request.Context(), traceID, spanID, requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		logger.Debug(ctx, "HTTP request started",
			"method", method,
			"path", path,
			"client_ip", c.ClientIP(),
		)

		c.Next()

		logger.Info(ctx, "HTTP request completed",
			"method", method,
			"path", path,
			"status_code", c.Writer.Status(),
			"response_size", c.Writer.Size(),
			"duration", time.Since(start),
		)
	}
}

// GinRecoveryMiddleware Gin panic 恢复中间件
func GinRecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID, _ := c.Get(RequestIDKey)
				logger.Error(c.Request.Context(), "HTTP request panicked",
					"request_id", requestID,
					"panic", err,
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"message":    "Internal server error",
					"error":      "INTERNAL",
					"request_id": requestID,
				})
			}
		}()
		c.Next()
	}
}

// GinMetricsMiddleware 记录请求计数与耗时，route 取注册路径避免高基数
func GinMetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// GinAuthMiddleware 校验 Bearer 令牌，把用户 ID 写入 gin context
func GinAuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			token = ""
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			logger.Warn(c.Request.Context(), "Rejected unauthenticated request", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "authentication required",
				"error":   "UNAUTHENTICATED",
			})
			return
		}

		c.Set(AuthUserKey, userID)
		c.Next()
	}
}

// AuthenticatedUser 返回鉴权中间件写入的用户 ID；未启用鉴权时 ok 为 false
func AuthenticatedUser(c *gin.Context) (string, bool) {
	v, ok := c.Get(AuthUserKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// GRPCLoggingInterceptor gRPC 日志拦截器
func GRPCLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := uuid.New().String()
		ctx = logger.ContextWithIDs(ctx, uuid.New().String(), uuid.New().String(), requestID)

		start := time.Now()
		resp, err := handler(ctx, req)

		if err != nil {
			st, _ := status.FromError(err)
			logger.Error(ctx, "gRPC request failed",
				"method", info.FullMethod,
				"error_code", st.Code().String(),
				"error_message", st.Message(),
				"duration", time.Since(start),
			)
		} else {
			logger.Debug(ctx, "gRPC request completed",
				"method", info.FullMethod,
				"duration", time.Since(start),
			)
		}
		return resp, err
	}
}

// GRPCRecoveryInterceptor gRPC panic 恢复拦截器
func GRPCRecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "gRPC request panicked",
					"method", info.FullMethod,
					"panic", r,
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
