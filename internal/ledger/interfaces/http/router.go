package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/wyfcoding/investledger/pkg/auth"
	"github.com/wyfcoding/investledger/pkg/metrics"
	"github.com/wyfcoding/investledger/pkg/middleware"
	"github.com/wyfcoding/investledger/pkg/ratelimit"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterOptions 路由可选组件，nil 表示不启用
type RouterOptions struct {
	ServiceName string
	Tracing     bool
	Metrics     *metrics.Metrics
	Verifier    *auth.Verifier
	Limiter     ratelimit.Limiter
}

// NewRouter 组装中间件链并注册账本路由
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(middleware.GinRecoveryMiddleware())
	if opts.Tracing {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	router.Use(middleware.GinLoggingMiddleware())
	if opts.Metrics != nil {
		router.Use(middleware.GinMetricsMiddleware(opts.Metrics))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	if opts.Verifier != nil {
		api.Use(middleware.GinAuthMiddleware(opts.Verifier))
	}
	// 限流放在鉴权之后，按用户计数
	if opts.Limiter != nil {
		api.Use(middleware.GinRateLimitMiddleware(opts.Limiter))
	}
	h.RegisterRoutes(api)

	return router
}

// NewCORS 只放行配置的前端来源，允许携带 Authorization 头
func NewCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
