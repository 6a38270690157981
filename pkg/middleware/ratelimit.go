package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/investledger/pkg/logger"
	"github.com/wyfcoding/investledger/pkg/ratelimit"
)

// GinRateLimitMiddleware 按已认证用户（无鉴权时按客户端 IP）限流
func GinRateLimitMiddleware(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID, ok := AuthenticatedUser(c); ok {
			key = "user:" + userID
		}

		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// 限流器不可用时放行
			logger.Warn(c.Request.Context(), "Rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		limit := limiter.Limit()
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(res.ResetAfter/time.Second), 10))

		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(res.RetryAfter/time.Second)+1, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too Many Requests",
				"error":   "RATE_LIMITED",
			})
			return
		}

		c.Next()
	}
}
