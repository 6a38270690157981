package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/wyfcoding/investledger/pkg/auth"
	"github.com/wyfcoding/investledger/pkg/logger"
	"github.com/wyfcoding/investledger/pkg/ratelimit"
)

type stubLimiter struct {
	allowed map[string]int
	seen    []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (*ratelimit.Result, error) {
	s.seen = append(s.seen, key)
	left := s.allowed[key]
	if left <= 0 {
		return &ratelimit.Result{Allowed: false, RetryAfter: 2 * time.Second}, nil
	}
	s.allowed[key] = left - 1
	return &ratelimit.Result{Allowed: true, Remaining: left - 1}, nil
}

func (s *stubLimiter) Limit() ratelimit.Limit { return ratelimit.PerSecond(1, 1) }

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	return r
}

func TestRecoveryReturnsInternalError(t *testing.T) {
	r := newEngine(GinLoggingMiddleware(), GinRecoveryMiddleware())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"INTERNAL"`)
}

func TestLoggingPropagatesRequestID(t *testing.T) {
	var seen string
	r := newEngine(GinLoggingMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		seen = logger.RequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestRateLimitKeysByAuthenticatedUser(t *testing.T) {
	verifier := auth.NewVerifier("secret", "investledger")
	limiter := &stubLimiter{allowed: map[string]int{"user:u1": 1}}
	r := newEngine(GinAuthMiddleware(verifier), GinRateLimitMiddleware(limiter))
	r.GET("/api/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	token, err := verifier.Sign("u1", time.Minute)
	assert.NoError(t, err)

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call().Code)
	w := call()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3", w.Header().Get("Retry-After"))
	assert.Equal(t, []string{"user:u1", "user:u1"}, limiter.seen)
}

func TestAuthRejectsMissingToken(t *testing.T) {
	r := newEngine(GinAuthMiddleware(auth.NewVerifier("secret", "investledger")))
	r.GET("/api/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
