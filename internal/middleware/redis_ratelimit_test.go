package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestRedisRateLimit_FailsOpenWhenRedisDown(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// Port 1 is never listening; every limiter call errors immediately.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := gin.New()
	r.POST("/signup-requests",
		RedisRateLimitMiddleware(client, SignupRateLimitConfig(), logger),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/signup-requests", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when limiter backend is down", w.Code)
	}
}
