package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(t *testing.T, handler gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handler)
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return router
}

func hit(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewRateLimiter_InvalidConfig(t *testing.T) {
	_, err := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 0})
	assert.Error(t, err)

	_, err = NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 5,
		StoreType:         RateLimitStoreRedis,
	})
	assert.Error(t, err)
}

func TestRateLimiter_MemoryStore(t *testing.T) {
	limiter, err := NewMemoryRateLimiter(3)
	require.NoError(t, err)
	router := newLimitedRouter(t, limiter)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(router, "10.0.0.1").Code, "request %d", i+1)
	}

	w := hit(router, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Too many requests", body["message"])
}

func TestRateLimiter_DifferentIPs(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 2,
		StoreType:         RateLimitStoreMemory,
	})
	require.NoError(t, err)
	router := newLimitedRouter(t, limiter)

	for _, ip := range []string{"192.168.1.1", "192.168.1.2", "192.168.1.3"} {
		for i := 0; i < 2; i++ {
			assert.Equal(t, http.StatusOK, hit(router, ip).Code, "request %d from %s", i+1, ip)
		}
		assert.Equal(t, http.StatusTooManyRequests, hit(router, ip).Code, "third request from %s", ip)
	}
}

// Two limiters over one redis simulate two replicas sharing a budget
func TestRateLimiter_RedisSharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := RateLimitConfig{
		RequestsPerMinute: 5,
		StoreType:         RateLimitStoreRedis,
		RedisClient:       client,
	}
	limiter1, err := NewRateLimiter(cfg)
	require.NoError(t, err)
	limiter2, err := NewRateLimiter(cfg)
	require.NoError(t, err)

	pod1 := newLimitedRouter(t, limiter1)
	pod2 := newLimitedRouter(t, limiter2)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(pod1, "192.168.88.1").Code)
	}
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, hit(pod2, "192.168.88.1").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(pod1, "192.168.88.1").Code)
	assert.Equal(t, http.StatusOK, hit(pod2, "192.168.88.2").Code)
}

func TestRateLimiter_EndpointsKeepSeparateBudgets(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	newLimiter := func(endpoint string) gin.HandlerFunc {
		l, err := NewRateLimiter(RateLimitConfig{
			RequestsPerMinute: 1,
			StoreType:         RateLimitStoreRedis,
			RedisClient:       client,
			Endpoint:          endpoint,
		})
		require.NoError(t, err)
		return l
	}
	login := newLimitedRouter(t, newLimiter("/auth/login"))
	signup := newLimitedRouter(t, newLimiter("/auth/signup"))

	assert.Equal(t, http.StatusOK, hit(login, "10.1.1.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(login, "10.1.1.1").Code)
	assert.Equal(t, http.StatusOK, hit(signup, "10.1.1.1").Code)
}
