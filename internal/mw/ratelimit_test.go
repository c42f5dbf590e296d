package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(rate.Every(time.Hour), 2, time.Minute)
	defer rl.Stop()

	r := gin.New()
	r.Use(RateLimit(rl))
	r.GET("/a", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/b", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(path, ip string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("/a", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("/a", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("/a", "10.0.0.1"))

	// Buckets are per route and per client.
	assert.Equal(t, http.StatusOK, hit("/b", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("/a", "10.0.0.2"))
}

func TestRateLimiterEvict(t *testing.T) {
	rl := NewRateLimiter(rate.Every(time.Hour), 1, time.Minute)
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	rl.evict(time.Now().Add(2 * time.Minute))
	assert.True(t, rl.Allow("k"), "evicted keys start with a full bucket")

	rl.Stop()
	rl.Stop()
}
