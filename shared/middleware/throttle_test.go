package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type countingLimiter struct {
	hits map[string]int
	err  error
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, time.Duration, error) {
	if l.err != nil {
		return true, 0, l.err
	}
	l.hits[key]++
	return l.hits[key] <= limit, 30 * time.Second, nil
}

func TestThrottle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := &countingLimiter{hits: map[string]int{}}
	r := gin.New()
	r.POST("/verify", Throttle(limiter, "verify", 2, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/verify", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)
	assert.Equal(t, http.StatusOK, send().Code)
	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Equal(t, 3, limiter.hits["verify:10.0.0.7"])

	limiter.err = errors.New("redis down")
	assert.Equal(t, http.StatusOK, send().Code)
}
