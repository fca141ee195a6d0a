package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-election-system/shared/utils"
)

// Limiter counts hits per key in a fixed window
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

// Throttle limits each client IP to limit requests per window on the
// routes it guards. Limiter errors let the request through.
func Throttle(limiter Limiter, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), scope+":"+c.ClientIP(), limit, window)
		if err != nil {
			logrus.WithError(err).WithField("scope", scope).Warn("Throttle check failed, allowing request")
		}
		if !allowed {
			seconds := int(retryAfter / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			utils.TooManyRequestsResponse(c, "Throttled", "Too many requests, please slow down", seconds)
			c.Abort()
			return
		}
		c.Next()
	}
}
