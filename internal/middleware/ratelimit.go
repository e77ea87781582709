package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "moneyminder/internal/errors"
	"moneyminder/internal/logger"
	"moneyminder/internal/metrics"
	"moneyminder/internal/ratelimit"
)

// RateLimit throttles each client IP per route. Limiter failures let the
// request through.
func RateLimit(limiter ratelimit.Limiter, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		route := c.FullPath()
		key := route + "|" + c.ClientIP()

		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), key, time.Now())
		if err != nil {
			logger.Get().Warnw("rate limiter unavailable, allowing request",
				"error", err,
				"path", route,
			)
			c.Next()
			return
		}
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			m.RateLimitHit(route)
			abortWithError(c, apperrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}
