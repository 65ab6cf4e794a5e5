package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"foodcoop/internal/core/apperror"
)

// RateLimit rejects requests above rps (with the given burst) with 429.
// A non-positive rps disables the limit.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / rps)))

	return func(c *gin.Context) {
		if !lim.Allow() {
			c.Header("Retry-After", retryAfter)
			_ = c.Error(apperror.NewRateLimited())
			c.Abort()
			return
		}
		c.Next()
	}
}
