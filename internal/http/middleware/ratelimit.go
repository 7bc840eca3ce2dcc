package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RateLimit counts requests per client IP. Limiter errors let the request through.
func RateLimit(l Limiter, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !ok {
			abort(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please try again later")
			return
		}
		c.Next()
	}
}
