package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/weplay-app/weplay-backend/internal/pkg/ratelimit"
	"github.com/weplay-app/weplay-backend/internal/pkg/reject"
	"github.com/weplay-app/weplay-backend/internal/pkg/utils"
)

// RateLimit rejects requests over the limiter's budget with 429. Authenticated requests
// are counted per user, anonymous ones per client IP. A nil limiter disables the check,
// and limiter failures let the request through.
func RateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			return
		}

		key := "ip:" + c.ClientIP()
		if principal, ok := utils.GetPrincipal(c); ok {
			key = "user:" + principal.UserId
		}

		result, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Rate limiter unavailable, allowing request")
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			seconds := int(math.Ceil(result.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, reject.TooManyRequestsProblem())
		}
	}
}

// ClientRateLimit resolves the caller before counting, so signed-in users share one budget
// across addresses. Invalid tokens fall back to the client IP.
func ClientRateLimit(auth *Authenticator, limiter ratelimit.Limiter) gin.HandlersChain {
	return gin.HandlersChain{auth.OptionalAuthToken, RateLimit(limiter)}
}
