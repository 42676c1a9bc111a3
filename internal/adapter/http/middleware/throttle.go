package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisStore "p2p-desk/internal/adapter/storage/redis"
	"p2p-desk/pkg/apperror"
	"p2p-desk/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ThrottleStore counts attempts per key in fixed windows.
type ThrottleStore interface {
	Hit(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.ThrottleResult, error)
}

// ThrottleRule caps the attempts of one endpoint group.
type ThrottleRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultThrottleRules returns the attempt caps per endpoint group.
func DefaultThrottleRules() map[string]ThrottleRule {
	return map[string]ThrottleRule{
		"signin":   {Limit: 10, Window: time.Minute},
		"verify":   {Limit: 10, Window: 5 * time.Minute},
		"signup":   {Limit: 5, Window: time.Hour},
		"actions":  {Limit: 30, Window: time.Minute},
		"withdraw": {Limit: 5, Window: time.Minute},
		"tickets":  {Limit: 10, Window: time.Minute},
	}
}

// Throttle refuses requests over the group's cap with ACT_002. A store
// failure lets the request through.
func Throttle(store ThrottleStore, group string, rule ThrottleRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", group, throttleIdentity(c))

		result, err := store.Hit(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("throttle check failed, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int64(time.Until(result.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrTooManyAttempts())
			c.Abort()
			return
		}

		c.Next()
	}
}

// throttleIdentity keys signed-in callers by session and anonymous ones by
// client IP.
func throttleIdentity(c *gin.Context) string {
	if sid := c.GetString(CtxSessionID); sid != "" {
		return "s:" + sid
	}
	return "ip:" + c.ClientIP()
}
