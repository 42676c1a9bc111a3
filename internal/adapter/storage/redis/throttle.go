package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Throttle counts hits per key in fixed windows. The desk uses it to slow
// down sign-in attempts and action submissions per client.
type Throttle struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

// NewThrottle creates a new Redis-backed throttle.
func NewThrottle(client *goredis.Client) *Throttle {
	return &Throttle{
		client: client,
		prefix: "throttle:",
		now:    time.Now,
	}
}

// ThrottleResult holds the outcome of one hit.
type ThrottleResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Hit records one attempt for key and reports whether it fits in limit for
// the current window.
func (t *Throttle) Hit(ctx context.Context, key string, limit int64, window time.Duration) (*ThrottleResult, error) {
	if window < time.Second {
		window = time.Second
	}
	secs := int64(window / time.Second)
	windowID := t.now().Unix() / secs
	redisKey := fmt.Sprintf("%s%s:%d", t.prefix, key, windowID)

	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis throttle hit: %w", err)
	}

	count := incr.Val()
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &ThrottleResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.Unix((windowID+1)*secs, 0),
	}, nil
}
