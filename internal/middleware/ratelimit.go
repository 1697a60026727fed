package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/songprompt/internal/logger"
	"github.com/makeasinger/songprompt/pkg/response"
)

// RateLimiter is a fixed-window counter per user kept in Redis.
type RateLimiter struct {
	redis *redis.Client
	log   *logger.Logger
}

func NewRateLimiter(redisClient *redis.Client, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.Nop()
	}
	return &RateLimiter{redis: redisClient, log: log}
}

// Limit allows maxRequests per window for each user. Anonymous requests and
// Redis failures pass through.
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := GetUserID(c)
		if userID == "" || maxRequests <= 0 {
			return c.Next()
		}

		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, userID)
		ctx := c.Context()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			rl.log.Warn("rate limiter unavailable", "key", key, "error", err)
			return c.Next()
		}
		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			if ttl < 0 {
				ttl = window
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Seconds())))
			return response.RateLimited(c, "")
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(maxRequests-int(count)))
		return c.Next()
	}
}

// PromptLimit limits generation requests per minute.
func (rl *RateLimiter) PromptLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("prompts", maxPerMin, time.Minute)
}

// ExportLimit limits export requests per hour.
func (rl *RateLimiter) ExportLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("export", maxPerHour, time.Hour)
}
