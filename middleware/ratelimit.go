package middleware

import (
	"math"
	"strconv"
	"time"

	"boardgame-recommender/metrics"
	"boardgame-recommender/ratelimit"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RateLimit rejects clients over the limiter's budget with 429 and a
// Retry-After header in whole seconds.
func RateLimit(limiter *ratelimit.Limiter, logger *zap.Logger) fiber.Handler {
	logger = logger.Named("ratelimit")
	return func(c *fiber.Ctx) error {
		key := ClientKey(c)
		d := limiter.Allow(key)
		if d.Remaining >= 0 {
			c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		}
		if d.Allowed {
			return c.Next()
		}

		metrics.RateLimitRejections.Inc()
		retry := int(math.Ceil(d.RetryAfter.Seconds()))
		logger.Info("rate limited", zap.String("client", key), zap.String("path", c.Path()), zap.Int("retry_after", retry))
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":      "too many requests",
			"retryAfter": retry,
		})
	}
}

// Metrics observes request latency by method, matched route and status.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		metrics.HTTPRequestDuration.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
		return err
	}
}
