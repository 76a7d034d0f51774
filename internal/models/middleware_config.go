package models

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimitConfig tunes the global sliding-window limiter. Per-key RPM
// limits are a property of the API key, not of this config.
type RateLimitConfig struct {
	Max        int
	Expiration time.Duration
	KeyFunc    func(*fiber.Ctx) string
}

// TimeoutConfig fixes one timeout for all requests, replacing the default
// per-request X-Request-Timeout handling.
type TimeoutConfig struct {
	Timeout time.Duration
}
