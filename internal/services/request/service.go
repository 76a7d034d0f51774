// Package request carries the per-request ID convention: callers may supply
// one via X-Request-ID, otherwise an opaque req_ id is generated. The ID is
// cached in fiber locals so every log line in a request shares it.
package request

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	requestIDLocalKey = "request_id"

	// Caller-supplied IDs are capped; they end up in every log line.
	maxRequestIDLength = 256
)

// BaseService is embedded by endpoint request services.
type BaseService struct{}

func NewBaseService() *BaseService {
	return &BaseService{}
}

// GetRequestID returns the request's ID, resolving it on first call from the
// X-Request-ID header or generating one, then caching it in locals.
func (s *BaseService) GetRequestID(c *fiber.Ctx) string {
	if cached, ok := c.Locals(requestIDLocalKey).(string); ok && cached != "" {
		return cached
	}

	requestID := sanitizeRequestID(c.Get("X-Request-ID"))
	if requestID == "" {
		requestID = s.GenerateRequestID()
	}

	c.Locals(requestIDLocalKey, requestID)
	return requestID
}

// GenerateRequestID creates a new random request ID.
func (s *BaseService) GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "req_unknown"
	}
	return "req_" + hex.EncodeToString(bytes)
}

// SetRequestID overrides the cached request ID.
func (s *BaseService) SetRequestID(c *fiber.Ctx, requestID string) {
	c.Locals(requestIDLocalKey, requestID)
}

func sanitizeRequestID(reqID string) string {
	sanitized := strings.TrimSpace(reqID)
	if len(sanitized) > maxRequestIDLength {
		sanitized = sanitized[:maxRequestIDLength]
	}
	return sanitized
}
