package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
)

// Locals keys set by RequestContext.
const (
	LocalRequestID = "request_id"
	LocalClientKey = "client_key"
)

const HeaderRequestID = "X-Request-ID"

// RequestContext attaches a request id and the client key used for rate
// limiting. With trustProxy the first X-Forwarded-For hop is the client.
func RequestContext(trustProxy bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := utils.CopyString(c.Get(HeaderRequestID))
		if reqID == "" || len(reqID) > 64 {
			reqID = uuid.NewString()
		}
		c.Set(HeaderRequestID, reqID)
		c.Locals(LocalRequestID, reqID)

		key := c.IP()
		if trustProxy {
			if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
				if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
					// fiber reuses header buffers; the limiter keeps the key.
					key = utils.CopyString(first)
				}
			}
		}
		c.Locals(LocalClientKey, key)

		return c.Next()
	}
}

// ClientKey returns the key RequestContext stored, or the peer address.
func ClientKey(c *fiber.Ctx) string {
	if key, ok := c.Locals(LocalClientKey).(string); ok && key != "" {
		return key
	}
	return c.IP()
}

// RequestID returns the id RequestContext stored.
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalRequestID).(string)
	return id
}
