package middleware

import (
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const (
	// SessionHeader carries the visitor's session id in both directions.
	SessionHeader = "X-Session-ID"
	sessionKey    = "session"
)

// Session resolves the request's session from the registry, creating one when
// the header is missing, and echoes its id back.
func Session(registry *services.SessionRegistry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// The header value aliases the request buffer; the registry keeps it.
		s := registry.Get(c.UserContext(), utils.CopyString(c.Get(SessionHeader)))
		c.Locals(sessionKey, s)
		c.Set(SessionHeader, s.ID)
		return c.Next()
	}
}

// CurrentSession returns the session set by the Session middleware, or nil.
func CurrentSession(c *fiber.Ctx) *services.Session {
	s, _ := c.Locals(sessionKey).(*services.Session)
	return s
}
