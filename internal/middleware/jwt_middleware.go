package middleware

import (
	"log"
	"strings"

	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

const identityKey = "identity"

// TokenValidator turns a bearer token into an identity.
type TokenValidator interface {
	ValidateToken(token string) (models.Identity, error)
}

// AuthRequired is a Fiber middleware to check for a valid JWT token.
// The identity is bound to the request's session when there is one.
func AuthRequired(auth TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}
		return authenticate(c, auth, authHeader)
	}
}

// AuthOptional binds the bearer token's identity to the session when present,
// and detaches any previous identity when the request carries no token.
func AuthOptional(auth TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			if s := CurrentSession(c); s != nil {
				s.Identity.Detach()
			}
			return c.Next()
		}
		return authenticate(c, auth, authHeader)
	}
}

func authenticate(c *fiber.Ctx, auth TokenValidator, authHeader string) error {
	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authorization header format must be 'Bearer <token>'",
		})
	}

	identity, err := auth.ValidateToken(parts[1])
	if err != nil {
		log.Printf("JWT validation failed: %v", err)
		if s := CurrentSession(c); s != nil {
			s.Identity.Detach()
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid or expired token",
			"error":   err.Error(),
		})
	}

	c.Locals(identityKey, identity)
	c.Locals("user_id", identity.UserID)
	if s := CurrentSession(c); s != nil {
		s.Identity.SignIn(identity)
	}
	return c.Next()
}

// CurrentIdentity returns the identity set by the auth middleware.
func CurrentIdentity(c *fiber.Ctx) (models.Identity, bool) {
	identity, ok := c.Locals(identityKey).(models.Identity)
	return identity, ok
}

var _ TokenValidator = (*services.AuthService)(nil)
