package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/songprompt/internal/auth"
	"github.com/makeasinger/songprompt/pkg/response"
)

const (
	localUserID = "userId"
	localEmail  = "email"
	localName   = "name"
)

type AuthMiddleware struct {
	verifier auth.Verifier
}

// NewAuthMiddleware returns nil-safe middleware: with no verifier every
// request is rejected.
func NewAuthMiddleware(verifier auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate validates the bearer token and stores the caller in Locals.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.verifier == nil {
			return response.Unauthorized(c, "Authentication not configured")
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return response.Unauthorized(c, "Missing authorization header")
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		id, err := m.verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		c.Locals(localUserID, id.UserID)
		c.Locals(localEmail, id.Email)
		c.Locals(localName, id.Name)
		return c.Next()
	}
}

// GetUserID extracts the authenticated user ID, or "".
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals(localUserID).(string); ok {
		return userID
	}
	return ""
}
