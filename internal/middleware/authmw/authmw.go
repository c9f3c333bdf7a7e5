package authmw

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/datachat/backend/internal/auth"
)

// RequireAuth verifies the bearer token and stores user_id and tier in
// request locals for downstream handlers.
func RequireAuth(tokens *auth.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or malformed authorization header",
			})
		}

		claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("tier", claims.Tier)

		return c.Next()
	}
}

// RequireAuthUpgrade verifies credentials on WebSocket upgrade requests.
// Browsers cannot set headers on a WebSocket handshake, so a "token" query
// parameter is accepted alongside the bearer header.
func RequireAuthUpgrade(tokens *auth.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		if tokenString == "" || tokenString == c.Get("Authorization") {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authentication token",
			})
		}

		claims, err := tokens.Verify(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("tier", claims.Tier)

		return c.Next()
	}
}
