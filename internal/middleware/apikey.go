package middleware

import (
	"crypto/subtle"
	"log"

	"github.com/gofiber/fiber/v2"
)

// RequireAdminKey guards admin routes with a shared-secret header check.
// The comparison is constant-time; an empty configured key means the caller
// should not mount the route at all.
func RequireAdminKey(adminKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		provided := c.Get("X-Admin-Key")
		if provided == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing admin key. Include X-Admin-Key header.",
			})
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey)) != 1 {
			log.Printf("❌ [ADMIN-AUTH] Invalid admin key attempt from %s", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid admin key",
			})
		}

		return c.Next()
	}
}
