package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/accessibility-build/platform/internal/pkg/env"
	"github.com/accessibility-build/platform/internal/pkg/triallimit"
	"github.com/accessibility-build/platform/internal/pkg/usercontext"
)

func isLoggedIn(c *fiber.Ctx) bool {
	b, ok := c.Locals(usercontext.KeyFromProtected).(bool)
	return ok && b
}

// jsonError writes the {"error","message"} body used by every API handler.
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

// GetClientIP returns the visitor address from proxy headers. Without a
// proxy in front (local development) the socket address is used instead.
func GetClientIP(c *fiber.Ctx) string {
	if ip := triallimit.ClientIP(c); ip != "" {
		return ip
	}
	if env.IsDev() {
		return c.IP()
	}
	return ""
}
