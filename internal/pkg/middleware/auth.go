package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/accessibility-build/platform/internal/pkg/constants"
	icuser "github.com/accessibility-build/platform/internal/pkg/usercontext"
)

func loggedIn(c *fiber.Ctx) bool {
	b, ok := c.Locals(icuser.KeyFromProtected).(bool)
	return ok && b
}

// RequireAuth ensures a signed-in browser session; anonymous visitors are
// sent back to the start page with a flash message.
func RequireAuth(c *fiber.Ctx) error {
	if !loggedIn(c) {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "Please sign in to continue",
		}).Redirect(constants.HomeRoute, fiber.StatusSeeOther)
	}
	return c.Next()
}

// RequireAdmin ensures a signed-in admin and answers with JSON otherwise.
func RequireAdmin(c *fiber.Ctx) error {
	if !loggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	if isAdmin, ok := c.Locals(icuser.KeyIsAdmin).(bool); !ok || !isAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "admin access required",
		})
	}
	return c.Next()
}

// RequireAPISessionAuth ensures a logged-in session for API routes and returns JSON 401 instead of redirect.
func RequireAPISessionAuth(c *fiber.Ctx) error {
	if !loggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	return c.Next()
}
