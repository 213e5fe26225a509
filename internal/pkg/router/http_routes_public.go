package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/accessibility-build/platform/internal/pkg/env"
	"github.com/accessibility-build/platform/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	// Social OAuth; goth_fiber keeps its own state cookie
	app.Get("/auth/:provider", h.auth.HandleOAuthBegin)
	app.Get("/auth/:provider/callback", h.auth.HandleOAuthCallback)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/stripe", h.billing.HandleStripeWebhook)

	csrfConf := csrf.Config{
		KeyLookup:      "header:X-CSRF-Token",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
		// API routes rely on the SameSite=Lax session cookie
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
	}
	group := app.Group("", csrf.New(csrfConf))
	group.Get("/csrf", func(c *fiber.Ctx) error {
		token, _ := c.Locals("csrf").(string)
		return c.JSON(fiber.Map{"csrf_token": token})
	})
	group.Post("/logout", h.auth.HandleLogout)
	group.Get("/billing/checkout", middleware.RequireAuth, h.billing.HandleCheckoutRedirect)
}
