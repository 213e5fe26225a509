package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/accessibility-build/platform/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin/api", middleware.RequireAdmin)
	adminGroup.Get("/stats", h.admin.HandleStats)
	adminGroup.Get("/trial-usage", h.admin.HandleTrialUsage)
	adminGroup.Get("/users", h.admin.HandleUsers)
	adminGroup.Post("/users/:id/credits", h.admin.HandleAdjustCredits)
	adminGroup.Post("/users/:id/status", h.admin.HandleUserStatus)
	adminGroup.Get("/billing/events", h.admin.HandleWebhookEvents)
}
