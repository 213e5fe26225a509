package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/accessibility-build/platform/app/controllers"
	"github.com/accessibility-build/platform/internal/pkg/middleware"
)

type HttpRouter struct {
	svc     *Services
	auth    *controllers.AuthController
	billing *controllers.BillingController
	admin   *controllers.AdminController
}

// InstallRouter expects the session store and OAuth providers to be set up
// already (see cmd/a11ybuild).
func (h HttpRouter) InstallRouter(app *fiber.App) {
	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware(h.svc.Repos.User))

	h.registerPublicRoutes(app)
	h.registerAdminRoutes(app)
}

func NewHttpRouter(svc *Services) *HttpRouter {
	return &HttpRouter{
		svc:     svc,
		auth:    controllers.NewAuthController(svc.Repos),
		billing: controllers.NewBillingController(svc.Checkout, svc.Webhooks),
		admin:   controllers.NewAdminController(svc.Repos, svc.Credits, svc.Stats, svc.Limiter, svc.Billing),
	}
}
