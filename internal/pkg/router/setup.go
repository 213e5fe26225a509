package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router registers one group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter installs the HttpRouter first so the UserContext middleware
// runs before the API routes that depend on it.
func InstallRouter(app *fiber.App, svc *Services) {
	setup(app, NewHttpRouter(svc), NewApiRouter(svc))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
