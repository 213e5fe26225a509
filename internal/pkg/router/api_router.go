package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/accessibility-build/platform/app/controllers"
	"github.com/accessibility-build/platform/internal/pkg/env"
	"github.com/accessibility-build/platform/internal/pkg/middleware"
)

type ApiRouter struct {
	pricing *controllers.PricingController
	tools   *controllers.ToolController
	billing *controllers.BillingController
	user    *controllers.UserController
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	origins := env.GetEnv("CORS_ALLOW_ORIGINS", "*")
	api := app.Group("/api",
		cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowCredentials: origins != "*",
		}),
		// Request flood guard; the trial limiter meters anonymous tool use separately
		limiter.New(limiter.Config{
			Max:          env.GetEnvInt("API_RATE_LIMIT", 60),
			Expiration:   time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				if ip := controllers.GetClientIP(c); ip != "" {
					return ip
				}
				return c.IP()
			},
			Next: func(c *fiber.Ctx) bool {
				return strings.HasPrefix(c.Path(), "/api/pricing")
			},
		}),
	)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	api.Get("/pricing", h.pricing.HandleCalculate)
	api.Get("/pricing/tiers", h.pricing.HandleTiers)
	api.Post("/pricing/validate", h.pricing.HandleValidate)

	api.Get("/tools", h.tools.HandleListTools)
	api.Post("/tools/:tool", h.tools.HandleRun)
	api.Get("/trial/status/:tool", h.tools.HandleTrialStatus)

	api.Post("/billing/checkout", middleware.RequireAPISessionAuth, h.billing.HandleCreateCheckout)
	api.Get("/user", middleware.RequireAPISessionAuth, h.user.HandleGetAccount)
	api.Get("/user/credits", middleware.RequireAPISessionAuth, h.user.HandleGetCredits)
}

func NewApiRouter(svc *Services) *ApiRouter {
	return &ApiRouter{
		pricing: controllers.NewPricingController(svc.Pricing),
		tools:   controllers.NewToolController(svc.Runner, svc.Limiter, svc.Credits),
		billing: controllers.NewBillingController(svc.Checkout, svc.Webhooks),
		user:    controllers.NewUserController(svc.Repos, svc.Credits),
	}
}
