package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/accessibility-build/platform/app/repository"
	"github.com/accessibility-build/platform/internal/pkg/cache"
	"github.com/accessibility-build/platform/internal/pkg/database"
	"github.com/accessibility-build/platform/internal/pkg/env"
	"github.com/accessibility-build/platform/internal/pkg/logging"
	"github.com/accessibility-build/platform/internal/pkg/metrics/counter"
	"github.com/accessibility-build/platform/internal/pkg/oauth"
	"github.com/accessibility-build/platform/internal/pkg/router"
	"github.com/accessibility-build/platform/internal/pkg/session"
)

const counterFlushInterval = time.Minute

func main() {
	env.SetupEnvFile()
	format := env.GetEnv("LOG_FORMAT", "json")
	if env.IsDev() {
		format = env.GetEnv("LOG_FORMAT", "console")
	}
	logging.Init(logging.Config{
		Level:     env.GetEnv("LOG_LEVEL", "info"),
		Format:    format,
		Component: "a11ybuild",
	})

	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	// init session and oauth providers before the routes use them
	session.NewSessionStore()
	oauth.Setup()

	svc := router.NewServices(database.GetDB(), repos, router.BillingConfigFromEnv())
	app := NewApplication(svc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flushCtx, stopFlusher := context.WithCancel(context.Background())
	flushed := counter.StartFlusher(flushCtx, repos.ToolUsage, counterFlushInterval)

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := app.Listen(addr); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	stopFlusher()
	<-flushed
}

// NewApplication builds the fiber app with the ambient middleware and all routes.
func NewApplication(svc *router.Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "accessibility.build",
		BodyLimit: 4 * 1024 * 1024,
		// Cloudflare / nginx in front
		ProxyHeader: env.GetEnv("PROXY_HEADER", ""),
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	if specPath := findOpenAPISpec(); specPath != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/",
			FilePath: specPath,
			Path:     "api",
			Title:    "accessibility.build API",
		}))
	} else {
		log.Warn().Msg("OpenAPI spec not found, /docs/api disabled")
	}

	// ROUTER
	router.InstallRouter(app, svc)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	return app
}

func findOpenAPISpec() string {
	for _, base := range []string{"./", "../../", "../../../"} {
		path := base + "docs/openapi.yml"
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
