package router

import (
	"time"

	"gorm.io/gorm"

	"github.com/accessibility-build/platform/app/repository"
	"github.com/accessibility-build/platform/internal/pkg/billing"
	"github.com/accessibility-build/platform/internal/pkg/constants"
	"github.com/accessibility-build/platform/internal/pkg/credits"
	"github.com/accessibility-build/platform/internal/pkg/env"
	"github.com/accessibility-build/platform/internal/pkg/pricing"
	"github.com/accessibility-build/platform/internal/pkg/statistics"
	"github.com/accessibility-build/platform/internal/pkg/tools"
	"github.com/accessibility-build/platform/internal/pkg/triallimit"
)

// Services bundles the domain services the routes are built on.
type Services struct {
	Repos    *repository.Repositories
	Pricing  *pricing.Table
	Limiter  *triallimit.Limiter
	Credits  *credits.Service
	Billing  *billing.Service
	Checkout *billing.CheckoutService
	Webhooks *billing.WebhookProcessor
	Runner   *tools.Runner
	Stats    *statistics.Service
}

// BillingConfigFromEnv reads the Stripe settings.
func BillingConfigFromEnv() billing.Config {
	base := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:"+env.GetEnv("APP_PORT", "4000"))
	return billing.Config{
		SecretKey:     env.GetEnv("STRIPE_SECRET_KEY", ""),
		WebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		SuccessURL:    env.GetEnv("STRIPE_SUCCESS_URL", base+"/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:     env.GetEnv("STRIPE_CANCEL_URL", base+constants.PricingRoute),
		Currency:      env.GetEnv("STRIPE_CURRENCY", "usd"),
	}
}

// NewServices builds every service on top of the repository factory.
func NewServices(db *gorm.DB, repos *repository.Repositories, billingCfg billing.Config) *Services {
	table := pricing.Default()
	creditService := credits.NewService(credits.NewRepository(db), repos.User)
	billingService := billing.NewServiceFromDB(db)

	auditTimeout := time.Duration(env.GetEnvInt("AUDIT_TIMEOUT_SECONDS", 15)) * time.Second

	return &Services{
		Repos:    repos,
		Pricing:  table,
		Limiter:  triallimit.New(repos.TrialUsage, triallimit.DefaultConfig()),
		Credits:  creditService,
		Billing:  billingService,
		Checkout: billing.NewCheckoutService(billingCfg, table, billingService),
		Webhooks: billing.NewWebhookProcessor(billingCfg, billingService, creditService),
		Runner:   tools.NewRunner(tools.NewAuditor(tools.WithAuditTimeout(auditTimeout))),
		Stats:    statistics.NewService(repos, creditService),
	}
}
