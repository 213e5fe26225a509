package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/sujit-baniya/flash"

	"github.com/accessibility-build/platform/internal/pkg/billing"
	"github.com/accessibility-build/platform/internal/pkg/constants"
	"github.com/accessibility-build/platform/internal/pkg/usercontext"
)

// BillingController handles credit purchases and the Stripe webhook.
type BillingController struct {
	checkout *billing.CheckoutService
	webhooks *billing.WebhookProcessor
	validate *validator.Validate
}

// NewBillingController creates a billing controller.
func NewBillingController(checkout *billing.CheckoutService, webhooks *billing.WebhookProcessor) *BillingController {
	return &BillingController{checkout: checkout, webhooks: webhooks, validate: validator.New()}
}

type checkoutRequest struct {
	Credits int `json:"credits" validate:"required,min=1"`
}

// HandleCreateCheckout opens a checkout session and returns its URL.
func (bc *BillingController) HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "request body must be JSON")
	}
	if err := bc.validate.Struct(req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_credits", "credits must be a positive whole number")
	}

	result, err := bc.checkout.CreateCheckout(c.UserContext(), userCtx.UserID, userCtx.Email, req.Credits)
	if err != nil {
		return checkoutError(c, userCtx.UserID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": result.SessionID,
		"url":        result.URL,
		"credits":    result.Calculation.Credits,
		"total":      result.Calculation.Total,
		"tier":       result.Calculation.Tier.Label,
	})
}

// HandleCheckoutRedirect is the link form of checkout: /billing/checkout?credits=N
// answers with a redirect to the hosted payment page.
func (bc *BillingController) HandleCheckoutRedirect(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	credits, err := strconv.Atoi(strings.TrimSpace(c.Query("credits")))
	if err != nil {
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Please choose how many credits to buy"}).Redirect(constants.PricingRoute, fiber.StatusSeeOther)
	}

	result, err := bc.checkout.CreateCheckout(c.UserContext(), userCtx.UserID, userCtx.Email, credits)
	if err != nil {
		msg := "Checkout is not available right now"
		if errors.Is(err, billing.ErrInvalidCredits) {
			msg = strings.TrimPrefix(err.Error(), billing.ErrInvalidCredits.Error()+": ")
		} else if !errors.Is(err, billing.ErrNotConfigured) {
			log.Error().Err(err).Uint("user_id", userCtx.UserID).Msg("[Billing] checkout redirect failed")
		}
		return flash.WithError(c, fiber.Map{"type": "error", "message": msg}).Redirect(constants.PricingRoute, fiber.StatusSeeOther)
	}
	return c.Redirect(result.URL, fiber.StatusSeeOther)
}

// HandleStripeWebhook receives POST /webhooks/stripe. Non-2xx answers make
// Stripe redeliver, so only processing failures return 500.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	outcome, err := bc.webhooks.Handle(c.UserContext(), c.Body(), c.Get("Stripe-Signature"))
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"received": true, "outcome": outcome})
	case errors.Is(err, billing.ErrNotConfigured):
		return jsonError(c, fiber.StatusServiceUnavailable, "not_configured", "webhooks are not configured")
	case errors.Is(err, billing.ErrInvalidSignature):
		log.Warn().Err(err).Str("ip", c.IP()).Msg("[Billing] rejected webhook")
		return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "signature verification failed")
	default:
		return jsonError(c, fiber.StatusInternalServerError, "processing_failed", "webhook could not be processed")
	}
}

func checkoutError(c *fiber.Ctx, userID uint, err error) error {
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		return jsonError(c, fiber.StatusServiceUnavailable, "not_configured", "payments are not configured")
	case errors.Is(err, billing.ErrInvalidCredits):
		return jsonError(c, fiber.StatusBadRequest, "invalid_credits", strings.TrimPrefix(err.Error(), billing.ErrInvalidCredits.Error()+": "))
	default:
		log.Error().Err(err).Uint("user_id", userID).Msg("[Billing] checkout failed")
		return jsonError(c, fiber.StatusBadGateway, "checkout_failed", "could not start checkout")
	}
}
