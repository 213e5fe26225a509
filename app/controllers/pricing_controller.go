package controllers

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/accessibility-build/platform/internal/pkg/pricing"
)

// PricingController exposes the credit pricing table.
type PricingController struct {
	table    *pricing.Table
	validate *validator.Validate
}

// NewPricingController creates a pricing controller; a nil table uses pricing.Default().
func NewPricingController(table *pricing.Table) *PricingController {
	if table == nil {
		table = pricing.Default()
	}
	return &PricingController{table: table, validate: validator.New()}
}

type validateCreditsRequest struct {
	Credits *float64 `json:"credits" validate:"required"`
}

func formatted(calc pricing.Calculation) fiber.Map {
	return fiber.Map{
		"subtotal":         pricing.FormatUSD(calc.Subtotal),
		"discount_amount":  pricing.FormatUSD(calc.DiscountAmount),
		"total":            pricing.FormatUSD(calc.Total),
		"savings":          pricing.FormatUSD(calc.Savings),
		"price_per_credit": "$" + calc.PricePerCredit.StringFixed(3),
	}
}

// HandleCalculate prices ?credits=N. Out-of-range amounts are clamped for the
// calculation and reported in the validation field.
func (pc *PricingController) HandleCalculate(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Query("credits"))
	if raw == "" {
		raw = strconv.Itoa(pc.table.MinCredits())
	}
	credits, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_credits", "credits must be a number")
	}

	n := pc.table.MinCredits()
	switch {
	case credits > float64(pc.table.MaxCredits()):
		n = pc.table.MaxCredits()
	case credits > float64(n):
		n = int(credits)
	}
	calc := pc.table.Calculate(n)
	return c.JSON(fiber.Map{
		"calculation": calc,
		"formatted":   formatted(calc),
		"validation":  pc.table.Validate(credits),
	})
}

// HandleTiers lists the discount tiers and purchase bounds.
func (pc *PricingController) HandleTiers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"base_price_per_credit": pc.table.BasePricePerCredit(),
		"min_credits":           pc.table.MinCredits(),
		"max_credits":           pc.table.MaxCredits(),
		"tiers":                 pc.table.Tiers(),
	})
}

// HandleValidate checks a requested credit amount.
func (pc *PricingController) HandleValidate(c *fiber.Ctx) error {
	var req validateCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "request body must be JSON")
	}
	if err := pc.validate.Struct(req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "credits is required")
	}
	return c.JSON(pc.table.Validate(*req.Credits))
}
