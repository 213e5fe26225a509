package controllers

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/accessibility-build/platform/internal/pkg/credits"
	"github.com/accessibility-build/platform/internal/pkg/entitlements"
	"github.com/accessibility-build/platform/internal/pkg/metrics/counter"
	"github.com/accessibility-build/platform/internal/pkg/tools"
	"github.com/accessibility-build/platform/internal/pkg/triallimit"
	"github.com/accessibility-build/platform/internal/pkg/usercontext"
)

// ToolController runs tools for signed-in users (paid with credits) and for
// anonymous visitors (metered by the trial limiter).
type ToolController struct {
	runner  *tools.Runner
	limiter *triallimit.Limiter
	credits *credits.Service
}

// NewToolController wires the tool runner with its two gates.
func NewToolController(runner *tools.Runner, limiter *triallimit.Limiter, creditService *credits.Service) *ToolController {
	return &ToolController{runner: runner, limiter: limiter, credits: creditService}
}

func unknownTool(c *fiber.Ctx) error {
	return jsonError(c, fiber.StatusNotFound, "unknown_tool", fmt.Sprintf("unknown tool %q", c.Params("tool")))
}

// HandleRun executes POST /api/tools/:tool.
func (tc *ToolController) HandleRun(c *fiber.Ctx) error {
	tool, ok := entitlements.ParseTool(c.Params("tool"))
	if !ok {
		return unknownTool(c)
	}

	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsLoggedIn {
		return tc.runWithCredits(c, tool, userCtx.UserID)
	}
	return tc.runAsTrial(c, tool)
}

func (tc *ToolController) runWithCredits(c *fiber.Ctx, tool entitlements.Tool, userID uint) error {
	ctx := c.UserContext()
	cost := int64(entitlements.CreditCost(tool))

	balance, err := tc.credits.Balance(ctx, userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("[Tools] balance lookup failed")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load credit balance")
	}
	if balance < cost {
		return insufficientCredits(c, cost, balance)
	}

	result, err := tc.runner.Run(ctx, tool, c.Body())
	if err != nil {
		return toolError(c, tool, err)
	}

	// The result is only released once the charge went through.
	balance, err = tc.credits.Consume(ctx, userID, tool)
	if err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			return insufficientCredits(c, cost, balance)
		}
		log.Error().Err(err).Uint("user_id", userID).Str("tool", string(tool)).Msg("[Tools] credit charge failed")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to charge credits")
	}

	countUse(tool)
	return c.JSON(fiber.Map{
		"tool":   tool,
		"result": result,
		"credits": fiber.Map{
			"charged": cost,
			"balance": balance,
		},
	})
}

func (tc *ToolController) runAsTrial(c *fiber.Ctx, tool entitlements.Tool) error {
	ctx := c.UserContext()
	ip := GetClientIP(c)

	gate := tc.limiter.Check(ctx, tool, ip)
	if !gate.Allowed {
		return trialDenied(c, gate)
	}

	result, err := tc.runner.Run(ctx, tool, c.Body())
	if err != nil {
		return toolError(c, tool, err)
	}

	tc.limiter.Record(ctx, tool, ip, c.Get(fiber.HeaderUserAgent))
	countUse(tool)

	remaining := gate.Remaining - 1
	if remaining < 0 {
		remaining = 0
	}
	return c.JSON(fiber.Map{
		"tool":   tool,
		"result": result,
		"trial": fiber.Map{
			"remaining":  remaining,
			"limit":      tc.limiter.Limit(),
			"reset_time": gate.ResetTime,
		},
	})
}

// HandleTrialStatus reports GET /api/trial/status/:tool without recording a use.
func (tc *ToolController) HandleTrialStatus(c *fiber.Ctx) error {
	tool, ok := entitlements.ParseTool(c.Params("tool"))
	if !ok {
		return unknownTool(c)
	}
	res := tc.limiter.Check(c.UserContext(), tool, GetClientIP(c))
	return c.JSON(fiber.Map{
		"tool":          tool,
		"limit":         tc.limiter.Limit(),
		"window_hours":  tc.limiter.Window().Hours(),
		"credit_cost":   entitlements.CreditCost(tool),
		"requires_auth": entitlements.RequiresAuth(tool),
		"status":        res,
	})
}

// HandleListTools lists the tools with their costs and trial availability.
func (tc *ToolController) HandleListTools(c *fiber.Ctx) error {
	list := make([]fiber.Map, 0, len(entitlements.AllTools()))
	for _, t := range entitlements.AllTools() {
		list = append(list, fiber.Map{
			"tool":          t,
			"credit_cost":   entitlements.CreditCost(t),
			"requires_auth": entitlements.RequiresAuth(t),
			"trial":         !tc.limiter.IsBlocked(t),
		})
	}
	return c.JSON(fiber.Map{"tools": list})
}

func countUse(tool entitlements.Tool) {
	if err := counter.AddToolUse(string(tool)); err != nil {
		log.Warn().Err(err).Str("tool", string(tool)).Msg("[Tools] usage counter increment failed")
	}
}

func insufficientCredits(c *fiber.Ctx, cost, balance int64) error {
	return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
		"error":   "insufficient_credits",
		"message": fmt.Sprintf("This tool costs %d credits, your balance is %d", cost, balance),
		"cost":    cost,
		"balance": balance,
	})
}

func trialDenied(c *fiber.Ctx, res triallimit.Result) error {
	status, code := fiber.StatusTooManyRequests, "trial_exhausted"
	switch res.State {
	case triallimit.StateBlocked:
		status, code = fiber.StatusUnauthorized, "login_required"
	case triallimit.StateUnknown:
		status, code = fiber.StatusForbidden, "trial_unavailable"
	default:
		if wait := time.Until(res.ResetTime); wait > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": res.Message,
		"trial":   res,
	})
}

func toolError(c *fiber.Ctx, tool entitlements.Tool, err error) error {
	switch {
	case errors.Is(err, tools.ErrInvalidInput):
		return jsonError(c, fiber.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, tools.ErrUnknownTool):
		return jsonError(c, fiber.StatusNotFound, "unknown_tool", err.Error())
	case errors.Is(err, tools.ErrUnexpectedStatus):
		return jsonError(c, fiber.StatusBadGateway, "upstream_error", err.Error())
	default:
		log.Error().Err(err).Str("tool", string(tool)).Msg("[Tools] tool run failed")
		return jsonError(c, fiber.StatusBadGateway, "tool_failed", "The tool could not complete the request")
	}
}
