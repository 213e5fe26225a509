package controllers

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/accessibility-build/platform/app/models"
	"github.com/accessibility-build/platform/app/repository"
	"github.com/accessibility-build/platform/internal/pkg/billing"
	"github.com/accessibility-build/platform/internal/pkg/credits"
	"github.com/accessibility-build/platform/internal/pkg/entitlements"
	"github.com/accessibility-build/platform/internal/pkg/statistics"
	"github.com/accessibility-build/platform/internal/pkg/triallimit"
	"github.com/accessibility-build/platform/internal/pkg/usercontext"
)

const adminUsersPageSize = 50

// AdminController handles admin-related HTTP requests using repository pattern
type AdminController struct {
	repos    *repository.Repositories
	credits  *credits.Service
	stats    *statistics.Service
	limiter  *triallimit.Limiter
	billing  *billing.Service
	validate *validator.Validate
}

// NewAdminController creates a new admin controller with its dependencies
func NewAdminController(repos *repository.Repositories, creditService *credits.Service, stats *statistics.Service, limiter *triallimit.Limiter, billingService *billing.Service) *AdminController {
	return &AdminController{
		repos:    repos,
		credits:  creditService,
		stats:    stats,
		limiter:  limiter,
		billing:  billingService,
		validate: validator.New(),
	}
}

type adjustCreditsRequest struct {
	Delta int64  `json:"delta" validate:"required"`
	Note  string `json:"note" validate:"max=255"`
}

// HandleStats returns the dashboard numbers; ?refresh=1 bypasses the cache.
func (ac *AdminController) HandleStats(c *fiber.Ctx) error {
	var (
		stats *statistics.AdminStats
		err   error
	)
	if c.QueryBool("refresh") {
		stats, err = ac.stats.Refresh(c.UserContext())
	} else {
		stats, err = ac.stats.Get(c.UserContext())
	}
	if err != nil {
		log.Error().Err(err).Msg("[Admin] statistics failed")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to compute statistics")
	}
	return c.JSON(stats)
}

// HandleTrialUsage shows the in-window trial log and current standing of ?ip=.
func (ac *AdminController) HandleTrialUsage(c *fiber.Ctx) error {
	ip := strings.TrimSpace(c.Query("ip"))
	if ip == "" {
		return jsonError(c, fiber.StatusBadRequest, "missing_ip", "ip query parameter is required")
	}

	usage, err := ac.limiter.Usage(c.UserContext(), ip)
	if err != nil {
		log.Error().Err(err).Str("ip", ip).Msg("[Admin] trial usage lookup failed")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load trial usage")
	}
	status := ac.limiter.Check(c.UserContext(), entitlements.ToolContrastChecker, ip)

	return c.JSON(fiber.Map{
		"ip":         ip,
		"limit":      ac.limiter.Limit(),
		"used":       len(usage),
		"remaining":  status.Remaining,
		"reset_time": status.ResetTime,
		"state":      status.State,
		"usage":      usage,
	})
}

// HandleUsers lists users, newest first, or searches them with ?q=.
func (ac *AdminController) HandleUsers(c *fiber.Ctx) error {
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		users, err := ac.repos.User.Search(q)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Search failed")
		}
		return c.JSON(fiber.Map{"users": users, "total": len(users)})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	users, err := ac.repos.User.List((page-1)*adminUsersPageSize, adminUsersPageSize)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to list users")
	}
	total, err := ac.repos.User.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count users")
	}
	return c.JSON(fiber.Map{"users": users, "total": total, "page": page, "page_size": adminUsersPageSize})
}

// HandleAdjustCredits applies a signed correction to a user's balance.
func (ac *AdminController) HandleAdjustCredits(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "user id must be a positive number")
	}

	var req adjustCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "request body must be JSON")
	}
	if err := ac.validate.Struct(req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "delta must be a non-zero whole number")
	}

	user, err := ac.repos.User.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	note := strings.TrimSpace(req.Note)
	if note == "" {
		note = "adjusted by admin " + usercontext.GetUsername(c)
	}
	balance, err := ac.credits.Adjust(c.UserContext(), user.ID, req.Delta, note)
	if err != nil {
		if errors.Is(err, credits.ErrInsufficientCredits) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "insufficient_credits",
				"message": "adjustment would make the balance negative",
				"balance": balance,
			})
		}
		log.Error().Err(err).Uint("user_id", user.ID).Msg("[Admin] credit adjustment failed")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to adjust credits")
	}

	if err := ac.stats.Invalidate(); err != nil {
		log.Debug().Err(err).Msg("[Admin] statistics cache invalidation failed")
	}
	log.Info().Uint("user_id", user.ID).Int64("delta", req.Delta).Uint("admin_id", usercontext.GetUserID(c)).Msg("[Admin] credits adjusted")
	return c.JSON(fiber.Map{"user_id": user.ID, "balance": balance})
}

// HandleUserStatus enables or disables a user account.
func (ac *AdminController) HandleUserStatus(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid_id", "user id must be a positive number")
	}
	var req struct {
		Status string `json:"status" validate:"required,oneof=active disabled"`
	}
	if err := c.BodyParser(&req); err != nil || ac.validate.Struct(req) != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_body", "status must be active or disabled")
	}
	if uint(id) == usercontext.GetUserID(c) && req.Status == models.STATUS_DISABLED {
		return jsonError(c, fiber.StatusBadRequest, "invalid_target", "admins cannot disable themselves")
	}

	user, err := ac.repos.User.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}
	user.Status = req.Status
	if err := ac.repos.User.Update(user); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update user")
	}
	return c.JSON(user)
}

// HandleWebhookEvents lists the latest payment provider events.
func (ac *AdminController) HandleWebhookEvents(c *fiber.Ctx) error {
	events, err := ac.billing.RecentWebhookEvents(c.UserContext(), c.QueryInt("limit", 25))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load webhook events")
	}
	return c.JSON(fiber.Map{"events": events})
}
