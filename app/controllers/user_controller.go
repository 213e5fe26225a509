package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/accessibility-build/platform/app/repository"
	"github.com/accessibility-build/platform/internal/pkg/credits"
	"github.com/accessibility-build/platform/internal/pkg/usercontext"
)

// UserController serves the signed-in user's own data.
type UserController struct {
	repos   *repository.Repositories
	credits *credits.Service
}

// NewUserController creates a user controller.
func NewUserController(repos *repository.Repositories, creditService *credits.Service) *UserController {
	return &UserController{repos: repos, credits: creditService}
}

// HandleGetAccount returns profile, plan, balance and linked sign-in providers.
func (uc *UserController) HandleGetAccount(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	account, err := uc.repos.User.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	balance, err := uc.credits.Balance(c.UserContext(), account.ID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", account.ID).Msg("[User] balance lookup failed")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load credit balance")
	}

	providers := []string{}
	if accounts, err := uc.repos.ProviderAccount.ListByUserID(account.ID); err == nil {
		for _, a := range accounts {
			providers = append(providers, a.Provider)
		}
	}

	return c.JSON(fiber.Map{
		"id":            account.ID,
		"name":          account.Name,
		"email":         account.Email,
		"avatar_url":    account.AvatarURL,
		"role":          account.Role,
		"plan":          account.Plan,
		"credits":       balance,
		"providers":     providers,
		"created_at":    account.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at": formatTimePtr(account.LastLoginAt),
	})
}

// HandleGetCredits returns the balance and the newest ledger entries (?limit=).
func (uc *UserController) HandleGetCredits(c *fiber.Ctx) error {
	userID := usercontext.GetUserID(c)
	ctx := c.UserContext()

	balance, err := uc.credits.Balance(ctx, userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("[User] balance lookup failed")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load credit balance")
	}
	history, err := uc.credits.History(ctx, userID, c.QueryInt("limit", credits.DefaultHistoryLimit))
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("[User] credit history failed")
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load credit history")
	}

	return c.JSON(fiber.Map{
		"balance":      balance,
		"plan":         usercontext.GetUserContext(c).Plan,
		"transactions": history,
	})
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
