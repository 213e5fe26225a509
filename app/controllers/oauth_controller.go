package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/markbates/goth"
	"github.com/rs/zerolog/log"
	gothfiber "github.com/shareed2k/goth_fiber"
	"github.com/sujit-baniya/flash"
	"gorm.io/gorm"

	"github.com/accessibility-build/platform/app/models"
	"github.com/accessibility-build/platform/app/repository"
	"github.com/accessibility-build/platform/internal/pkg/constants"
	"github.com/accessibility-build/platform/internal/pkg/oauth"
	"github.com/accessibility-build/platform/internal/pkg/session"
	"github.com/accessibility-build/platform/internal/pkg/usercontext"
	"github.com/accessibility-build/platform/internal/pkg/utils"
)

var ErrAccountDisabled = errors.New("account disabled")

// AuthController signs users in through OAuth providers.
type AuthController struct {
	repos *repository.Repositories
}

// NewAuthController creates an auth controller.
func NewAuthController(repos *repository.Repositories) *AuthController {
	return &AuthController{repos: repos}
}

// HandleOAuthBegin redirects to the provider named in :provider.
func (ac *AuthController) HandleOAuthBegin(c *fiber.Ctx) error {
	if !oauth.IsEnabled(c.Params("provider")) {
		return jsonError(c, fiber.StatusNotFound, "unknown_provider", "sign-in provider is not available")
	}
	return gothfiber.BeginAuthHandler(c)
}

// HandleOAuthCallback completes the provider flow and logs the user in
func (ac *AuthController) HandleOAuthCallback(c *fiber.Ctx) error {
	gu, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Warn().Err(err).Str("provider", c.Params("provider")).Msg("[OAuth] provider callback failed")
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Sign-in failed, please try again"}).Redirect(constants.HomeRoute, fiber.StatusSeeOther)
	}

	user, err := ac.ResolveUser(gu)
	if err != nil {
		if errors.Is(err, ErrAccountDisabled) {
			return flash.WithError(c, fiber.Map{"type": "error", "message": "This account has been disabled"}).Redirect(constants.HomeRoute, fiber.StatusSeeOther)
		}
		log.Error().Err(err).Str("provider", gu.Provider).Msg("[OAuth] user resolution failed")
		return flash.WithError(c, fiber.Map{"type": "error", "message": "Sign-in failed, please try again"}).Redirect(constants.HomeRoute, fiber.StatusSeeOther)
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "session init failed")
	}
	// New id on privilege change
	if err := sess.Regenerate(); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "session init failed")
	}
	sess.Set(usercontext.AuthKey, true)
	sess.Set(usercontext.KeyUserID, user.ID)
	if err := sess.Save(); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "session save failed")
	}

	if err := ac.repos.User.TouchLastLogin(user.ID, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Uint("user_id", user.ID).Msg("[OAuth] failed to update last login")
	}
	log.Info().Uint("user_id", user.ID).Str("provider", gu.Provider).Msg("[OAuth] user signed in")

	return flash.WithSuccess(c, fiber.Map{"type": "success", "message": "Signed in as " + user.Name}).Redirect(constants.HomeRoute, fiber.StatusSeeOther)
}

// ResolveUser finds or creates the account for a provider identity. A known
// provider id wins; otherwise an existing account with the same email is
// linked; otherwise a new free account is created.
func (ac *AuthController) ResolveUser(gu goth.User) (*models.User, error) {
	pa, err := ac.repos.ProviderAccount.GetByProviderUserID(gu.Provider, gu.UserID)
	switch {
	case err == nil:
		user, err := ac.repos.User.GetByID(pa.UserID)
		if err != nil {
			return nil, fmt.Errorf("load linked user: %w", err)
		}
		if !user.IsActive() {
			return nil, ErrAccountDisabled
		}
		return user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("lookup provider account: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(gu.Email))
	var user *models.User
	if email != "" {
		user, err = ac.repos.User.GetByEmail(email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup user by email: %w", err)
		}
	}

	if user == nil {
		if email == "" {
			// Unique placeholder for providers that hide the address
			email = fmt.Sprintf("%s_%s@%s.oauth.local", gu.Provider, gu.UserID, gu.Provider)
		}
		user, err = models.NewOAuthUser(firstNonEmpty(gu.Name, gu.NickName, gu.Email, "User"), email, utils.AvatarOrGravatar(gu.AvatarURL, email))
		if err != nil {
			return nil, fmt.Errorf("build user: %w", err)
		}
		if err := ac.repos.User.Create(user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
	}
	if !user.IsActive() {
		return nil, ErrAccountDisabled
	}

	if err := ac.repos.ProviderAccount.Create(&models.ProviderAccount{
		UserID:         user.ID,
		Provider:       gu.Provider,
		ProviderUserID: gu.UserID,
		Email:          strings.ToLower(strings.TrimSpace(gu.Email)),
	}); err != nil {
		return nil, fmt.Errorf("link provider: %w", err)
	}
	return user, nil
}

// HandleLogout ends the app session.
func (ac *AuthController) HandleLogout(c *fiber.Ctx) error {
	if err := session.Destroy(c); err != nil {
		log.Warn().Err(err).Msg("[OAuth] logout could not destroy session")
	}
	if strings.HasPrefix(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON) {
		return c.JSON(fiber.Map{"logged_out": true})
	}
	return c.Redirect(constants.HomeRoute, fiber.StatusSeeOther)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
