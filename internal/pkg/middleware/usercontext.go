package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/accessibility-build/platform/app/repository"
	"github.com/accessibility-build/platform/internal/pkg/constants"
	"github.com/accessibility-build/platform/internal/pkg/session"
	"github.com/accessibility-build/platform/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the signed-in user for every request.
// The session only carries the user id; role, plan and status are read from
// the database so admin changes and credit purchases apply immediately.
func UserContextMiddleware(users repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Goth keeps its own session store on /auth/*
		if strings.HasPrefix(c.Path(), constants.AuthRoute+"/") {
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		store := session.GetSessionStore()
		if store == nil {
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		sess, err := store.Get(c)
		if err != nil {
			log.Warn().Err(err).Msg("[UserContext] session lookup failed")
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		userID, ok := sess.Get(usercontext.KeyUserID).(uint)
		if !ok || userID == 0 {
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		user, err := users.GetByID(userID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Error().Err(err).Uint("user_id", userID).Msg("[UserContext] user lookup failed")
			}
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		if !user.IsActive() {
			_ = sess.Destroy()
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		usercontext.Set(c, usercontext.UserContext{
			UserID:     user.ID,
			Username:   user.Name,
			Email:      user.Email,
			IsLoggedIn: true,
			IsAdmin:    user.IsAdmin(),
			Plan:       user.Plan,
		})
		return c.Next()
	}
}
