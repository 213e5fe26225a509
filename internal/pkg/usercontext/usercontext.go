package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext represents the signed-in user (or an anonymous visitor) for a request
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
	Plan       string `json:"plan"`
}

// Set stores uc on the request together with the flat locals used by guards.
func Set(c *fiber.Ctx, uc UserContext) {
	c.Locals(KeyContext, uc)
	c.Locals(KeyFromProtected, uc.IsLoggedIn)
	c.Locals(KeyIsAdmin, uc.IsAdmin)
	if uc.IsLoggedIn {
		c.Locals(KeyUserID, uc.UserID)
		c.Locals(KeyUsername, uc.Username)
	}
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if uc, ok := c.Locals(KeyContext).(UserContext); ok {
		return uc
	}
	return UserContext{IsLoggedIn: false, IsAdmin: false}
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// IsAdmin checks if the current user is an admin
func IsAdmin(c *fiber.Ctx) bool {
	return GetUserContext(c).IsAdmin
}

// GetUserID returns the current user's ID, or 0 if not logged in
func GetUserID(c *fiber.Ctx) uint {
	return GetUserContext(c).UserID
}

// GetUsername returns the current user's username, or empty string if not logged in
func GetUsername(c *fiber.Ctx) string {
	return GetUserContext(c).Username
}
