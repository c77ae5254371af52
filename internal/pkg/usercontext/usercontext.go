package usercontext

import (
	"github.com/ManuelReschke/TeacherTime/app/models"
	"github.com/gofiber/fiber/v2"
)

// UserContext represents the complete user context for a request
type UserContext struct {
	UserID         uint   `json:"user_id"`
	Username       string `json:"username"`
	IsLoggedIn     bool   `json:"is_logged_in"`
	IsAdmin        bool   `json:"is_admin"`
	OrganizationID *uint  `json:"organization_id,omitempty"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx, ok := c.Locals(KeyUserContext).(UserContext); ok {
		return ctx
	}
	return UserContext{IsLoggedIn: false, IsAdmin: false}
}

// SetUser stores the authenticated user and its derived context.
func SetUser(c *fiber.Ctx, user *models.User) {
	isAdmin := user.Role == models.ROLE_ADMIN
	c.Locals(KeyUserContext, UserContext{
		UserID:         user.ID,
		Username:       user.Name,
		IsLoggedIn:     true,
		IsAdmin:        isAdmin,
		OrganizationID: user.OrganizationID,
	})
	c.Locals(KeyUser, user)
	c.Locals(KeyFromProtected, true)
	c.Locals(KeyUserID, user.ID)
	c.Locals(KeyUsername, user.Name)
	c.Locals(KeyIsAdmin, isAdmin)
}

// GetUser returns the authenticated user, or nil.
func GetUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(KeyUser).(*models.User)
	return u
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
