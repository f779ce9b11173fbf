package middleware

import (
	"gauntlet-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Roles an org member can hold. Owner and admin manage assessments and
// invitations; viewer only reads review data.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// RequireAuth ensures a user is in the session. Returns 401 with the
// standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetUser(c) == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// RequireRole allows only the listed roles through. Must run after
// RequireAuth.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := GetUser(c)
		if user == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		for _, role := range roles {
			if user.Role == role {
				return c.Next()
			}
		}
		return response.Error(c, "User is forbidden from performing this action", fiber.StatusForbidden, nil)
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) *SessionUser {
	user, _ := c.Locals(sessionUserLocal).(*SessionUser)
	return user
}
