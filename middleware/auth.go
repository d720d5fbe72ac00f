// middleware/auth.go
package middleware

import (
	"context"
	"log"
	"strings"

	"classroom-economy/models"

	"github.com/gofiber/fiber/v2"
)

// UserEnsurer creates the local user row on first sight.
type UserEnsurer interface {
	EnsureUser(ctx context.Context, id string, role models.Role) (*models.User, error)
}

// HighestRole picks the strongest economy role from the gateway's role list.
func HighestRole(roles []string) models.Role {
	role := models.RoleStudent
	for _, r := range roles {
		switch models.Role(strings.ToLower(strings.TrimSpace(r))) {
		case models.RoleOperator:
			return models.RoleOperator
		case models.RoleTeacher:
			role = models.RoleTeacher
		}
	}
	return role
}

// UserContextMiddleware extracts user identity and roles set by Gateway and makes sure
// the user exists locally.
func UserContextMiddleware(users UserEnsurer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		rolesStr := c.Get("X-User-Roles")

		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID: request must come through gateway with auth context",
			})
		}

		var roles []string
		if rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		user, err := users.EnsureUser(c.UserContext(), userID, HighestRole(roles))
		if err != nil {
			log.Printf("❌ [USER_CTX] cannot register user %s: %v", userID, err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid user context",
				"cause": err.Error(),
			})
		}

		c.Locals("user_id", user.ID)
		c.Locals("user_role", user.Role)
		return c.Next()
	}
}

// RequireRole rejects callers whose economy role is not one of roles.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("user_role").(models.Role)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient role",
			"cause": string(role),
		})
	}
}
