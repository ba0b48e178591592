package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/itbfess/ITBFess/internal/pkg/env"
	"github.com/itbfess/ITBFess/internal/pkg/security"
)

// Locals keys set by RequireAdmin.
const (
	KeyAdminUsername = "admin_username"
	KeyAdminName     = "admin_name"
)

// RequireAdmin gates admin routes behind a valid bearer token and returns
// JSON 401 otherwise. No retry on auth failure.
func RequireAdmin(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "admin token required",
		})
	}

	claims, err := security.VerifyAdminToken(token, env.GetEnv("ADMIN_TOKEN_SECRET", ""))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": err.Error(),
		})
	}

	c.Locals(KeyAdminUsername, claims.Username)
	c.Locals(KeyAdminName, claims.Name)
	return c.Next()
}
