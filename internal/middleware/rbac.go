package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dimasfr/careerlink-api/internal/utils"
)

// RequireRole ensures the authenticated identity holds one of the allowed
// roles. It must run after JWTProtected.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if _, ok := allowed[claims.Role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "access denied")
		}
		return c.Next()
	}
}
