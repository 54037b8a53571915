package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/dimasfr/careerlink-api/internal/auth"
	"github.com/dimasfr/careerlink-api/internal/utils"
)

const claimsLocal = "claims"

// JWTProtected returns a middleware that verifies bearer tokens per call
// and attaches the decoded identity claims to the request.
func JWTProtected(verifier *auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.BearerToken(c.Get("Authorization"))

		claims, err := verifier.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrTokenMissing) {
				return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
			}
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		c.Locals(claimsLocal, claims)

		return c.Next()
	}
}

// ClaimsFromContext returns the verified claims bound to the request, or
// false when the request was not authenticated.
func ClaimsFromContext(c *fiber.Ctx) (auth.Claims, bool) {
	claims, ok := c.Locals(claimsLocal).(auth.Claims)
	return claims, ok
}
