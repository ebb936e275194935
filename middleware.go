package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClaimsContextKey is where the guard stores validated claims on the
// request context.
const ClaimsContextKey = "auth_claims"

// RequireAuth validates the bearer token and, when roles are given,
// requires the token to assert at least one of them. Roles come from the
// claims snapshot minted at login, so a demotion takes effect as soon as
// the short-lived access token expires.
func RequireAuth(engine *TokenEngine, roles ...RoleName) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return respondError(c, ErrTokenMalformed)
		}

		claims, err := engine.Validate(raw)
		if err != nil {
			return respondError(c, err)
		}

		if !claims.HasAnyRole(roles...) {
			return respondError(c, ErrInsufficientRole)
		}

		c.Locals(ClaimsContextKey, claims)
		return c.Next()
	}
}

// ClaimsFromContext returns the claims stored by RequireAuth, if any.
func ClaimsFromContext(c *fiber.Ctx) (*AccessClaims, bool) {
	claims, ok := c.Locals(ClaimsContextKey).(*AccessClaims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	const scheme = "Bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	return strings.TrimSpace(header[len(scheme):]), true
}
