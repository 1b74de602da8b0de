package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/devmatch/request-service/internal/domain"
)

// RequireClient ensures a client account is authenticated.
func RequireClient() fiber.Handler {
	return RequireRole(domain.RoleClient)
}

// RequireDeveloper ensures a developer account is authenticated.
func RequireDeveloper() fiber.Handler {
	return RequireRole(domain.RoleDeveloper)
}

// RequireRole ensures the principal has one of the allowed roles. With no
// roles given it only checks authentication.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
