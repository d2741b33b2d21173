package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/board-api/pkg/util/errorutil"
)

// RequireAuthenticated rejects anonymous requests. It must run after
// AuthMiddleware.Handle.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
